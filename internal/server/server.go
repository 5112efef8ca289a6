package server

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Server wraps the MCP stdio surface around the dispatcher.
type Server struct {
	mcp        *mcpserver.MCPServer
	dispatcher *Dispatcher
}

// New registers every served tool on a fresh MCP server.
func New(name, version string, d *Dispatcher) *Server {
	s := mcpserver.NewMCPServer(
		name,
		version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)
	for _, t := range d.Tools.List() {
		tool := mcp.NewToolWithRawSchema(t.Name, t.Description, t.RawSchema())
		s.AddTool(tool, handler(d, t.Name))
	}
	return &Server{mcp: s, dispatcher: d}
}

func handler(d *Dispatcher, name string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		if args == nil {
			args = map[string]any{}
		}
		payload, isErr := d.Dispatch(ctx, name, args)
		if isErr {
			return mcp.NewToolResultError(payload), nil
		}
		return mcp.NewToolResultText(payload), nil
	}
}

// ServeStdio blocks serving the MCP protocol on stdin/stdout.
func (s *Server) ServeStdio() error {
	return mcpserver.ServeStdio(s.mcp)
}

// MCP exposes the underlying server for tests.
func (s *Server) MCP() *mcpserver.MCPServer { return s.mcp }
