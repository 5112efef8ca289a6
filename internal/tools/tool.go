// Package tools defines the tool catalogue and the runtimes that execute it:
// a one-shot runtime for simple tools and a step-wise investigation runtime
// for workflow tools.
//
// A tool is data, not a type: a record holding its schema fields, prompts and
// hook functions. The two runtimes interpret the record.
package tools

import (
	"context"
	"fmt"

	"github.com/haasonsaas/zen/internal/catalog"
	"github.com/haasonsaas/zen/internal/conversation"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Kind selects the runtime that executes a tool.
type Kind int

const (
	// KindSimple tools run the one-shot pipeline.
	KindSimple Kind = iota

	// KindWorkflow tools run the step-wise investigation state machine.
	KindWorkflow

	// KindLocal tools answer from server state without a provider call.
	KindLocal
)

// Envelope statuses.
const (
	StatusSuccess               = "success"
	StatusContinuationAvailable = "continuation_available"
	StatusRequiresClarification = "requires_clarification"
	StatusFilesRequired         = "files_required_to_continue"
	StatusPauseForInvestigation = "pause_for_investigation"
	StatusCallingExpert         = "calling_expert_analysis"
	StatusLocalWorkComplete     = "local_work_complete"
)

// TokenUsage mirrors provider usage in envelope metadata.
type TokenUsage struct {
	Input  int `json:"input,omitempty"`
	Output int `json:"output,omitempty"`
}

// Metadata is the envelope metadata block.
type Metadata struct {
	Tool           string         `json:"tool"`
	Model          string         `json:"model,omitempty"`
	Provider       string         `json:"provider,omitempty"`
	ThreadID       string         `json:"thread_id,omitempty"`
	TurnIndex      int            `json:"turn_index,omitempty"`
	RemainingTurns int            `json:"remaining_turns,omitempty"`
	Tokens         TokenUsage     `json:"tokens"`
	Extra          map[string]any `json:"extra,omitempty"`
}

// Envelope is the JSON payload every successful call returns.
type Envelope struct {
	Status      string   `json:"status"`
	Content     string   `json:"content"`
	ContentType string   `json:"content_type"`
	Metadata    Metadata `json:"metadata"`
}

// Request is the common field set of simple tools.
type Request struct {
	Prompt         string   `json:"prompt"`
	Files          []string `json:"files,omitempty"`
	Images         []string `json:"images,omitempty"`
	Model          string   `json:"model,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	ThinkingMode   string   `json:"thinking_mode,omitempty"`
	UseWebsearch   *bool    `json:"use_websearch,omitempty"`
	ContinuationID string   `json:"continuation_id,omitempty"`
	Locale         string   `json:"locale,omitempty"`
}

// WebsearchEnabled applies the default-true semantics.
func (r *Request) WebsearchEnabled() bool {
	return r.UseWebsearch == nil || *r.UseWebsearch
}

// WorkflowRequest is the per-step input of workflow tools.
type WorkflowRequest struct {
	Step             string               `json:"step"`
	StepNumber       int                  `json:"step_number"`
	TotalSteps       int                  `json:"total_steps"`
	NextStepRequired bool                 `json:"next_step_required"`
	Findings         string               `json:"findings"`
	FilesChecked     []string             `json:"files_checked,omitempty"`
	RelevantFiles    []string             `json:"relevant_files,omitempty"`
	RelevantContext  []string             `json:"relevant_context,omitempty"`
	Confidence       string               `json:"confidence,omitempty"`
	IssuesFound      []conversation.Issue `json:"issues_found,omitempty"`
	Hypothesis       string               `json:"hypothesis,omitempty"`
	BacktrackFrom    int                  `json:"backtrack_from_step,omitempty"`
	Images           []string             `json:"images,omitempty"`

	Model          string   `json:"model,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	ThinkingMode   string   `json:"thinking_mode,omitempty"`
	UseWebsearch   *bool    `json:"use_websearch,omitempty"`
	ContinuationID string   `json:"continuation_id,omitempty"`
	Locale         string   `json:"locale,omitempty"`

	// Documentation progress counters (docgen).
	NumFilesDocumented   int `json:"num_files_documented,omitempty"`
	TotalFilesToDocument int `json:"total_files_to_document,omitempty"`

	// Models to consult with stances (consensus).
	Models []ConsensusModel `json:"models,omitempty"`
}

// ConsensusModel names one model to consult and the stance it argues.
type ConsensusModel struct {
	Model  string `json:"model"`
	Stance string `json:"stance,omitempty"`
}

// Tool is a declarative tool description. The runtimes execute it; nothing
// here carries per-invocation state.
type Tool struct {
	// Name is the MCP tool name.
	Name string

	// Description is the host-facing description.
	Description string

	// Kind selects the runtime.
	Kind Kind

	// PrimaryField is the schema field carrying the tool's main input;
	// continuation history is materialized into this field.
	PrimaryField string

	// SystemPrompt is the domain prompt, treated as an opaque string.
	SystemPrompt string

	// Category drives auto-mode model selection and budget policy.
	Category catalog.Category

	// DefaultTemperature applies when the request has none.
	DefaultTemperature float64

	// DefaultThinking applies when the request names no thinking mode.
	DefaultThinking string

	// LineNumbers opts embedded files into line-number prefixes.
	LineNumbers bool

	// StrictSchema rejects unknown request fields.
	StrictSchema bool

	// ExtraProperties extends the schema with tool-specific fields.
	ExtraProperties map[string]any

	// ExtraRequired lists tool-specific required fields.
	ExtraRequired []string

	// RequiredActions names what the host should do next, per step and
	// confidence. Workflow tools only.
	RequiredActions func(step int, confidence string) []string

	// Precondition rejects step submissions that violate the tool's
	// monotone completion gates. Workflow tools only.
	Precondition func(st *conversation.WorkflowState, req *WorkflowRequest) error

	// SkipExpert suppresses the terminal expert call. Workflow tools only.
	SkipExpert func(st *conversation.WorkflowState) bool

	// RunExpert overrides the terminal expert call (consensus consults
	// several models). Workflow tools only; nil selects the default.
	RunExpert func(ctx context.Context, rt *Runtime, t *Tool, st *conversation.WorkflowState, req *WorkflowRequest) (*ExpertResult, error)

	// Local answers without a provider call. Local tools only.
	Local func(ctx context.Context, rt *Runtime, args map[string]any) (*Envelope, error)

	// compiled request schema, built by BuildSchema.
	schema    *jsonschema.Schema
	rawSchema []byte
}

// PreconditionError reports a workflow gate violation; no state mutation and
// no turn append happen when it is returned.
type PreconditionError struct {
	Name    string
	Message string
}

func (e *PreconditionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("workflow precondition violated: %s (%s)", e.Name, e.Message)
	}
	return fmt.Sprintf("workflow precondition violated: %s", e.Name)
}

// ValidationError names the offending request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request field %q: %s", e.Field, e.Message)
}

// ContextOverflowError reports a composed prompt that cannot fit, naming the
// largest contributor so the host can retry with fewer inputs.
type ContextOverflowError struct {
	Largest string // "history", "files", or "prompt"
	Tokens  int
	Budget  int
}

func (e *ContextOverflowError) Error() string {
	return fmt.Sprintf("prompt of ~%d tokens exceeds the %d token budget (largest component: %s)", e.Tokens, e.Budget, e.Largest)
}

// ContinuationError reports an unusable continuation id.
type ContinuationError struct {
	ThreadID string
	Cause    error
}

func (e *ContinuationError) Error() string {
	return fmt.Sprintf("continuation %s is not available: %v", e.ThreadID, e.Cause)
}

func (e *ContinuationError) Unwrap() error { return e.Cause }
