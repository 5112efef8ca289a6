package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/zen/internal/catalog"
	"github.com/haasonsaas/zen/internal/conversation"
	"github.com/haasonsaas/zen/internal/fileembed"
	"github.com/haasonsaas/zen/internal/observability"
	"github.com/haasonsaas/zen/internal/providers"
)

// Runtime executes tools against shared server state. One instance serves all
// invocations; it carries no per-call state.
type Runtime struct {
	Providers *providers.Registry
	Store     *conversation.Store
	Log       *observability.Logger
	Metrics   *observability.Metrics

	// DefaultModel is the configured default ("auto" enables auto mode).
	DefaultModel string

	// AutoMode means model selection is category-driven unless the request
	// names one.
	AutoMode bool

	// Locale is the server-wide default response language (BCP-47).
	Locale string

	// Version is reported by the version tool.
	Version string

	// Registry lists the served tools, for the utility tools.
	Registry *Registry
}

// Execute validates arguments and runs the tool under its runtime.
func (rt *Runtime) Execute(ctx context.Context, t *Tool, args map[string]any) (*Envelope, error) {
	if err := t.ValidateArgs(args); err != nil {
		return nil, err
	}
	switch t.Kind {
	case KindLocal:
		return t.Local(ctx, rt, args)
	case KindWorkflow:
		return rt.runWorkflow(ctx, t, args)
	default:
		return rt.runSimple(ctx, t, args)
	}
}

// resolveModel picks the serving driver. Precedence: the request's explicit
// model, then the thread's last model on continuation, then the configured
// default, then the tool category's first available model.
func (rt *Runtime) resolveModel(t *Tool, explicit string, thread *conversation.Thread) (providers.Driver, *catalog.Capability, error) {
	name := explicit
	if isAuto(name) && thread != nil {
		name = thread.LastAssistantModel()
	}
	if isAuto(name) && !rt.AutoMode {
		name = rt.DefaultModel
	}
	if isAuto(name) {
		canonical, d, err := rt.Providers.PickModelForCategory(t.Category)
		if err != nil {
			return nil, nil, err
		}
		cap, ok := d.Capabilities(canonical)
		if !ok {
			return nil, nil, fmt.Errorf("driver %s lost capability for %s", d.Tag(), canonical)
		}
		return d, cap, nil
	}
	d, canonical, err := rt.Providers.PickDriver(name)
	if err != nil {
		return nil, nil, err
	}
	cap, ok := d.Capabilities(canonical)
	if !ok {
		return nil, nil, fmt.Errorf("driver %s lost capability for %s", d.Tag(), canonical)
	}
	return d, cap, nil
}

func isAuto(name string) bool {
	return name == "" || strings.EqualFold(name, "auto")
}

// callTimeout scales the per-call deadline with the model category and the
// requested thinking depth.
func callTimeout(cat catalog.Category, mode providers.ThinkingMode) time.Duration {
	d := 2 * time.Minute
	switch cat {
	case catalog.CategoryFast:
		d = time.Minute
	case catalog.CategoryReasoning:
		d = 5 * time.Minute
	}
	if mode == providers.ThinkingHigh || mode == providers.ThinkingMax {
		d += 2 * time.Minute
	}
	return d
}

// loadImages decodes image references, deduplicating by source.
func (rt *Runtime) loadImages(sources []string, cap *catalog.Capability) ([]providers.Image, error) {
	if len(sources) == 0 {
		return nil, nil
	}
	var out []providers.Image
	seen := map[string]bool{}
	for _, src := range sources {
		if seen[src] {
			continue
		}
		seen[src] = true
		data, mime, err := fileembed.LoadImage(src)
		if err != nil {
			return nil, &ValidationError{Field: "images", Message: err.Error()}
		}
		if cap != nil && cap.MaxImageBytes > 0 && int64(len(data)) > cap.MaxImageBytes {
			return nil, &ValidationError{
				Field:   "images",
				Message: fmt.Sprintf("image %s is %d bytes, over the %d byte limit for %s", src, len(data), cap.MaxImageBytes, cap.Name),
			}
		}
		out = append(out, providers.Image{Source: src, Data: data, MIME: mime})
	}
	return out, nil
}

// localeFor returns the effective response language for a request.
func (rt *Runtime) localeFor(requested string) string {
	if requested != "" {
		return requested
	}
	return rt.Locale
}

// systemPrompt assembles the tool's system prompt with the locale directive.
func (rt *Runtime) systemPrompt(t *Tool, locale string) string {
	sp := t.SystemPrompt
	if loc := rt.localeFor(locale); loc != "" {
		sp += fmt.Sprintf("\n\nAlways respond in the language identified by the locale %q.", loc)
	}
	return sp
}

// websearchStanza instructs the model how to request searches through the
// host agent; the server performs no network retrieval itself.
const websearchStanza = `

WEB SEARCH: You cannot browse the web, but the agent talking to you can. If current documentation, release notes, or upstream issue threads would materially improve your answer, end your response with a clearly marked "Recommended web searches" section listing the exact queries the agent should run, then ask it to continue this conversation with the results.`

// largePromptEnvelope is the cooperative escape for oversized prompts: the
// host saves the text to prompt.txt and resubmits its path in files.
func largePromptEnvelope(t *Tool, lpe *fileembed.LargePromptError) *Envelope {
	content := fmt.Sprintf(
		"The prompt is %d characters, over the %d character transport limit. Save the full prompt text to a file named %s, then call %s again with that file's absolute path in the files parameter and a short summary as the prompt.",
		lpe.Size, fileembed.TransportCharBudget, fileembed.PromptEscapeFilename, t.Name)
	return &Envelope{
		Status:      StatusFilesRequired,
		Content:     content,
		ContentType: "text",
		Metadata: Metadata{
			Tool:  t.Name,
			Extra: map[string]any{"prompt_size": lpe.Size, "limit": fileembed.TransportCharBudget},
		},
	}
}

// continuationOffer summarizes how the host can keep the thread going.
func continuationOffer(threadID string, remaining int) map[string]any {
	return map[string]any{
		"continuation_id": threadID,
		"remaining_turns": remaining,
		"note": fmt.Sprintf("You can continue this conversation for up to %d more exchanges by passing continuation_id %s.", remaining/2, threadID),
	}
}
