package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/zen/internal/conversation"
	"github.com/haasonsaas/zen/internal/fileembed"
	"github.com/haasonsaas/zen/internal/providers"
)

// runSimple is the one-shot pipeline: validate, revive continuation, resolve
// the model, compose the prompt under budget, call the provider, persist the
// exchange, and offer continuation.
func (rt *Runtime) runSimple(ctx context.Context, t *Tool, args map[string]any) (*Envelope, error) {
	var req Request
	if err := decodeInto(args, &req); err != nil {
		return nil, err
	}
	if t.PrimaryField != "" && t.PrimaryField != "prompt" {
		if v, ok := args[t.PrimaryField].(string); ok {
			req.Prompt = v
		}
	}
	mode := providers.ThinkingMode(req.ThinkingMode)
	if !mode.Valid() {
		return nil, &ValidationError{Field: "thinking_mode", Message: "unknown mode " + req.ThinkingMode}
	}
	if mode == "" {
		mode = providers.ThinkingMode(t.DefaultThinking)
	}

	// Oversized wire text escapes before anything else happens.
	if err := fileembed.CheckTransportBudget(req.Prompt); err != nil {
		var lpe *fileembed.LargePromptError
		if errors.As(err, &lpe) {
			rt.Log.Info(ctx, "prompt over transport budget, requesting escape", "tool", t.Name, "size", lpe.Size)
			return largePromptEnvelope(t, lpe), nil
		}
		return nil, err
	}

	var thread *conversation.Thread
	if req.ContinuationID != "" {
		th, err := rt.Store.Get(req.ContinuationID)
		if err != nil {
			return nil, &ContinuationError{ThreadID: req.ContinuationID, Cause: err}
		}
		thread = th
		// The exchange needs two free slots; refuse before spending tokens.
		if rt.Store.RemainingTurns(thread.ID) < 2 {
			return nil, fmt.Errorf("%w: %s", conversation.ErrThreadCapReached, thread.ID)
		}
	}

	driver, cap, err := rt.resolveModel(t, req.Model, thread)
	if err != nil {
		return nil, err
	}

	// Re-entry after the escape: a prompt.txt in files becomes the prompt.
	prompt, files, err := fileembed.ResolvePromptFile(req.Prompt, req.Files)
	if err != nil {
		return nil, &ValidationError{Field: "files", Message: err.Error()}
	}

	counter := func(s string) int { return driver.CountTokens(s, cap.Name) }
	embedder := &fileembed.Embedder{Counter: counter, LineNumbers: t.LineNumbers}
	budget := conversation.BudgetFor(cap.Category)

	var historyBlock string
	var historyTokens int
	var seen map[string]bool
	imageRefs := append([]string(nil), req.Images...)
	if thread != nil {
		asm := &conversation.Assembler{Counter: counter, Embedder: embedder}
		rev, err := asm.Build(thread, cap)
		if err != nil {
			return nil, err
		}
		historyBlock = rev.History
		historyTokens = rev.Tokens
		seen = thread.FileSet()
		imageRefs = append(imageRefs, rev.Images...)
	}

	embedRes, err := embedder.Embed(files, seen, budget.FileTokens(cap.ContextWindow), "NEW FILES")
	if err != nil {
		return nil, &ValidationError{Field: "files", Message: err.Error()}
	}

	images, err := rt.loadImages(imageRefs, cap)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	if historyBlock != "" {
		sb.WriteString(historyBlock)
		sb.WriteString("\n=== CURRENT REQUEST ===\n")
	}
	sb.WriteString(prompt)
	if embedRes.Block != "" {
		sb.WriteString("\n\n")
		sb.WriteString(embedRes.Block)
	}
	if req.WebsearchEnabled() {
		sb.WriteString(websearchStanza)
	}
	composed := sb.String()
	system := rt.systemPrompt(t, req.Locale)

	// Overflow gate: the composed prompt plus the response reserve must fit
	// the context window. Name the largest contributor so the host can trim.
	available := cap.ContextWindow - budget.ResponseTokens(cap.ContextWindow)
	total := counter(composed) + counter(system)
	if total > available {
		return nil, &ContextOverflowError{
			Largest: largestComponent(historyTokens, embedRes.Tokens, counter(prompt)),
			Tokens:  total,
			Budget:  available,
		}
	}

	temp := req.Temperature
	if temp == nil {
		v := t.DefaultTemperature
		temp = &v
	}

	greq := &providers.GenerateRequest{
		Model:        cap.Name,
		Prompt:       composed,
		SystemPrompt: system,
		Temperature:  temp,
		ThinkingMode: mode,
		Images:       images,
	}

	timeout := callTimeout(cap.Category, mode)
	extra := map[string]any{}
	resp, err := rt.callProvider(ctx, driver, timeout, greq)
	if err != nil && len(greq.Images) > 0 && isUnsupportedVision(err) {
		// The text request is still serviceable; drop the images and retry.
		rt.Log.Warn(ctx, "model rejected images, retrying without", "tool", t.Name, "model", cap.Name)
		stripped := *greq
		stripped.Images = nil
		resp, err = rt.callProvider(ctx, driver, timeout, &stripped)
		extra["images_dropped"] = len(greq.Images)
	}
	if err != nil {
		return nil, err
	}

	userTurn := conversation.Turn{
		Role:    conversation.RoleUser,
		Content: prompt,
		Tool:    t.Name,
		Files:   files,
		Images:  req.Images,
		Tokens:  counter(prompt),
	}
	var threadID string
	if thread == nil {
		threadID = rt.Store.Create(t.Name, resp.Model, userTurn)
	} else {
		threadID = thread.ID
		if _, err := rt.Store.Append(threadID, userTurn); err != nil {
			return nil, err
		}
	}
	turnIndex, err := rt.Store.Append(threadID, conversation.Turn{
		Role:    conversation.RoleAssistant,
		Content: resp.Content,
		Tool:    t.Name,
		Model:   resp.Model,
		Tokens:  resp.Usage.OutputTokens,
	})
	if err != nil {
		return nil, err
	}

	remaining := rt.Store.RemainingTurns(threadID)
	status := StatusSuccess
	if remaining > 0 {
		status = StatusContinuationAvailable
		extra["continuation_offer"] = continuationOffer(threadID, remaining)
	}

	rt.Log.Info(ctx, "tool call served",
		"tool", t.Name, "model", resp.Model, "provider", resp.Provider,
		"thread_id", threadID, "turn_index", turnIndex,
		"input_tokens", resp.Usage.InputTokens, "output_tokens", resp.Usage.OutputTokens)

	return &Envelope{
		Status:      status,
		Content:     resp.Content,
		ContentType: "text",
		Metadata: Metadata{
			Tool:           t.Name,
			Model:          resp.Model,
			Provider:       resp.Provider,
			ThreadID:       threadID,
			TurnIndex:      turnIndex,
			RemainingTurns: remaining,
			Tokens:         TokenUsage{Input: resp.Usage.InputTokens, Output: resp.Usage.OutputTokens},
			Extra:          extra,
		},
	}, nil
}

func isUnsupportedVision(err error) bool {
	pe, ok := providers.AsError(err)
	return ok && pe.Reason == providers.ReasonUnsupported && pe.Feature == "vision"
}

func largestComponent(history, files, prompt int) string {
	switch {
	case history >= files && history >= prompt:
		return "history"
	case files >= prompt:
		return "files"
	default:
		return "prompt"
	}
}

// callProvider runs one Generate under the category deadline, recording
// metrics and timing. Retries for transient faults happen inside the driver.
func (rt *Runtime) callProvider(ctx context.Context, driver providers.Driver, timeout time.Duration, greq *providers.GenerateRequest) (*providers.GenerateResponse, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	resp, err := driver.Generate(cctx, greq)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		rt.Metrics.RecordLLM(driver.Tag(), greq.Model, "error", elapsed, 0, 0)
		return nil, err
	}
	rt.Metrics.RecordLLM(resp.Provider, resp.Model, "success", elapsed, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return resp, nil
}
