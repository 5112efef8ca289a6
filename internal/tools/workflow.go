package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/haasonsaas/zen/internal/conversation"
	"github.com/haasonsaas/zen/internal/fileembed"
	"github.com/haasonsaas/zen/internal/providers"
)

// ExpertResult is the outcome of the terminal expert analysis.
type ExpertResult struct {
	Content  string
	Model    string
	Provider string
	Usage    providers.Usage
	Extra    map[string]any
}

// runWorkflow advances a step-wise investigation. Intermediate steps mutate
// accumulated state and pause; the terminal step consults the expert model at
// most once, unless the tool skips it at full confidence.
func (rt *Runtime) runWorkflow(ctx context.Context, t *Tool, args map[string]any) (*Envelope, error) {
	var req WorkflowRequest
	if err := decodeInto(args, &req); err != nil {
		return nil, err
	}
	if !providers.ThinkingMode(req.ThinkingMode).Valid() {
		return nil, &ValidationError{Field: "thinking_mode", Message: "unknown mode " + req.ThinkingMode}
	}
	if req.Confidence != "" && !conversation.ValidConfidence(req.Confidence) {
		return nil, &ValidationError{Field: "confidence", Message: "unknown level " + req.Confidence}
	}
	if err := fileembed.CheckTransportBudget(req.Step + req.Findings); err != nil {
		var lpe *fileembed.LargePromptError
		if errors.As(err, &lpe) {
			return largePromptEnvelope(t, lpe), nil
		}
		return nil, err
	}

	threadID := req.ContinuationID
	var thread *conversation.Thread
	crossTool := false
	if threadID == "" {
		if req.StepNumber != 1 {
			return nil, &ValidationError{Field: "continuation_id", Message: "required for steps after the first"}
		}
		threadID = rt.Store.Create(t.Name, req.Model, conversation.Turn{
			Role:    conversation.RoleUser,
			Content: stepTranscript(&req),
			Tool:    t.Name,
			Files:   req.RelevantFiles,
			Images:  req.Images,
		})
	} else {
		th, err := rt.Store.Get(threadID)
		if err != nil {
			return nil, &ContinuationError{ThreadID: threadID, Cause: err}
		}
		thread = th
		crossTool = th.Tool != t.Name && rt.Store.Workflow(threadID) == nil
	}

	// A continuation handed over from another tool carries conversation
	// history this investigation has never seen; fold it into the findings so
	// the accumulated record is self-contained.
	if crossTool && req.StepNumber == 1 {
		if history := rt.reviveForHandoff(t, &req, thread); history != "" {
			req.Findings = history + "\n\n" + req.Findings
		}
	}

	if err := rt.applyStep(t, threadID, &req); err != nil {
		// A rejected first step must leave no trace: drop the thread the
		// fresh path created above. Continuations keep theirs untouched.
		if thread == nil {
			rt.Store.Delete(threadID)
		}
		return nil, err
	}

	if thread != nil {
		if _, err := rt.Store.Append(threadID, conversation.Turn{
			Role:    conversation.RoleUser,
			Content: stepTranscript(&req),
			Tool:    t.Name,
			Files:   req.RelevantFiles,
			Images:  req.Images,
		}); err != nil {
			return nil, err
		}
	}

	if req.NextStepRequired {
		return rt.pauseEnvelope(t, threadID, &req), nil
	}
	return rt.finishWorkflow(ctx, t, threadID, &req)
}

// applyStep validates and merges one step submission under the thread lock.
// Precondition failures leave the state untouched.
func (rt *Runtime) applyStep(t *Tool, threadID string, req *WorkflowRequest) error {
	return rt.Store.UpdateWorkflow(threadID, func(st *conversation.WorkflowState) error {
		if st.Completed {
			return &PreconditionError{Name: "workflow_completed", Message: "this investigation already finished"}
		}
		if req.BacktrackFrom > 0 {
			if req.BacktrackFrom > st.StepNumber {
				return &ValidationError{Field: "backtrack_from_step", Message: fmt.Sprintf("cannot backtrack to step %d, only %d steps recorded", req.BacktrackFrom, st.StepNumber)}
			}
			st.Backtrack(req.BacktrackFrom - 1)
		}
		if req.StepNumber != st.StepNumber+1 {
			return &PreconditionError{
				Name:    "step_order",
				Message: fmt.Sprintf("expected step %d, got %d", st.StepNumber+1, req.StepNumber),
			}
		}
		if t.Precondition != nil {
			if err := t.Precondition(st, req); err != nil {
				return err
			}
		}

		st.StepNumber = req.StepNumber
		if req.TotalSteps > 0 {
			st.TotalSteps = req.TotalSteps
		}
		st.Steps = append(st.Steps, conversation.StepRecord{Step: req.StepNumber, Findings: req.Findings})
		st.FilesChecked = conversation.MergeList(st.FilesChecked, req.FilesChecked)
		st.RelevantFiles = conversation.MergeList(st.RelevantFiles, req.RelevantFiles)
		st.RelevantContext = conversation.MergeList(st.RelevantContext, req.RelevantContext)
		st.IssuesFound = append(st.IssuesFound, req.IssuesFound...)
		st.Images = conversation.MergeList(st.Images, req.Images)
		if req.Confidence != "" {
			st.Confidence = req.Confidence
		}
		if req.Hypothesis != "" {
			st.Hypothesis = req.Hypothesis
		}
		if req.NumFilesDocumented > 0 {
			st.FilesDocumented = req.NumFilesDocumented
		}
		if req.TotalFilesToDocument > 0 {
			st.TotalFilesToDocument = req.TotalFilesToDocument
		}
		if !req.NextStepRequired {
			st.Completed = true
		}
		return nil
	})
}

// pauseEnvelope tells the host to keep investigating before the next step.
func (rt *Runtime) pauseEnvelope(t *Tool, threadID string, req *WorkflowRequest) *Envelope {
	actions := []string{"Continue the investigation and report findings in the next step."}
	if t.RequiredActions != nil {
		actions = t.RequiredActions(req.StepNumber, req.Confidence)
	}
	body := map[string]any{
		"status":           StatusPauseForInvestigation,
		"step_number":      req.StepNumber,
		"total_steps":      req.TotalSteps,
		"next_step_number": req.StepNumber + 1,
		"required_actions": actions,
		"continuation_id":  threadID,
	}
	raw, _ := json.Marshal(body)
	return &Envelope{
		Status:      StatusPauseForInvestigation,
		Content:     string(raw),
		ContentType: "json",
		Metadata: Metadata{
			Tool:           t.Name,
			ThreadID:       threadID,
			RemainingTurns: rt.Store.RemainingTurns(threadID),
			Extra: map[string]any{
				"step_number":      req.StepNumber,
				"total_steps":      req.TotalSteps,
				"required_actions": actions,
			},
		},
	}
}

// finishWorkflow handles the terminal step: skip, or run the expert once and
// record its answer as the assistant turn.
func (rt *Runtime) finishWorkflow(ctx context.Context, t *Tool, threadID string, req *WorkflowRequest) (*Envelope, error) {
	st := rt.Store.Workflow(threadID)
	if st == nil {
		return nil, fmt.Errorf("workflow state missing for thread %s", threadID)
	}

	if t.SkipExpert != nil && t.SkipExpert(st) {
		summary := investigationSummary(st)
		if _, err := rt.Store.Append(threadID, conversation.Turn{
			Role:    conversation.RoleAssistant,
			Content: summary,
			Tool:    t.Name,
		}); err != nil {
			return nil, err
		}
		rt.Log.Info(ctx, "workflow complete without expert", "tool", t.Name, "thread_id", threadID, "steps", st.StepNumber)
		return &Envelope{
			Status:      StatusLocalWorkComplete,
			Content:     summary,
			ContentType: "text",
			Metadata: Metadata{
				Tool:           t.Name,
				ThreadID:       threadID,
				RemainingTurns: rt.Store.RemainingTurns(threadID),
				Extra:          map[string]any{"steps": st.StepNumber, "confidence": st.Confidence},
			},
		}, nil
	}

	runExpert := t.RunExpert
	if runExpert == nil {
		runExpert = defaultExpert
	}
	res, err := runExpert(ctx, rt, t, st, req)
	if err != nil {
		return nil, err
	}

	if err := rt.Store.UpdateWorkflow(threadID, func(ws *conversation.WorkflowState) error {
		ws.ExpertCalled = true
		return nil
	}); err != nil {
		return nil, err
	}

	turnIndex, err := rt.Store.Append(threadID, conversation.Turn{
		Role:    conversation.RoleAssistant,
		Content: res.Content,
		Tool:    t.Name,
		Model:   res.Model,
		Tokens:  res.Usage.OutputTokens,
	})
	if err != nil {
		return nil, err
	}

	extra := res.Extra
	if extra == nil {
		extra = map[string]any{}
	}
	extra["steps"] = st.StepNumber
	extra["confidence"] = st.Confidence
	remaining := rt.Store.RemainingTurns(threadID)
	if remaining > 0 {
		extra["continuation_offer"] = continuationOffer(threadID, remaining)
	}

	rt.Log.Info(ctx, "workflow expert analysis served",
		"tool", t.Name, "model", res.Model, "provider", res.Provider,
		"thread_id", threadID, "steps", st.StepNumber)

	return &Envelope{
		Status:      StatusCallingExpert,
		Content:     res.Content,
		ContentType: "text",
		Metadata: Metadata{
			Tool:           t.Name,
			Model:          res.Model,
			Provider:       res.Provider,
			ThreadID:       threadID,
			TurnIndex:      turnIndex,
			RemainingTurns: remaining,
			Tokens:         TokenUsage{Input: res.Usage.InputTokens, Output: res.Usage.OutputTokens},
			Extra:          extra,
		},
	}, nil
}

// defaultExpert sends the consolidated investigation to one model for final
// analysis.
func defaultExpert(ctx context.Context, rt *Runtime, t *Tool, st *conversation.WorkflowState, req *WorkflowRequest) (*ExpertResult, error) {
	var thread *conversation.Thread
	if req.ContinuationID != "" {
		if th, err := rt.Store.Get(req.ContinuationID); err == nil {
			thread = th
		}
	}
	driver, cap, err := rt.resolveModel(t, req.Model, thread)
	if err != nil {
		return nil, err
	}

	counter := func(s string) int { return driver.CountTokens(s, cap.Name) }
	embedder := &fileembed.Embedder{Counter: counter, LineNumbers: t.LineNumbers}
	budget := conversation.BudgetFor(cap.Category)

	var sb strings.Builder
	sb.WriteString(investigationSummary(st))
	if len(st.RelevantFiles) > 0 {
		res, err := embedder.Embed(st.RelevantFiles, nil, budget.FileTokens(cap.ContextWindow), "RELEVANT FILES")
		if err != nil {
			return nil, &ValidationError{Field: "relevant_files", Message: err.Error()}
		}
		if res.Block != "" {
			sb.WriteString("\n\n")
			sb.WriteString(res.Block)
		}
	}
	if req.UseWebsearch == nil || *req.UseWebsearch {
		sb.WriteString(websearchStanza)
	}

	images, err := rt.loadImages(st.Images, cap)
	if err != nil {
		return nil, err
	}

	mode := providers.ThinkingMode(req.ThinkingMode)
	if mode == "" {
		mode = providers.ThinkingMode(t.DefaultThinking)
	}
	temp := req.Temperature
	if temp == nil {
		v := t.DefaultTemperature
		temp = &v
	}
	greq := &providers.GenerateRequest{
		Model:        cap.Name,
		Prompt:       sb.String(),
		SystemPrompt: rt.systemPrompt(t, req.Locale),
		Temperature:  temp,
		ThinkingMode: mode,
		Images:       images,
	}
	timeout := callTimeout(cap.Category, mode)
	resp, err := rt.callProvider(ctx, driver, timeout, greq)
	if err != nil && len(images) > 0 && isUnsupportedVision(err) {
		stripped := *greq
		stripped.Images = nil
		resp, err = rt.callProvider(ctx, driver, timeout, &stripped)
	}
	if err != nil {
		return nil, err
	}
	return &ExpertResult{
		Content:  resp.Content,
		Model:    resp.Model,
		Provider: resp.Provider,
		Usage:    resp.Usage,
		Extra:    map[string]any{},
	}, nil
}

// reviveForHandoff rebuilds prior-tool history so a fresh investigation can
// absorb it. Best effort: a failed model resolution skips the handoff.
func (rt *Runtime) reviveForHandoff(t *Tool, req *WorkflowRequest, thread *conversation.Thread) string {
	driver, cap, err := rt.resolveModel(t, req.Model, thread)
	if err != nil {
		return ""
	}
	counter := func(s string) int { return driver.CountTokens(s, cap.Name) }
	asm := &conversation.Assembler{
		Counter:  counter,
		Embedder: &fileembed.Embedder{Counter: counter},
	}
	rev, err := asm.Build(thread, cap)
	if err != nil {
		return ""
	}
	return rev.History
}

// stepTranscript renders a step submission as a conversation turn.
func stepTranscript(req *WorkflowRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Step %d/%d: %s\n", req.StepNumber, req.TotalSteps, req.Step)
	if req.Findings != "" {
		sb.WriteString("\nFindings: ")
		sb.WriteString(req.Findings)
	}
	if req.Hypothesis != "" {
		sb.WriteString("\nHypothesis: ")
		sb.WriteString(req.Hypothesis)
	}
	if req.Confidence != "" {
		sb.WriteString("\nConfidence: ")
		sb.WriteString(req.Confidence)
	}
	return sb.String()
}

// investigationSummary renders the accumulated state for the expert model or
// the final local summary.
func investigationSummary(st *conversation.WorkflowState) string {
	var sb strings.Builder
	sb.WriteString("=== INVESTIGATION SUMMARY ===\n")
	fmt.Fprintf(&sb, "Steps taken: %d\n", st.StepNumber)
	fmt.Fprintf(&sb, "Confidence: %s\n", st.Confidence)
	if st.Hypothesis != "" {
		fmt.Fprintf(&sb, "Hypothesis: %s\n", st.Hypothesis)
	}
	sb.WriteString("\nFindings:\n")
	sb.WriteString(st.ConsolidatedFindings())
	if len(st.IssuesFound) > 0 {
		sb.WriteString("\n\nIssues found:\n")
		for _, is := range st.IssuesFound {
			fmt.Fprintf(&sb, "- [%s] %s\n", is.Severity, is.Description)
		}
	}
	if len(st.RelevantContext) > 0 {
		sb.WriteString("\nImplicated code:\n")
		for _, c := range st.RelevantContext {
			fmt.Fprintf(&sb, "- %s\n", c)
		}
	}
	if len(st.RelevantFiles) > 0 {
		fmt.Fprintf(&sb, "\nRelevant files: %s\n", strings.Join(st.RelevantFiles, ", "))
	}
	sb.WriteString("=== END SUMMARY ===\n")
	return sb.String()
}
