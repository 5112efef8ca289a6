package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/haasonsaas/zen/internal/conversation"
)

func TestSimpleFirstExchange(t *testing.T) {
	rt, d := newTestRuntime(t, 200_000)
	chat := mustTool(t, rt, "chat")

	env, err := rt.Execute(context.Background(), chat, map[string]any{"prompt": "compare the two approaches"})
	if err != nil {
		t.Fatal(err)
	}
	if env.Status != StatusContinuationAvailable {
		t.Errorf("status = %s", env.Status)
	}
	if env.Content != "the answer" {
		t.Errorf("content = %q", env.Content)
	}
	if env.Metadata.ThreadID == "" {
		t.Error("no thread id")
	}
	// The first assistant turn sits at index 1, after the user turn at 0.
	if env.Metadata.TurnIndex != 1 {
		t.Errorf("turn index = %d, want 1", env.Metadata.TurnIndex)
	}
	if env.Metadata.Model != "fake-model" || env.Metadata.Provider != "fake" {
		t.Errorf("metadata = %+v", env.Metadata)
	}
	if _, ok := env.Metadata.Extra["continuation_offer"]; !ok {
		t.Error("missing continuation offer")
	}

	greq := d.lastRequest(t)
	if !strings.Contains(greq.Prompt, "compare the two approaches") {
		t.Error("prompt text missing from provider request")
	}
	if greq.SystemPrompt == "" {
		t.Error("system prompt not set")
	}
	if greq.Temperature == nil || *greq.Temperature != 0.5 {
		t.Errorf("temperature = %v, want tool default 0.5", greq.Temperature)
	}
}

func TestSimpleContinuation(t *testing.T) {
	rt, d := newTestRuntime(t, 200_000)
	chat := mustTool(t, rt, "chat")
	ctx := context.Background()

	first, err := rt.Execute(ctx, chat, map[string]any{"prompt": "question one"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := rt.Execute(ctx, chat, map[string]any{
		"prompt":          "question two",
		"continuation_id": first.Metadata.ThreadID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if second.Metadata.ThreadID != first.Metadata.ThreadID {
		t.Error("continuation switched threads")
	}
	if second.Metadata.TurnIndex != 3 {
		t.Errorf("second assistant turn index = %d, want 3", second.Metadata.TurnIndex)
	}

	greq := d.lastRequest(t)
	if !strings.Contains(greq.Prompt, "=== CONVERSATION HISTORY") {
		t.Error("history block missing on continuation")
	}
	if !strings.Contains(greq.Prompt, "=== CURRENT REQUEST ===") {
		t.Error("current request marker missing")
	}
	if !strings.Contains(greq.Prompt, "question one") {
		t.Error("prior exchange missing from history")
	}
}

func TestSimpleLargePromptEscape(t *testing.T) {
	rt, d := newTestRuntime(t, 200_000)
	chat := mustTool(t, rt, "chat")

	env, err := rt.Execute(context.Background(), chat, map[string]any{
		"prompt": strings.Repeat("a", 50_001),
	})
	if err != nil {
		t.Fatal(err)
	}
	if env.Status != StatusFilesRequired {
		t.Errorf("status = %s, want %s", env.Status, StatusFilesRequired)
	}
	if !strings.Contains(env.Content, "prompt.txt") {
		t.Error("escape instructions missing")
	}
	if env.Metadata.Extra["prompt_size"] != 50_001 {
		t.Errorf("prompt_size = %v", env.Metadata.Extra["prompt_size"])
	}
	if len(d.requests) != 0 {
		t.Error("provider called despite transport overflow")
	}
}

func TestSimplePromptFileReentry(t *testing.T) {
	rt, d := newTestRuntime(t, 200_000)
	chat := mustTool(t, rt, "chat")

	dir := t.TempDir()
	path := filepath.Join(dir, "prompt.txt")
	full := strings.Repeat("the full question ", 100)
	if err := os.WriteFile(path, []byte(full), 0o600); err != nil {
		t.Fatal(err)
	}

	env, err := rt.Execute(context.Background(), chat, map[string]any{
		"prompt": "short summary",
		"files":  []string{path},
	})
	if err != nil {
		t.Fatal(err)
	}
	if env.Status != StatusContinuationAvailable {
		t.Errorf("status = %s", env.Status)
	}
	greq := d.lastRequest(t)
	if !strings.Contains(greq.Prompt, "the full question") {
		t.Error("prompt.txt content not used as the prompt")
	}
	if strings.Contains(greq.Prompt, "--- "+path) {
		t.Error("prompt.txt embedded as a file")
	}
}

func TestSimpleUnknownContinuation(t *testing.T) {
	rt, _ := newTestRuntime(t, 200_000)
	chat := mustTool(t, rt, "chat")

	_, err := rt.Execute(context.Background(), chat, map[string]any{
		"prompt":          "hi",
		"continuation_id": "no-such-thread",
	})
	var ce *ContinuationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ContinuationError, got %v", err)
	}
	if !errors.Is(err, conversation.ErrThreadUnknown) {
		t.Errorf("cause = %v", ce.Cause)
	}
}

func TestSimpleTurnCapRefusal(t *testing.T) {
	rt, d := newTestRuntime(t, 200_000)
	rt.Store = conversation.NewStore(3, time.Hour)
	chat := mustTool(t, rt, "chat")

	id := rt.Store.Create("chat", "fake-model", conversation.Turn{Role: conversation.RoleUser, Content: "q"})
	if _, err := rt.Store.Append(id, conversation.Turn{Role: conversation.RoleAssistant, Content: "a"}); err != nil {
		t.Fatal(err)
	}

	// One slot left, but the exchange needs two; refuse before calling out.
	_, err := rt.Execute(context.Background(), chat, map[string]any{
		"prompt":          "one more",
		"continuation_id": id,
	})
	if !errors.Is(err, conversation.ErrThreadCapReached) {
		t.Fatalf("expected ErrThreadCapReached, got %v", err)
	}
	if len(d.requests) != 0 {
		t.Error("provider called despite full thread")
	}
}

func TestSimpleContextOverflow(t *testing.T) {
	rt, d := newTestRuntime(t, 100)
	chat := mustTool(t, rt, "chat")

	_, err := rt.Execute(context.Background(), chat, map[string]any{
		"prompt": strings.Repeat("word ", 400),
	})
	var coe *ContextOverflowError
	if !errors.As(err, &coe) {
		t.Fatalf("expected ContextOverflowError, got %v", err)
	}
	if coe.Largest != "prompt" {
		t.Errorf("largest component = %s, want prompt", coe.Largest)
	}
	if coe.Tokens <= coe.Budget {
		t.Errorf("tokens %d within budget %d", coe.Tokens, coe.Budget)
	}
	if len(d.requests) != 0 {
		t.Error("provider called despite overflow")
	}
}

func TestSimpleVisionFallback(t *testing.T) {
	rt, d := newTestRuntime(t, 200_000)
	d.visionFails = true
	chat := mustTool(t, rt, "chat")

	dir := t.TempDir()
	img := filepath.Join(dir, "shot.png")
	if err := os.WriteFile(img, []byte("pngbytes"), 0o600); err != nil {
		t.Fatal(err)
	}

	env, err := rt.Execute(context.Background(), chat, map[string]any{
		"prompt": "what does this show",
		"images": []string{img},
	})
	if err != nil {
		t.Fatal(err)
	}
	if env.Metadata.Extra["images_dropped"] != 1 {
		t.Errorf("images_dropped = %v", env.Metadata.Extra["images_dropped"])
	}
	if len(d.requests) != 2 {
		t.Fatalf("provider called %d times, want 2", len(d.requests))
	}
	if len(d.requests[0].Images) != 1 {
		t.Error("first attempt should carry the image")
	}
	if len(d.requests[1].Images) != 0 {
		t.Error("retry should drop the image")
	}
}

func TestSimpleWebsearchToggle(t *testing.T) {
	rt, d := newTestRuntime(t, 200_000)
	chat := mustTool(t, rt, "chat")
	ctx := context.Background()

	if _, err := rt.Execute(ctx, chat, map[string]any{"prompt": "hi"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(d.lastRequest(t).Prompt, "WEB SEARCH:") {
		t.Error("websearch stanza missing by default")
	}

	if _, err := rt.Execute(ctx, chat, map[string]any{"prompt": "hi", "use_websearch": false}); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(d.lastRequest(t).Prompt, "WEB SEARCH:") {
		t.Error("websearch stanza present when disabled")
	}
}

func TestSimpleLocaleDirective(t *testing.T) {
	rt, d := newTestRuntime(t, 200_000)
	chat := mustTool(t, rt, "chat")

	if _, err := rt.Execute(context.Background(), chat, map[string]any{"prompt": "hi", "locale": "fr-FR"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(d.lastRequest(t).SystemPrompt, `"fr-FR"`) {
		t.Error("locale directive missing from system prompt")
	}
}

func TestVersionTool(t *testing.T) {
	rt, _ := newTestRuntime(t, 200_000)
	version := mustTool(t, rt, "version")

	env, err := rt.Execute(context.Background(), version, map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if env.Status != StatusSuccess {
		t.Errorf("status = %s", env.Status)
	}
	if !strings.Contains(env.Content, "Zen MCP Server test") {
		t.Errorf("content = %q", env.Content)
	}
	if !strings.Contains(env.Content, "chat") {
		t.Error("tool list missing")
	}
}

func TestListModelsTool(t *testing.T) {
	rt, _ := newTestRuntime(t, 200_000)
	listmodels := mustTool(t, rt, "listmodels")

	env, err := rt.Execute(context.Background(), listmodels, map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(env.Content, "fake-model") {
		t.Errorf("model missing:\n%s", env.Content)
	}
	if !strings.Contains(env.Content, "## fake") {
		t.Error("provider grouping missing")
	}
}
