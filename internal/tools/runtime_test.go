package tools

import (
	"context"
	"testing"
	"time"

	"github.com/haasonsaas/zen/internal/catalog"
	"github.com/haasonsaas/zen/internal/conversation"
	"github.com/haasonsaas/zen/internal/observability"
	"github.com/haasonsaas/zen/internal/providers"
)

// fakeDriver records every request and replies with a canned answer. With
// visionFails set it rejects any request carrying images, which exercises the
// drop-and-retry fallback.
type fakeDriver struct {
	tag         string
	caps        map[string]*catalog.Capability
	reply       string
	err         error
	visionFails bool
	requests    []*providers.GenerateRequest
}

func (f *fakeDriver) Tag() string { return f.tag }

func (f *fakeDriver) Generate(_ context.Context, req *providers.GenerateRequest) (*providers.GenerateResponse, error) {
	cp := *req
	f.requests = append(f.requests, &cp)
	if f.err != nil {
		return nil, f.err
	}
	if f.visionFails && len(req.Images) > 0 {
		return nil, &providers.Error{
			Reason:   providers.ReasonUnsupported,
			Feature:  "vision",
			Provider: f.tag,
			Model:    req.Model,
		}
	}
	return &providers.GenerateResponse{
		Content:  f.reply,
		Model:    req.Model,
		Provider: f.tag,
		Usage:    providers.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}, nil
}

func (f *fakeDriver) CountTokens(text, _ string) int { return (len(text) + 3) / 4 }

func (f *fakeDriver) SupportsModel(name string) bool {
	_, ok := f.caps[name]
	return ok
}

func (f *fakeDriver) Capabilities(name string) (*catalog.Capability, bool) {
	cap, ok := f.caps[name]
	return cap, ok
}

func (f *fakeDriver) lastRequest(t *testing.T) *providers.GenerateRequest {
	t.Helper()
	if len(f.requests) == 0 {
		t.Fatal("no provider call recorded")
	}
	return f.requests[len(f.requests)-1]
}

// newTestRuntime wires the full runtime against one fake model.
func newTestRuntime(t *testing.T, window int) (*Runtime, *fakeDriver) {
	t.Helper()
	cap := &catalog.Capability{
		Name:          "fake-model",
		Provider:      "fake",
		Category:      catalog.CategoryBalanced,
		ContextWindow: window,
	}
	c := catalog.New()
	if err := c.Register(cap); err != nil {
		t.Fatal(err)
	}
	d := &fakeDriver{tag: "fake", reply: "the answer", caps: map[string]*catalog.Capability{"fake-model": cap}}
	pr := providers.NewRegistry(c, nil)
	pr.RegisterNative(d)

	reg, err := NewRegistry(false, nil)
	if err != nil {
		t.Fatal(err)
	}
	rt := &Runtime{
		Providers:    pr,
		Store:        conversation.NewStore(10, time.Hour),
		Log:          observability.Nop(),
		Metrics:      observability.NewMetrics(),
		DefaultModel: "fake-model",
		Version:      "test",
		Registry:     reg,
	}
	return rt, d
}

func mustTool(t *testing.T, rt *Runtime, name string) *Tool {
	t.Helper()
	tool, ok := rt.Registry.Get(name)
	if !ok {
		t.Fatalf("tool %s not registered", name)
	}
	return tool
}
