package server

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/haasonsaas/zen/internal/catalog"
	"github.com/haasonsaas/zen/internal/conversation"
	"github.com/haasonsaas/zen/internal/observability"
	"github.com/haasonsaas/zen/internal/providers"
	"github.com/haasonsaas/zen/internal/tools"
)

type fakeDriver struct {
	cap *catalog.Capability
}

func (f *fakeDriver) Tag() string { return "fake" }

func (f *fakeDriver) Generate(_ context.Context, req *providers.GenerateRequest) (*providers.GenerateResponse, error) {
	return &providers.GenerateResponse{
		Content:  "served",
		Model:    req.Model,
		Provider: "fake",
		Usage:    providers.Usage{InputTokens: 4, OutputTokens: 2, TotalTokens: 6},
	}, nil
}

func (f *fakeDriver) CountTokens(text, _ string) int { return (len(text) + 3) / 4 }

func (f *fakeDriver) SupportsModel(name string) bool { return name == f.cap.Name }

func (f *fakeDriver) Capabilities(name string) (*catalog.Capability, bool) {
	if name == f.cap.Name {
		return f.cap, true
	}
	return nil, false
}

func newDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	cap := &catalog.Capability{
		Name:          "fake-model",
		Provider:      "fake",
		Category:      catalog.CategoryBalanced,
		ContextWindow: 200_000,
	}
	c := catalog.New()
	if err := c.Register(cap); err != nil {
		t.Fatal(err)
	}
	pr := providers.NewRegistry(c, nil)
	pr.RegisterNative(&fakeDriver{cap: cap})

	reg, err := tools.NewRegistry(false, nil)
	if err != nil {
		t.Fatal(err)
	}
	rt := &tools.Runtime{
		Providers:    pr,
		Store:        conversation.NewStore(10, time.Hour),
		Log:          observability.Nop(),
		Metrics:      observability.NewMetrics(),
		DefaultModel: "fake-model",
		Version:      "test",
		Registry:     reg,
	}
	return &Dispatcher{
		Runtime: rt,
		Tools:   reg,
		Log:     rt.Log,
		Metrics: rt.Metrics,
	}
}

func decodeError(t *testing.T, payload string) *ErrorEnvelope {
	t.Helper()
	var ee ErrorEnvelope
	if err := json.Unmarshal([]byte(payload), &ee); err != nil {
		t.Fatalf("payload not JSON: %v\n%s", err, payload)
	}
	return &ee
}

func TestDispatchUnknownTool(t *testing.T) {
	d := newDispatcher(t)
	payload, isErr := d.Dispatch(context.Background(), "no-such-tool", nil)
	if !isErr {
		t.Fatal("unknown tool reported as success")
	}
	ee := decodeError(t, payload)
	if ee.Kind != KindUnknownTool || ee.Status != "error" {
		t.Errorf("envelope = %+v", ee)
	}
}

func TestDispatchSuccess(t *testing.T) {
	d := newDispatcher(t)
	payload, isErr := d.Dispatch(context.Background(), "chat", map[string]any{"prompt": "hello"})
	if isErr {
		t.Fatalf("dispatch failed: %s", payload)
	}
	var env tools.Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if env.Status != tools.StatusContinuationAvailable {
		t.Errorf("status = %s", env.Status)
	}
	if env.Content != "served" {
		t.Errorf("content = %q", env.Content)
	}
	if env.Metadata.Model != "fake-model" {
		t.Errorf("model = %s", env.Metadata.Model)
	}
}

func TestDispatchValidationFailure(t *testing.T) {
	d := newDispatcher(t)
	payload, isErr := d.Dispatch(context.Background(), "chat", map[string]any{})
	if !isErr {
		t.Fatal("invalid args reported as success")
	}
	ee := decodeError(t, payload)
	if ee.Kind != KindValidation {
		t.Errorf("kind = %s", ee.Kind)
	}
}

func TestMapErrorTaxonomy(t *testing.T) {
	d := newDispatcher(t)

	tests := []struct {
		name string
		err  error
		kind string
		meta map[string]any
	}{
		{
			name: "validation",
			err:  &tools.ValidationError{Field: "prompt", Message: "missing"},
			kind: KindValidation,
			meta: map[string]any{"field": "prompt"},
		},
		{
			name: "precondition",
			err:  &tools.PreconditionError{Name: "step_order"},
			kind: KindWorkflowPrecondition,
			meta: map[string]any{"precondition": "step_order"},
		},
		{
			name: "continuation unknown",
			err:  &tools.ContinuationError{ThreadID: "t-1", Cause: conversation.ErrThreadUnknown},
			kind: KindContinuationMissing,
			meta: map[string]any{"thread_id": "t-1"},
		},
		{
			name: "continuation expired",
			err:  &tools.ContinuationError{ThreadID: "t-2", Cause: conversation.ErrThreadExpired},
			kind: KindContinuationMissing,
		},
		{
			name: "continuation at cap",
			err:  &tools.ContinuationError{ThreadID: "t-3", Cause: conversation.ErrThreadCapReached},
			kind: KindThreadCapReached,
		},
		{
			name: "overflow",
			err:  &tools.ContextOverflowError{Largest: "files", Tokens: 900, Budget: 700},
			kind: KindContextOverflow,
			meta: map[string]any{"largest_component": "files"},
		},
		{
			name: "restricted",
			err:  &providers.RestrictedError{Model: "m", Provider: "p"},
			kind: KindModelRestricted,
			meta: map[string]any{"model": "m", "provider": "p"},
		},
		{
			name: "bare cap",
			err:  conversation.ErrThreadCapReached,
			kind: KindThreadCapReached,
		},
		{
			name: "no provider",
			err:  providers.ErrNoProviderForModel,
			kind: KindNoProviderForModel,
		},
		{
			name: "no model in category",
			err:  providers.ErrNoModelInCategory,
			kind: KindNoModelInCategory,
		},
		{
			name: "provider auth",
			err:  &providers.Error{Reason: providers.ReasonAuth, Provider: "p", Model: "m"},
			kind: KindProviderAuth,
		},
		{
			name: "provider rate limited",
			err:  &providers.Error{Reason: providers.ReasonRateLimit, RetryAfter: 3 * time.Second},
			kind: KindProviderRateLimited,
			meta: map[string]any{"retryable": true, "retry_after_seconds": 3.0},
		},
		{
			name: "provider transient",
			err:  &providers.Error{Reason: providers.ReasonTransient},
			kind: KindProviderTransient,
		},
		{
			name: "provider timeout",
			err:  &providers.Error{Reason: providers.ReasonTimeout},
			kind: KindProviderTimeout,
		},
		{
			name: "provider invalid",
			err:  &providers.Error{Reason: providers.ReasonInvalidRequest},
			kind: KindProviderInvalid,
		},
		{
			name: "provider safety",
			err:  &providers.Error{Reason: providers.ReasonSafetyBlocked, BlockReason: "HARM"},
			kind: KindProviderSafety,
			meta: map[string]any{"block_reason": "HARM"},
		},
		{
			name: "provider unsupported",
			err:  &providers.Error{Reason: providers.ReasonUnsupported, Feature: "vision"},
			kind: KindProviderUnsupported,
			meta: map[string]any{"feature": "vision"},
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			kind: KindInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ee := d.mapError("chat", tt.err)
			if ee.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", ee.Kind, tt.kind)
			}
			if ee.Status != "error" {
				t.Errorf("status = %s", ee.Status)
			}
			for k, want := range tt.meta {
				if got := ee.Metadata[k]; got != want {
					t.Errorf("metadata[%s] = %v, want %v", k, got, want)
				}
			}
		})
	}
}

func TestServerRegistersAllTools(t *testing.T) {
	d := newDispatcher(t)
	s := New("zen", "test", d)
	if s == nil || s.MCP() == nil {
		t.Fatal("server not constructed")
	}
}
