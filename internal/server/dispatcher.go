// Package server exposes the tool runtime over MCP stdio: registration,
// request dispatch, and the error envelope.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/haasonsaas/zen/internal/conversation"
	"github.com/haasonsaas/zen/internal/observability"
	"github.com/haasonsaas/zen/internal/providers"
	"github.com/haasonsaas/zen/internal/tools"
)

// Stable machine-readable error kinds surfaced to the host.
const (
	KindUnknownTool          = "unknown_tool"
	KindValidation           = "validation_error"
	KindContinuationMissing  = "continuation_not_available"
	KindThreadCapReached     = "thread_cap_reached"
	KindContextOverflow      = "context_overflow"
	KindNoProviderForModel   = "no_provider_for_model"
	KindModelRestricted      = "model_restricted"
	KindNoModelInCategory    = "no_model_in_category"
	KindProviderAuth         = "provider_auth_error"
	KindProviderRateLimited  = "provider_rate_limited"
	KindProviderTransient    = "provider_transient_error"
	KindProviderTimeout      = "provider_timeout"
	KindProviderInvalid      = "provider_invalid_request"
	KindProviderSafety       = "provider_safety_blocked"
	KindProviderUnsupported  = "provider_unsupported_capability"
	KindWorkflowPrecondition = "workflow_precondition_violated"
	KindInternal             = "internal_error"
)

// ErrorEnvelope is the serialized failure payload.
type ErrorEnvelope struct {
	Status   string         `json:"status"`
	Kind     string         `json:"kind"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Dispatcher routes tool calls into the runtime and owns the error taxonomy
// mapping.
type Dispatcher struct {
	Runtime *tools.Runtime
	Tools   *tools.Registry
	Log     *observability.Logger
	Metrics *observability.Metrics
}

// Dispatch executes one tool call and returns the serialized payload plus an
// error flag. The payload is always valid JSON; failures never panic the
// transport loop.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) (string, bool) {
	start := time.Now()
	ctx = context.WithValue(ctx, observability.ToolKey, name)

	t, ok := d.Tools.Get(name)
	if !ok {
		d.Metrics.RecordError("dispatcher", KindUnknownTool)
		return marshal(&ErrorEnvelope{
			Status:   "error",
			Kind:     KindUnknownTool,
			Message:  fmt.Sprintf("unknown tool: %s", name),
			Metadata: map[string]any{"tool": name},
		}), true
	}

	env, err := d.Runtime.Execute(ctx, t, args)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		ee := d.mapError(name, err)
		d.Metrics.RecordTool(name, "error", elapsed)
		d.Metrics.RecordError("tool", ee.Kind)
		d.Log.Warn(ctx, "tool call failed", "tool", name, "kind", ee.Kind, "error", err.Error())
		return marshal(ee), true
	}
	d.Metrics.RecordTool(name, "success", elapsed)
	return marshal(env), false
}

// mapError translates internal errors into the stable kind taxonomy.
func (d *Dispatcher) mapError(tool string, err error) *ErrorEnvelope {
	meta := map[string]any{"tool": tool}
	ee := &ErrorEnvelope{Status: "error", Kind: KindInternal, Message: err.Error(), Metadata: meta}

	var ve *tools.ValidationError
	var pre *tools.PreconditionError
	var cont *tools.ContinuationError
	var overflow *tools.ContextOverflowError
	var restricted *providers.RestrictedError

	switch {
	case errors.As(err, &ve):
		ee.Kind = KindValidation
		if ve.Field != "" {
			meta["field"] = ve.Field
		}
	case errors.As(err, &pre):
		ee.Kind = KindWorkflowPrecondition
		meta["precondition"] = pre.Name
	case errors.As(err, &cont):
		meta["thread_id"] = cont.ThreadID
		if errors.Is(err, conversation.ErrThreadCapReached) {
			ee.Kind = KindThreadCapReached
		} else {
			ee.Kind = KindContinuationMissing
		}
	case errors.As(err, &overflow):
		ee.Kind = KindContextOverflow
		meta["largest_component"] = overflow.Largest
		meta["tokens"] = overflow.Tokens
		meta["budget"] = overflow.Budget
	case errors.As(err, &restricted):
		ee.Kind = KindModelRestricted
		meta["model"] = restricted.Model
		meta["provider"] = restricted.Provider
	case errors.Is(err, conversation.ErrThreadCapReached):
		ee.Kind = KindThreadCapReached
	case errors.Is(err, conversation.ErrThreadUnknown), errors.Is(err, conversation.ErrThreadExpired):
		ee.Kind = KindContinuationMissing
	case errors.Is(err, providers.ErrNoProviderForModel):
		ee.Kind = KindNoProviderForModel
	case errors.Is(err, providers.ErrNoModelInCategory):
		ee.Kind = KindNoModelInCategory
	default:
		if pe, ok := providers.AsError(err); ok {
			ee.Kind = providerKind(pe.Reason)
			meta["provider"] = pe.Provider
			meta["model"] = pe.Model
			meta["retryable"] = pe.Reason.Retryable()
			if pe.RetryAfter > 0 {
				meta["retry_after_seconds"] = pe.RetryAfter.Seconds()
			}
			if pe.Feature != "" {
				meta["feature"] = pe.Feature
			}
			if pe.BlockReason != "" {
				meta["block_reason"] = pe.BlockReason
			}
		}
	}
	return ee
}

func providerKind(r providers.Reason) string {
	switch r {
	case providers.ReasonAuth:
		return KindProviderAuth
	case providers.ReasonRateLimit:
		return KindProviderRateLimited
	case providers.ReasonTransient:
		return KindProviderTransient
	case providers.ReasonTimeout:
		return KindProviderTimeout
	case providers.ReasonInvalidRequest:
		return KindProviderInvalid
	case providers.ReasonSafetyBlocked:
		return KindProviderSafety
	case providers.ReasonUnsupported:
		return KindProviderUnsupported
	default:
		return KindInternal
	}
}

func marshal(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"status":"error","kind":%q,"message":"encode response: %v"}`, KindInternal, err)
	}
	return string(raw)
}
