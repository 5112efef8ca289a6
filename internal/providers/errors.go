package providers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Reason categorizes why a provider request failed. It drives retry decisions
// inside the driver and the error kind surfaced to the host.
type Reason string

const (
	// ReasonAuth indicates authentication failure (HTTP 401, 403).
	ReasonAuth Reason = "auth"

	// ReasonRateLimit indicates rate limiting (HTTP 429).
	ReasonRateLimit Reason = "rate_limit"

	// ReasonTransient indicates server-side or network trouble (HTTP 5xx).
	ReasonTransient Reason = "transient"

	// ReasonTimeout indicates the per-call deadline expired.
	ReasonTimeout Reason = "timeout"

	// ReasonInvalidRequest indicates client-side issues (HTTP 400).
	ReasonInvalidRequest Reason = "invalid_request"

	// ReasonSafetyBlocked indicates content was blocked by safety filters.
	ReasonSafetyBlocked Reason = "safety_blocked"

	// ReasonUnsupported indicates a capability the model lacks (e.g. vision).
	ReasonUnsupported Reason = "unsupported_capability"

	// ReasonUnknown is the fallback for unclassified errors.
	ReasonUnknown Reason = "unknown"
)

// Retryable reports whether the reason suggests retrying may succeed.
func (r Reason) Retryable() bool {
	switch r {
	case ReasonRateLimit, ReasonTransient, ReasonTimeout:
		return true
	default:
		return false
	}
}

// Error is a structured provider failure carrying the context needed for
// retry decisions and the wire-level error envelope.
type Error struct {
	// Reason categorizes the failure.
	Reason Reason

	// Provider is the driver tag.
	Provider string

	// Model is the model that was requested.
	Model string

	// Status is the HTTP status code, if known.
	Status int

	// Feature names the unsupported capability for ReasonUnsupported.
	Feature string

	// BlockReason is the provider's stated reason for ReasonSafetyBlocked,
	// passed through verbatim.
	BlockReason string

	// RetryAfter is the provider's backoff hint, if any.
	RetryAfter time.Duration

	// Message is the human-readable description.
	Message string

	// Cause is the underlying error.
	Cause error
}

func (e *Error) Error() string {
	parts := []string{fmt.Sprintf("[%s]", e.Reason)}
	if e.Provider != "" {
		parts = append(parts, e.Provider)
	}
	if e.Model != "" {
		parts = append(parts, "model="+e.Model)
	}
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.Status))
	}
	if e.Feature != "" {
		parts = append(parts, "feature="+e.Feature)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

func (e *Error) Unwrap() error { return e.Cause }

// AsError extracts a provider *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsRetryable reports whether err warrants a retry.
func IsRetryable(err error) bool {
	if pe, ok := AsError(err); ok {
		return pe.Reason.Retryable()
	}
	return false
}

// newError wraps cause with classification from its message.
func newError(provider, model string, cause error) *Error {
	e := &Error{Reason: ReasonUnknown, Provider: provider, Model: model, Cause: cause}
	if cause != nil {
		e.Message = cause.Error()
		e.Reason = classifyMessage(cause.Error())
	}
	return e
}

// withStatus reclassifies the error from an HTTP status code.
func (e *Error) withStatus(status int) *Error {
	e.Status = status
	if r := classifyStatus(status); r != ReasonUnknown {
		e.Reason = r
	}
	return e
}

func classifyStatus(status int) Reason {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusPaymentRequired:
		return ReasonAuth
	case status == http.StatusTooManyRequests:
		return ReasonRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ReasonTimeout
	case status >= 500:
		return ReasonTransient
	case status == http.StatusBadRequest || status == http.StatusNotFound || status == http.StatusUnprocessableEntity:
		return ReasonInvalidRequest
	default:
		return ReasonUnknown
	}
}

// classifyMessage classifies errors that carry no status code by inspecting
// the message, following the same buckets as status classification.
func classifyMessage(msg string) Reason {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "rate limit"), strings.Contains(m, "too many requests"),
		strings.Contains(m, "resource exhausted"), strings.Contains(m, "quota"):
		return ReasonRateLimit
	case strings.Contains(m, "deadline exceeded"), strings.Contains(m, "timeout"),
		strings.Contains(m, "context canceled"):
		return ReasonTimeout
	case strings.Contains(m, "unauthorized"), strings.Contains(m, "invalid api key"),
		strings.Contains(m, "permission denied"), strings.Contains(m, "forbidden"):
		return ReasonAuth
	case strings.Contains(m, "connection reset"), strings.Contains(m, "connection refused"),
		strings.Contains(m, "no such host"), strings.Contains(m, "internal server error"),
		strings.Contains(m, "service unavailable"), strings.Contains(m, "bad gateway"),
		strings.Contains(m, "overloaded"):
		return ReasonTransient
	case strings.Contains(m, "content filter"), strings.Contains(m, "safety"),
		strings.Contains(m, "blocked"):
		return ReasonSafetyBlocked
	default:
		return ReasonUnknown
	}
}
