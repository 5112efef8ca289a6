// Package providers implements LLM backend drivers behind a uniform
// generate/count/validate surface, plus the priority-ordered registry that
// routes model names to drivers.
package providers

import (
	"context"

	"github.com/haasonsaas/zen/internal/catalog"
)

// Driver is the uniform contract every backend implements.
//
// Implementations must be safe for concurrent use; multiple tool invocations
// may call Generate simultaneously.
type Driver interface {
	// Tag returns the provider tag (catalog.Provider* constants).
	Tag() string

	// Generate performs a single completion call. Retries for transient
	// failures happen inside the driver; other failures return a *Error.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// CountTokens estimates or counts tokens for text under the given model.
	// The result is monotone in text length.
	CountTokens(text, model string) int

	// SupportsModel reports whether this driver owns the model name.
	SupportsModel(name string) bool

	// Capabilities returns the capability descriptor for a model this driver
	// owns.
	Capabilities(name string) (*catalog.Capability, bool)
}

// ThinkingMode selects the reasoning token budget for models that support
// extended thinking. Drivers silently ignore it otherwise.
type ThinkingMode string

const (
	ThinkingMinimal ThinkingMode = "minimal"
	ThinkingLow     ThinkingMode = "low"
	ThinkingMedium  ThinkingMode = "medium"
	ThinkingHigh    ThinkingMode = "high"
	ThinkingMax     ThinkingMode = "max"
)

// thinkingBudgetTokens is the maximum extended-thinking budget drivers hand
// to providers at ThinkingMax.
const thinkingBudgetTokens = 32_768

// BudgetTokens maps the mode to a concrete token budget. Zero disables
// thinking entirely.
func (m ThinkingMode) BudgetTokens() int {
	switch m {
	case ThinkingMinimal:
		return thinkingBudgetTokens / 64
	case ThinkingLow:
		return thinkingBudgetTokens / 12
	case ThinkingMedium:
		return thinkingBudgetTokens / 3
	case ThinkingHigh:
		return thinkingBudgetTokens * 2 / 3
	case ThinkingMax:
		return thinkingBudgetTokens
	default:
		return 0
	}
}

// Valid reports whether m is a recognized mode (empty counts as unset).
func (m ThinkingMode) Valid() bool {
	switch m {
	case "", ThinkingMinimal, ThinkingLow, ThinkingMedium, ThinkingHigh, ThinkingMax:
		return true
	}
	return false
}

// Image is a decoded image attachment ready for serialization.
type Image struct {
	// Source is the original path or data URI, kept for diagnostics.
	Source string

	// Data is the raw image bytes.
	Data []byte

	// MIME is the detected media type (e.g. "image/png").
	MIME string
}

// GenerateRequest contains all parameters for one completion call.
type GenerateRequest struct {
	// Model is the requested model name; aliases are accepted and resolved
	// by the driver before serialization.
	Model string

	// Prompt is the concatenated user content.
	Prompt string

	// SystemPrompt sets the assistant's behavior. Optional.
	SystemPrompt string

	// Temperature overrides the model default when non-nil. Values outside
	// the model's constraint are clamped.
	Temperature *float64

	// ThinkingMode selects the extended-thinking budget where supported.
	ThinkingMode ThinkingMode

	// Images are attachments for vision models.
	Images []Image

	// MaxOutputTokens caps the response; zero uses the model default.
	MaxOutputTokens int
}

// Usage is the normalized token accounting for a call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// normalize enforces input + output == total regardless of what the provider
// reported.
func (u *Usage) normalize() {
	u.TotalTokens = u.InputTokens + u.OutputTokens
}

// GenerateResponse is the uniform result of a completion call.
type GenerateResponse struct {
	// Content is the full response text.
	Content string

	// Usage is the normalized token accounting.
	Usage Usage

	// Model echoes the canonical model name that served the call.
	Model string

	// Provider is the serving driver's tag.
	Provider string

	// Metadata carries free-form provider details (finish reason, request id,
	// clamped temperature, dropped images).
	Metadata map[string]any
}
