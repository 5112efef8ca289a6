package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/haasonsaas/zen/internal/catalog"
	"github.com/haasonsaas/zen/internal/retry"
)

// estimatedCharsPerToken is the fallback estimator ratio for providers that
// expose no tokenizer.
const estimatedCharsPerToken = 4

// EstimateTokens is the default token estimator: ceil(chars / 4). It is
// monotone in text length.
func EstimateTokens(text string) int {
	return (len(text) + estimatedCharsPerToken - 1) / estimatedCharsPerToken
}

// base holds the per-driver catalog slice and retry configuration shared by
// all drivers.
type base struct {
	tag        string
	models     *catalog.Catalog
	retryCfg   retry.Config
	defaultCap *catalog.Capability
}

func newBase(tag string, models *catalog.Catalog) base {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 4
	cfg.InitialDelay = time.Second
	cfg.MaxDelay = 30 * time.Second
	cfg.DelayHint = func(err error) time.Duration {
		if pe, ok := AsError(err); ok {
			return pe.RetryAfter
		}
		return 0
	}
	return base{tag: tag, models: models, retryCfg: cfg}
}

// subCatalog builds a driver-local catalog containing only the models a
// provider tag owns in the full catalogue.
func subCatalog(full *catalog.Catalog, tag string) *catalog.Catalog {
	sub := catalog.New()
	for _, cap := range full.ProviderModels(tag) {
		_ = sub.Register(cap)
	}
	return sub
}

func (b *base) Tag() string { return b.tag }

func (b *base) SupportsModel(name string) bool {
	_, ok := b.models.Resolve(name)
	return ok
}

func (b *base) Capabilities(name string) (*catalog.Capability, bool) {
	canonical, ok := b.models.Resolve(name)
	if !ok {
		return nil, false
	}
	return b.models.Get(canonical)
}

func (b *base) CountTokens(text, model string) int {
	return EstimateTokens(text)
}

// prepared is a request after alias resolution, temperature clamping and
// capability checks.
type prepared struct {
	canonical   string
	cap         *catalog.Capability
	temperature float64
	clamped     bool
	thinking    int // budget tokens, 0 = disabled
	maxOutput   int
}

// prepare resolves the model, validates temperature against the model's
// constraint (clamping out-of-range values), applies thinking only where
// supported, and rejects images on non-vision models.
func (b *base) prepare(req *GenerateRequest) (*prepared, error) {
	cap, ok := b.Capabilities(req.Model)
	if !ok {
		if b.defaultCap == nil {
			return nil, &Error{
				Reason: ReasonInvalidRequest, Provider: b.tag, Model: req.Model,
				Message: fmt.Sprintf("model %q is not served by provider %s", req.Model, b.tag),
			}
		}
		c := *b.defaultCap
		c.Name = req.Model
		cap = &c
	}

	p := &prepared{canonical: cap.Name, cap: cap}

	p.temperature = cap.Temperature.Default
	if req.Temperature != nil {
		p.temperature = *req.Temperature
		if !cap.Temperature.Validate(p.temperature) {
			p.temperature = cap.Temperature.Clamp(p.temperature)
			p.clamped = true
		}
	}

	if cap.SupportsThinking {
		p.thinking = req.ThinkingMode.BudgetTokens()
	}

	if len(req.Images) > 0 {
		if !cap.SupportsVision {
			return nil, &Error{
				Reason: ReasonUnsupported, Provider: b.tag, Model: cap.Name,
				Feature: "vision",
				Message: fmt.Sprintf("model %s does not accept images", cap.Name),
			}
		}
		for _, img := range req.Images {
			if cap.MaxImageBytes > 0 && int64(len(img.Data)) > cap.MaxImageBytes {
				return nil, &Error{
					Reason: ReasonInvalidRequest, Provider: b.tag, Model: cap.Name,
					Message: fmt.Sprintf("image %s exceeds %d byte limit", img.Source, cap.MaxImageBytes),
				}
			}
		}
	}

	p.maxOutput = req.MaxOutputTokens
	if p.maxOutput <= 0 || (cap.MaxOutputTokens > 0 && p.maxOutput > cap.MaxOutputTokens) {
		p.maxOutput = cap.MaxOutputTokens
	}
	if p.maxOutput <= 0 {
		p.maxOutput = 8192
	}

	return p, nil
}

// generate runs op with the driver retry policy. Non-retryable provider
// errors short-circuit; retryable ones back off exponentially, honoring
// retry-after hints and the call deadline.
func (b *base) generate(ctx context.Context, op func() (*GenerateResponse, error)) (*GenerateResponse, error) {
	resp, result := retry.DoWithValue(ctx, b.retryCfg, func() (*GenerateResponse, error) {
		r, err := op()
		if err != nil && !IsRetryable(err) {
			return nil, retry.Permanent(err)
		}
		return r, err
	})
	if result.Err != nil {
		err := result.Err
		var perm *retry.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		if ctx.Err() != nil {
			if pe, ok := AsError(err); ok {
				pe.Reason = ReasonTimeout
				return nil, pe
			}
			return nil, &Error{Reason: ReasonTimeout, Provider: b.tag, Message: "call deadline exceeded", Cause: ctx.Err()}
		}
		return nil, err
	}
	if resp != nil {
		resp.Usage.normalize()
		resp.Provider = b.tag
	}
	return resp, nil
}

// metadata builds the base response metadata for a prepared request.
func (p *prepared) metadata() map[string]any {
	md := map[string]any{"temperature": p.temperature}
	if p.clamped {
		md["temperature_clamped"] = true
	}
	if p.thinking > 0 {
		md["thinking_budget_tokens"] = p.thinking
	}
	return md
}
