package providers

import (
	"context"
	"errors"
	"strings"

	"github.com/haasonsaas/zen/internal/catalog"
	"google.golang.org/genai"
)

// GeminiDriver serves Google Gemini models through the Gen AI SDK.
type GeminiDriver struct {
	base
	client *genai.Client
}

// GeminiConfig configures the Gemini driver.
type GeminiConfig struct {
	// APIKey is the Gemini API key (required).
	APIKey string
}

// NewGeminiDriver creates the Gemini driver from the full catalogue.
func NewGeminiDriver(ctx context.Context, cfg GeminiConfig, full *catalog.Catalog) (*GeminiDriver, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiDriver{
		base:   newBase(catalog.ProviderGemini, subCatalog(full, catalog.ProviderGemini)),
		client: client,
	}, nil
}

// Generate implements Driver.
func (d *GeminiDriver) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	p, err := d.prepare(req)
	if err != nil {
		return nil, err
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIME))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	genCfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(p.temperature)),
		MaxOutputTokens: int32(p.maxOutput),
	}
	if req.SystemPrompt != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if p.thinking > 0 {
		genCfg.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(int32(p.thinking)),
		}
	}

	return d.generate(ctx, func() (*GenerateResponse, error) {
		resp, err := d.client.Models.GenerateContent(ctx, p.canonical, contents, genCfg)
		if err != nil {
			return nil, d.wrapError(err, p.canonical)
		}
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return nil, &Error{
				Reason: ReasonSafetyBlocked, Provider: d.tag, Model: p.canonical,
				BlockReason: string(resp.PromptFeedback.BlockReason),
				Message:     "prompt blocked: " + string(resp.PromptFeedback.BlockReason),
			}
		}

		md := p.metadata()
		if len(resp.Candidates) > 0 {
			finish := resp.Candidates[0].FinishReason
			md["finish_reason"] = string(finish)
			if finish == genai.FinishReasonSafety {
				return nil, &Error{
					Reason: ReasonSafetyBlocked, Provider: d.tag, Model: p.canonical,
					BlockReason: string(finish),
					Message:     "response blocked by safety filter",
				}
			}
		}

		out := &GenerateResponse{
			Content:  resp.Text(),
			Model:    p.canonical,
			Metadata: md,
		}
		if um := resp.UsageMetadata; um != nil {
			out.Usage.InputTokens = int(um.PromptTokenCount)
			out.Usage.OutputTokens = int(um.CandidatesTokenCount) + int(um.ThoughtsTokenCount)
		}
		return out, nil
	})
}

func (d *GeminiDriver) wrapError(err error, model string) error {
	if _, ok := AsError(err); ok {
		return err
	}
	pe := newError(d.tag, model, err)
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		pe.withStatus(apiErr.Code)
		if apiErr.Message != "" {
			pe.Message = apiErr.Message
		}
	} else if strings.Contains(strings.ToLower(err.Error()), "resource exhausted") {
		pe.Reason = ReasonRateLimit
	}
	return pe
}
