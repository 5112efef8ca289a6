package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/haasonsaas/zen/internal/catalog"
)

// AnthropicDriver serves Claude models through the Messages API.
type AnthropicDriver struct {
	base
	client anthropic.Client
}

// AnthropicConfig configures the Anthropic driver.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	// BaseURL overrides the API endpoint. Optional.
	BaseURL string
}

// NewAnthropicDriver creates the Anthropic driver from the full catalogue.
func NewAnthropicDriver(cfg AnthropicConfig, full *catalog.Catalog) (*AnthropicDriver, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	options := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		options = append(options, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicDriver{
		base:   newBase(catalog.ProviderAnthropic, subCatalog(full, catalog.ProviderAnthropic)),
		client: anthropic.NewClient(options...),
	}, nil
}

// Generate implements Driver.
func (d *AnthropicDriver) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	p, err := d.prepare(req)
	if err != nil {
		return nil, err
	}

	blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(req.Prompt)}
	for _, img := range req.Images {
		blocks = append(blocks, anthropic.NewImageBlockBase64(img.MIME, base64.StdEncoding.EncodeToString(img.Data)))
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.canonical),
		MaxTokens: int64(p.maxOutput),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if p.thinking > 0 {
		// The API requires temperature 1 with extended thinking enabled.
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(p.thinking))
	} else {
		params.Temperature = anthropic.Float(p.temperature)
	}

	return d.generate(ctx, func() (*GenerateResponse, error) {
		msg, err := d.client.Messages.New(ctx, params)
		if err != nil {
			return nil, d.wrapError(err, p.canonical)
		}

		var sb strings.Builder
		for _, blk := range msg.Content {
			if blk.Type == "text" {
				sb.WriteString(blk.Text)
			}
		}

		md := p.metadata()
		md["stop_reason"] = string(msg.StopReason)
		if msg.StopReason == "refusal" {
			return nil, &Error{
				Reason: ReasonSafetyBlocked, Provider: d.tag, Model: p.canonical,
				BlockReason: "refusal",
				Message:     "the model refused to answer",
			}
		}

		return &GenerateResponse{
			Content: sb.String(),
			Usage: Usage{
				InputTokens:  int(msg.Usage.InputTokens),
				OutputTokens: int(msg.Usage.OutputTokens),
			},
			Model:    p.canonical,
			Metadata: md,
		}, nil
	})
}

func (d *AnthropicDriver) wrapError(err error, model string) error {
	if _, ok := AsError(err); ok {
		return err
	}
	pe := newError(d.tag, model, err)
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		pe.withStatus(apiErr.StatusCode)
	}
	return pe
}
