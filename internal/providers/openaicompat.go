package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// compatDriver is the shared core for every driver that talks to an
// OpenAI-shaped chat-completions endpoint: the native OpenAI driver, the
// OpenRouter aggregator, and the custom/local endpoint driver.
//
// Alias resolution happens here, before the outbound request is built: the
// wire-level model field always carries the canonical name.
type compatDriver struct {
	base
	client *openai.Client
}

func newCompatClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// Generate implements Driver for all OpenAI-shaped backends.
func (d *compatDriver) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	p, err := d.prepare(req)
	if err != nil {
		return nil, err
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(req.Images) > 0 {
		parts := []openai.ChatMessagePart{{
			Type: openai.ChatMessagePartTypeText,
			Text: req.Prompt,
		}}
		for _, img := range req.Images {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    fmt.Sprintf("data:%s;base64,%s", img.MIME, base64.StdEncoding.EncodeToString(img.Data)),
					Detail: openai.ImageURLDetailAuto,
				},
			})
		}
		user.MultiContent = parts
	} else {
		user.Content = req.Prompt
	}
	messages = append(messages, user)

	// The outbound model field must be the canonical name, never an alias.
	chatReq := openai.ChatCompletionRequest{
		Model:    p.canonical,
		Messages: messages,
	}
	if p.thinking > 0 {
		chatReq.ReasoningEffort = reasoningEffort(req.ThinkingMode)
	} else {
		chatReq.Temperature = float32(p.temperature)
		chatReq.MaxTokens = p.maxOutput
	}

	return d.generate(ctx, func() (*GenerateResponse, error) {
		resp, err := d.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			return nil, d.wrapError(err, p.canonical)
		}
		if len(resp.Choices) == 0 {
			return nil, &Error{
				Reason: ReasonTransient, Provider: d.tag, Model: p.canonical,
				Message: "response contained no choices",
			}
		}
		choice := resp.Choices[0]
		if choice.FinishReason == openai.FinishReasonContentFilter {
			return nil, &Error{
				Reason: ReasonSafetyBlocked, Provider: d.tag, Model: p.canonical,
				BlockReason: string(choice.FinishReason),
				Message:     "content blocked by provider safety filter",
			}
		}

		md := p.metadata()
		md["finish_reason"] = string(choice.FinishReason)

		return &GenerateResponse{
			Content: choice.Message.Content,
			Usage: Usage{
				InputTokens:  resp.Usage.PromptTokens,
				OutputTokens: resp.Usage.CompletionTokens,
			},
			Model:    p.canonical,
			Metadata: md,
		}, nil
	})
}

func reasoningEffort(mode ThinkingMode) string {
	switch mode {
	case ThinkingMinimal, ThinkingLow:
		return "low"
	case ThinkingMedium:
		return "medium"
	default:
		return "high"
	}
}

func (d *compatDriver) wrapError(err error, model string) error {
	if _, ok := AsError(err); ok {
		return err
	}
	pe := newError(d.tag, model, err)
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		pe.withStatus(apiErr.HTTPStatusCode)
		if apiErr.Message != "" {
			pe.Message = apiErr.Message
		}
		if pe.Reason == ReasonRateLimit {
			pe.RetryAfter = 2 * time.Second
		}
		if code, ok := apiErr.Code.(string); ok && strings.Contains(code, "content_filter") {
			pe.Reason = ReasonSafetyBlocked
			pe.BlockReason = apiErr.Message
		}
	}
	return pe
}
