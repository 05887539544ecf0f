package genai

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// messageService defines the minimal messages surface the client needs.
// Tests substitute a mock.
type messageService interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicClient generates analyses via the Anthropic messages API.
type AnthropicClient struct {
	messages messageService
	model    anthropic.Model
}

// newAnthropicClient builds the Anthropic backend from resolved options.
func newAnthropicClient(cfg Opts) *AnthropicClient {
	client := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(cfg.MaxRetries),
	)
	model := anthropic.Model(cfg.Model)
	if cfg.Model == "" {
		model = anthropic.Model(DefaultAnthropicModel)
	}
	return &AnthropicClient{messages: &client.Messages, model: model}
}

// Provider returns the backend identifier.
func (c *AnthropicClient) Provider() string {
	return ProviderAnthropic
}

// Generate sends the prompts and returns the concatenated text blocks of the
// response.
func (c *AnthropicClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	slog.Debug("AnthropicClient.Generate: sending message request", "model", c.model)
	msg, err := c.messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxCompletionTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", c.wrapError(err)
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", ErrNoChoicesReturned
	}
	slog.Debug("AnthropicClient.Generate: message received", "blocks", len(msg.Content))
	return sb.String(), nil
}

// wrapError classifies an SDK failure into a ProviderError.
func (c *AnthropicClient) wrapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		class := classifyStatus(apiErr.StatusCode, strings.ToLower(err.Error()))
		slog.Warn("AnthropicClient.Generate: API error", "status_code", apiErr.StatusCode, "class", class)
		return &ProviderError{Class: class, Err: err}
	}
	class := classifyErr(err)
	slog.Warn("AnthropicClient.Generate: request failed", "class", class, "error", err)
	return &ProviderError{Class: class, Err: err}
}
