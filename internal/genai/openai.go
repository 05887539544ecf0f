package genai

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// chatService defines the minimal chat completion surface the client needs.
// Tests substitute a mock.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAIClient generates analyses via the OpenAI chat completions API.
type OpenAIClient struct {
	chat  chatService
	model openai.ChatModel
}

// newOpenAIClient builds the OpenAI backend from resolved options.
func newOpenAIClient(cfg Opts) *OpenAIClient {
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(cfg.MaxRetries),
	)
	model := openai.ChatModel(cfg.Model)
	if cfg.Model == "" {
		model = openai.ChatModelGPT4oMini
	}
	return &OpenAIClient{chat: &client.Chat.Completions, model: model}
}

// Provider returns the backend identifier.
func (c *OpenAIClient) Provider() string {
	return ProviderOpenAI
}

// Generate sends the prompts and returns the raw completion text.
func (c *OpenAIClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	slog.Debug("OpenAIClient.Generate: sending chat completion", "model", c.model)
	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(completionTemperature),
		MaxTokens:   openai.Int(maxCompletionTokens),
	})
	if err != nil {
		return "", c.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	slog.Debug("OpenAIClient.Generate: completion received", "choices", len(resp.Choices))
	return resp.Choices[0].Message.Content, nil
}

// wrapError classifies an SDK failure into a ProviderError. API errors are
// classified from their status code and structured body fields; the Error()
// string is avoided because it renders the whole HTTP exchange.
func (c *OpenAIClient) wrapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		class := classifyStatus(apiErr.StatusCode, strings.ToLower(apiErr.Code+" "+apiErr.Message))
		slog.Warn("OpenAIClient.Generate: API error", "status_code", apiErr.StatusCode, "code", apiErr.Code, "class", class)
		return &ProviderError{Class: class, Err: err}
	}
	class := classifyErr(err)
	slog.Warn("OpenAIClient.Generate: request failed", "class", class, "error", err)
	return &ProviderError{Class: class, Err: err}
}
