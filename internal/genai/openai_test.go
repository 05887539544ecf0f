package genai

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// mockChatService records the params it was called with and returns a
// canned completion or error.
type mockChatService struct {
	resp      *openai.ChatCompletion
	err       error
	gotParams openai.ChatCompletionNewParams
}

func (m *mockChatService) New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	m.gotParams = params
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func TestOpenAIGenerate(t *testing.T) {
	mock := &mockChatService{
		resp: &openai.ChatCompletion{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: `{"conditions": []}`}},
			},
		},
	}
	cli := &OpenAIClient{chat: mock, model: openai.ChatModelGPT4oMini}

	out, err := cli.Generate(context.Background(), "system prompt", "user prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"conditions": []}` {
		t.Errorf("unexpected content: %q", out)
	}
	if len(mock.gotParams.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(mock.gotParams.Messages))
	}
	if mock.gotParams.Model != openai.ChatModelGPT4oMini {
		t.Errorf("unexpected model: %s", mock.gotParams.Model)
	}
}

func TestOpenAIGenerate_NoChoices(t *testing.T) {
	mock := &mockChatService{resp: &openai.ChatCompletion{}}
	cli := &OpenAIClient{chat: mock, model: openai.ChatModelGPT4oMini}

	_, err := cli.Generate(context.Background(), "s", "u")
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected ErrNoChoicesReturned, got %v", err)
	}
}

func TestOpenAIGenerate_ClassifiesAPIErrors(t *testing.T) {
	tests := []struct {
		name   string
		apiErr *openai.Error
		want   FailureClass
	}{
		{
			name:   "insufficient quota",
			apiErr: &openai.Error{StatusCode: 429, Code: "insufficient_quota", Message: "You exceeded your current quota, please check your plan and billing details."},
			want:   FailureQuota,
		},
		{
			name:   "rate limited",
			apiErr: &openai.Error{StatusCode: 429, Code: "rate_limit_exceeded", Message: "Rate limit reached for requests."},
			want:   FailureTransient,
		},
		{
			name:   "bad key",
			apiErr: &openai.Error{StatusCode: 401, Code: "invalid_api_key", Message: "Incorrect API key provided."},
			want:   FailureAuth,
		},
		{
			name:   "server error",
			apiErr: &openai.Error{StatusCode: 500, Message: "The server had an error while processing your request."},
			want:   FailureTransient,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockChatService{err: tt.apiErr}
			cli := &OpenAIClient{chat: mock, model: openai.ChatModelGPT4oMini}

			_, err := cli.Generate(context.Background(), "s", "u")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := ClassOf(err); got != tt.want {
				t.Errorf("got class %s, want %s", got, tt.want)
			}
		})
	}
}

func TestOpenAIGenerate_WrapsTransportErrors(t *testing.T) {
	mock := &mockChatService{err: context.DeadlineExceeded}
	cli := &OpenAIClient{chat: mock, model: openai.ChatModelGPT4oMini}

	_, err := cli.Generate(context.Background(), "s", "u")
	if ClassOf(err) != FailureTransient {
		t.Errorf("expected transient, got %s", ClassOf(err))
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected wrapped deadline error, got %v", err)
	}
}
