package genai

import (
	"context"
	"errors"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type mockMessageService struct {
	resp      *anthropic.Message
	err       error
	gotParams anthropic.MessageNewParams
}

func (m *mockMessageService) New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error) {
	m.gotParams = params
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func TestAnthropicGenerate(t *testing.T) {
	mock := &mockMessageService{
		resp: &anthropic.Message{
			Content: []anthropic.ContentBlockUnion{
				{Type: "text", Text: `{"conditions":`},
				{Type: "text", Text: ` []}`},
			},
		},
	}
	cli := &AnthropicClient{messages: mock, model: DefaultAnthropicModel}

	out, err := cli.Generate(context.Background(), "system prompt", "user prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"conditions": []}` {
		t.Errorf("unexpected content: %q", out)
	}
	if string(mock.gotParams.Model) != DefaultAnthropicModel {
		t.Errorf("unexpected model: %s", mock.gotParams.Model)
	}
	if len(mock.gotParams.System) != 1 || mock.gotParams.System[0].Text != "system prompt" {
		t.Errorf("system prompt not forwarded: %+v", mock.gotParams.System)
	}
	if len(mock.gotParams.Messages) != 1 {
		t.Fatalf("expected 1 user message, got %d", len(mock.gotParams.Messages))
	}
}

func TestAnthropicGenerate_EmptyContent(t *testing.T) {
	mock := &mockMessageService{resp: &anthropic.Message{}}
	cli := &AnthropicClient{messages: mock, model: DefaultAnthropicModel}

	_, err := cli.Generate(context.Background(), "s", "u")
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected ErrNoChoicesReturned, got %v", err)
	}
}

func TestAnthropicGenerate_NonTextBlocksIgnored(t *testing.T) {
	mock := &mockMessageService{
		resp: &anthropic.Message{
			Content: []anthropic.ContentBlockUnion{
				{Type: "thinking", Text: "internal"},
			},
		},
	}
	cli := &AnthropicClient{messages: mock, model: DefaultAnthropicModel}

	_, err := cli.Generate(context.Background(), "s", "u")
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected ErrNoChoicesReturned when no text blocks present, got %v", err)
	}
}

func TestAnthropicGenerate_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureClass
	}{
		{"deadline", context.DeadlineExceeded, FailureTransient},
		{"billing", errors.New("your credit balance is too low, visit plans & billing to upgrade"), FailureQuota},
		{"unclassified", errors.New("invalid request"), FailureOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockMessageService{err: tt.err}
			cli := &AnthropicClient{messages: mock, model: DefaultAnthropicModel}

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
