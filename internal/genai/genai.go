// Package genai provides LLM-backed analysis generation with pluggable
// provider backends and typed failure classification at the provider
// boundary.
package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Provider identifiers accepted by WithProvider.
const (
	// ProviderOpenAI selects the OpenAI chat completions backend.
	ProviderOpenAI = "openai"
	// ProviderAnthropic selects the Anthropic messages backend.
	ProviderAnthropic = "anthropic"
)

// Defaults for provider calls.
const (
	// DefaultAnthropicModel is used when no model override is configured.
	DefaultAnthropicModel = "claude-sonnet-4-5"
	// DefaultTimeout bounds a single provider request.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRetries is the SDK retry budget per request.
	DefaultMaxRetries = 2
	// maxCompletionTokens caps the provider response length.
	maxCompletionTokens = 2000
	// completionTemperature keeps structured JSON output stable.
	completionTemperature = 0.2
)

// Error variables for better error handling and testability
var (
	// ErrNoAPIKey is returned when no provider credential is configured.
	ErrNoAPIKey = errors.New("API key not set")
	// ErrNoChoicesReturned is returned when the provider response carries no content.
	ErrNoChoicesReturned = errors.New("no choices returned")
	// ErrUnknownProvider is returned for an unrecognized provider name.
	ErrUnknownProvider = errors.New("unknown provider")
)

// Generator produces an analysis payload from a system and user prompt.
type Generator interface {
	// Generate returns the raw completion text for the prompts. Failures are
	// wrapped in *ProviderError with the class already resolved.
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// Provider returns the backend identifier for status reporting.
	Provider() string
}

// FailureClass categorizes provider failures for fallback decisions.
type FailureClass string

const (
	// FailureQuota indicates quota or billing exhaustion.
	FailureQuota FailureClass = "quota"
	// FailureAuth indicates a rejected or invalid credential.
	FailureAuth FailureClass = "auth"
	// FailureTransient indicates a timeout, rate limit, or provider outage.
	FailureTransient FailureClass = "transient"
	// FailureOther covers failures that fit no other class.
	FailureOther FailureClass = "other"
)

// ProviderError wraps a provider failure with its classification. Callers
// switch on Class; they never inspect message text themselves.
type ProviderError struct {
	Class FailureClass
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider failure (%s): %v", e.Class, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ClassOf extracts the failure class from an error chain. Errors that carry
// no classification report FailureOther.
func ClassOf(err error) FailureClass {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Class
	}
	return FailureOther
}

// Opts holds configuration options for creating a client.
type Opts struct {
	// Provider selects the backend; defaults to ProviderOpenAI.
	Provider string
	// APIKey authenticates with the selected provider.
	APIKey string
	// Model overrides the backend's default model.
	Model string
	// Timeout bounds each provider request.
	Timeout time.Duration
	// MaxRetries sets the SDK retry budget.
	MaxRetries int
}

// Option defines a configuration option for client creation.
type Option func(*Opts)

// WithProvider selects the backend ("openai" or "anthropic").
func WithProvider(name string) Option {
	return func(o *Opts) {
		o.Provider = name
	}
}

// WithAPIKey sets the credential used to authenticate with the provider.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithModel overrides the backend's default model.
func WithModel(model string) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// WithTimeout bounds each provider request.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.Timeout = d
	}
}

// WithMaxRetries sets the SDK retry budget per request.
func WithMaxRetries(n int) Option {
	return func(o *Opts) {
		o.MaxRetries = n
	}
}

// NewClient creates a Generator for the configured provider. Returns
// ErrNoAPIKey when no credential is configured; the caller decides whether
// that means demo mode.
func NewClient(opts ...Option) (Generator, error) {
	cfg := Opts{
		Provider:   ProviderOpenAI,
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	switch cfg.Provider {
	case ProviderOpenAI:
		return newOpenAIClient(cfg), nil
	case ProviderAnthropic:
		return newAnthropicClient(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}

// classifyStatus maps an HTTP status and lowercased error text to a failure
// class. A 429 is quota only when the body carries a quota or billing
// signal; a bare rate limit stays transient.
func classifyStatus(statusCode int, message string) FailureClass {
	switch {
	case statusCode == 401 || statusCode == 403:
		return FailureAuth
	case statusCode == 429:
		if hasQuotaSignal(message) {
			return FailureQuota
		}
		return FailureTransient
	case statusCode >= 500:
		return FailureTransient
	}
	if hasQuotaSignal(message) {
		return FailureQuota
	}
	return FailureOther
}

// classifyErr classifies failures that never reached an HTTP status:
// timeouts, transport errors, and anything the SDKs leave untyped.
func classifyErr(err error) FailureClass {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return FailureTransient
	}
	msg := strings.ToLower(err.Error())
	if hasQuotaSignal(msg) {
		return FailureQuota
	}
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "connection") {
		return FailureTransient
	}
	return FailureOther
}

func hasQuotaSignal(message string) bool {
	return strings.Contains(message, "quota") || strings.Contains(message, "billing")
}
