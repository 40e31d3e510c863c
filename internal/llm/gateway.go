// Package llm provides a uniform completion interface over multiple model
// providers. Every adapter normalizes its provider's wire format to a single
// text response; retry policy is left entirely to callers.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Provider kinds.
const (
	KindOpenAI    = "openai"
	KindAnthropic = "anthropic"
	KindHosted    = "hosted"
	KindOllama    = "ollama"
	KindLocal     = "local"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Profile is the static configuration for one provider, resolved once per call
// site.
type Profile struct {
	Kind     string
	Model    string
	Endpoint string
	APIKey   string
}

// Completer issues one model call and returns the normalized text response.
// Implementations never retry and never cache; every call is a fresh network
// round trip.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// ProviderError is returned for any non-success HTTP status from a provider.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.Status, e.Message)
}

// Option configures a Completer.
type Option func(*options)

type options struct {
	client *http.Client
}

// WithHTTPClient overrides the HTTP client used for provider calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// New returns the Completer for the profile's provider kind.
func New(p Profile, opts ...Option) (Completer, error) {
	o := &options{
		client: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(o)
	}

	switch p.Kind {
	case KindOpenAI:
		return &openAIClient{profile: p, client: o.client}, nil
	case KindAnthropic:
		return &anthropicClient{profile: p, client: o.client}, nil
	case KindHosted:
		return &hostedClient{profile: p, client: o.client}, nil
	case KindOllama:
		return &ollamaClient{profile: p, client: o.client}, nil
	case KindLocal:
		return &localClient{profile: p, client: o.client}, nil
	default:
		return nil, fmt.Errorf("llm: unsupported provider kind: %s", p.Kind)
	}
}

// RequiresCredential reports whether the provider kind needs an API key
// before any call may be attempted.
func RequiresCredential(kind string) bool {
	switch kind {
	case KindOpenAI, KindAnthropic, KindHosted:
		return true
	}
	return false
}
