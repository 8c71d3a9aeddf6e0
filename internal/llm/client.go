package llm

// Package llm defines the single-endpoint client contract the reasoning
// engine depends on, plus the provider factory.
//
// The engine's only requirement of a provider is: given a prompt, return
// the model's raw text reply. Decision extraction from that text (JSON
// coercion, fence stripping, brace balancing) lives in the engine, not
// here, so every provider stays a thin transport.

import (
	"context"
	"fmt"
)

// Client is the reasoning engine's view of an LLM provider.
type Client interface {
	// Generate produces the raw model reply for one prompt. The context
	// bounds the call; implementations must honor cancellation.
	Generate(ctx context.Context, prompt string) (string, error)

	// Model returns the configured model identifier, for logs and metrics.
	Model() string

	// Provider returns the provider name ("ollama", "openai-compat").
	Provider() string
}

// Factory builds a Client from provider settings. Implemented per provider
// under internal/llm/provider; selected by configuration.
type Factory func(baseURL, model, apiKey string) (Client, error)

var factories = map[string]Factory{}

// RegisterProvider makes a provider constructible by name. Called from
// provider package init functions.
func RegisterProvider(name string, f Factory) {
	factories[name] = f
}

// NewClient constructs the named provider.
func NewClient(provider, baseURL, model, apiKey string) (Client, error) {
	f, ok := factories[provider]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider %q", provider)
	}
	return f(baseURL, model, apiKey)
}
