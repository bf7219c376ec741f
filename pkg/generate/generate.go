// Package generate calls hosted or local language models for plain text.
package generate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// ErrMissingAPIKey is returned by New when a hosted provider has no key.
var ErrMissingAPIKey = errors.New("no API key configured")

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Func adapts an ordinary function to the Generator interface.
type Func func(ctx context.Context, prompt string) (string, error)

// Generate calls f(ctx, prompt).
func (f Func) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Config holds configuration for creating a Generator.
type Config struct {
	Provider  string // "openai", "anthropic", or "ollama"
	Model     string // e.g. "gpt-4o-mini", "claude-haiku-4-5-20251001"
	APIKey    string // explicit API key (highest priority)
	BaseURL   string // override base URL
	MaxTokens int    // response cap for providers that require one

	// HTTPClient defaults to a client with a two minute timeout. Callers
	// bound individual requests through the context.
	HTTPClient *http.Client
}

// New creates a Generator from cfg. It returns (nil, nil) when no provider
// is configured. API keys resolve from cfg.APIKey, then OPENAI_API_KEY or
// ANTHROPIC_API_KEY.
func New(cfg Config) (Generator, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		return nil, nil
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = resolveAPIKeyFromEnv(provider)
	}

	model := cfg.Model
	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("%s: %w", provider, ErrMissingAPIKey)
		}
		if model == "" {
			model = "gpt-4o-mini"
		}
		if baseURL == "" {
			baseURL = "https://api.openai.com"
		}
		return newOpenAICaller(client, apiKey, model, baseURL), nil

	case ProviderAnthropic:
		if apiKey == "" {
			return nil, fmt.Errorf("%s: %w", provider, ErrMissingAPIKey)
		}
		if model == "" {
			model = "claude-haiku-4-5-20251001"
		}
		if baseURL == "" {
			baseURL = "https://api.anthropic.com"
		}
		maxTokens := cfg.MaxTokens
		if maxTokens <= 0 {
			maxTokens = 1024
		}
		return newAnthropicCaller(client, apiKey, model, baseURL, maxTokens), nil

	case ProviderOllama:
		if model == "" {
			model = "llama3.2"
		}
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return newOllamaCaller(client, model, baseURL), nil

	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func resolveAPIKeyFromEnv(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	default:
		return ""
	}
}
