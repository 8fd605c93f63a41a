package ai

import (
	"context"
	"errors"
)

// ErrEmptyCompletion is returned when the provider answers with no usable text.
var ErrEmptyCompletion = errors.New("ai: empty completion")

// Options controls model behavior; zero fields fall back to client defaults.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int
}

// Client is a provider-agnostic text-completion interface.
type Client interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

// FactoryConfig captures the inputs to construct a provider client without
// leaking provider details.
type FactoryConfig struct {
	Provider  string // "openai" or "claude"
	OpenAIKey string
	ClaudeKey string

	Model               string
	Temperature         float64
	MaxCompletionTokens int
}

// NewClient returns a provider-agnostic completion client.
func NewClient(cfg FactoryConfig) (Client, error) {
	switch cfg.Provider {
	case "claude", "anthropic":
		return newClaudeClient(cfg)
	default:
		return newOpenAIClient(cfg)
	}
}

func valueOrDefault(val, def string) string {
	if val != "" {
		return val
	}
	return def
}

func orInt(v, d int) int {
	if v != 0 {
		return v
	}
	return d
}

func orFloat(v, d float64) float64 {
	if v != 0 {
		return v
	}
	return d
}
