// Package llm defines the text-completion collaborator used by the specialist
// agents and its provider implementations.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/config"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/logger"
)

// Providers accepted in configuration.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGenAI     = "genai"
	ProviderNone      = "none"
)

var (
	ErrUnavailable   = errors.New("LLM_UNAVAILABLE")
	ErrEmptyResponse = errors.New("LLM_EMPTY_RESPONSE")
)

// Request is one completion call.
type Request struct {
	SystemPrompt string
	UserMessage  string
	MaxTokens    int
	Temperature  float64
}

// Completer turns a prompt into text.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
	Provider() string
}

// New builds the configured completer, wrapped with rate limiting and metrics.
func New(cfg config.LLMConfig, log logger.Logger) (Completer, error) {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond

	var base Completer
	switch cfg.Provider {
	case ProviderAnthropic:
		base = NewAnthropicCompleter(cfg.APIKey, cfg.Model, cfg.BaseURL)
	case ProviderOpenAI:
		base = NewOpenAICompleter(cfg.APIKey, cfg.Model, cfg.BaseURL)
	case ProviderGenAI:
		base = NewGenAICompleter(cfg.BaseURL, cfg.Model, timeout, cfg.MaxRetries)
	case ProviderNone, "":
		base = Unavailable{}
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}

	var c Completer = NewInstrumented(base, timeout, log)
	if cfg.RequestsPerSecond > 0 {
		c = NewRateLimited(c, cfg.RequestsPerSecond, cfg.Burst)
	}
	return c, nil
}

// Unavailable fails every call; specialists then report the failure instead
// of inventing an answer.
type Unavailable struct{}

func (Unavailable) Complete(context.Context, Request) (string, error) {
	return "", ErrUnavailable
}

func (Unavailable) Provider() string { return ProviderNone }

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

func (f CompleterFunc) Provider() string { return "func" }
