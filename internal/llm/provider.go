// Package llm is pagepick's copy-generation collaborator: a local Ollama
// server by default, or the Anthropic API, behind one Provider interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/standardbeagle/pagepick/internal/config"
	"github.com/standardbeagle/pagepick/internal/middleware"
)

// Common errors for providers
var (
	ErrNoAPIKey      = errors.New("API key not configured")
	ErrProviderError = errors.New("provider error")
	ErrNoJSON        = errors.New("no JSON object in completion")
)

// Options are the sampling parameters passed through to the model.
// Zero values leave the provider default in place, except Temperature where
// only nil does: a set 0 asks for greedy decoding.
type Options struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        float64  `json:"top_p,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

// Float returns a pointer to v, for Options.Temperature.
func Float(v float64) *float64 { return &v }

// GenerateRequest is a single non-streaming completion request.
type GenerateRequest struct {
	// Model overrides the configured model when set.
	Model   string  `json:"model,omitempty"`
	Prompt  string  `json:"prompt"`
	Options Options `json:"options"`
}

// Provider represents an LLM backend that can generate completions.
type Provider interface {
	// Name returns the provider name ("ollama", "anthropic").
	Name() string

	// Model returns the configured default model.
	Model() string

	// Generate returns the completion text for req.
	Generate(ctx context.Context, req GenerateRequest) (string, error)

	// IsAvailable reports whether the backend can currently serve requests.
	IsAvailable(ctx context.Context) bool

	// ListModels returns the models the backend offers.
	ListModels(ctx context.Context) ([]string, error)
}

// DefaultOptions returns the sampling options from cfg.
func DefaultOptions(cfg config.LLMConfig) Options {
	return Options{
		Temperature: Float(cfg.Temperature),
		TopP:        cfg.TopP,
		NumPredict:  cfg.NumPredict,
	}
}

// NewProvider builds the provider named by cfg.Provider.
func NewProvider(cfg config.LLMConfig, log logrus.FieldLogger) (Provider, error) {
	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &middleware.LoggingRoundTripper{Transport: http.DefaultTransport, Logger: log},
	}

	switch cfg.Provider {
	case "", ProviderOllama:
		return NewOllama(cfg, client)
	case ProviderAnthropic:
		return NewAnthropic(cfg, client), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
