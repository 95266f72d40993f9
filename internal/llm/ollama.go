package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/standardbeagle/pagepick/internal/config"
)

// Provider names.
const (
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
)

// availabilityTimeout bounds the /api/tags probe.
const availabilityTimeout = 5 * time.Second

const modelsCacheKey = "models"

// Ollama talks to a local Ollama server.
type Ollama struct {
	llm     *ollama.LLM
	baseURL string
	model   string
	client  *http.Client
	models  *cache.Cache
}

// NewOllama creates an Ollama provider for cfg. A nil client uses
// http.DefaultClient.
func NewOllama(cfg config.LLMConfig, client *http.Client) (*Ollama, error) {
	if client == nil {
		client = http.DefaultClient
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	llm, err := ollama.New(
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(baseURL),
		ollama.WithHTTPClient(client),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}

	ttl := cfg.ModelCacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Ollama{
		llm:     llm,
		baseURL: baseURL,
		model:   cfg.Model,
		client:  client,
		// No janitor goroutine; entries expire on read.
		models: cache.New(ttl, 0),
	}, nil
}

// Name returns the provider name.
func (o *Ollama) Name() string { return ProviderOllama }

// Model returns the configured model name.
func (o *Ollama) Model() string { return o.model }

// Generate runs a single non-streaming completion.
func (o *Ollama) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	var opts []llms.CallOption
	if req.Model != "" {
		opts = append(opts, llms.WithModel(req.Model))
	}
	if req.Options.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*req.Options.Temperature))
	}
	if req.Options.TopP > 0 {
		opts = append(opts, llms.WithTopP(req.Options.TopP))
	}
	if req.Options.TopK > 0 {
		opts = append(opts, llms.WithTopK(req.Options.TopK))
	}
	if req.Options.NumPredict > 0 {
		opts = append(opts, llms.WithMaxTokens(req.Options.NumPredict))
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, o.llm, req.Prompt, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: ollama: %v", ErrProviderError, err)
	}
	return out, nil
}

// IsAvailable probes /api/tags with a short timeout.
func (o *Ollama) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, availabilityTimeout)
	defer cancel()

	resp, err := o.tags(ctx)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// ListModels returns the names of locally installed models. Results are
// cached for the configured TTL.
func (o *Ollama) ListModels(ctx context.Context) ([]string, error) {
	if v, ok := o.models.Get(modelsCacheKey); ok {
		return v.([]string), nil
	}

	resp, err := o.tags(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list models: %v", ErrProviderError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: list models: status %d", ErrProviderError, resp.StatusCode)
	}

	var body struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode model list: %v", ErrProviderError, err)
	}

	names := make([]string, 0, len(body.Models))
	for _, m := range body.Models {
		names = append(names, m.Name)
	}
	o.models.SetDefault(modelsCacheKey, names)
	return names, nil
}

func (o *Ollama) tags(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	return o.client.Do(req)
}
