package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/standardbeagle/pagepick/internal/config"
)

// DefaultAnthropicModel is used when the configured model is an Ollama name.
const DefaultAnthropicModel = "claude-sonnet-4-5-20250929"

// Anthropic implements Provider using the Anthropic Messages API.
type Anthropic struct {
	client    anthropic.Client
	apiKey    string
	model     string
	maxTokens int64
}

// NewAnthropic creates an Anthropic provider. cfg.BaseURL is only honoured
// when it does not point at the default Ollama address.
func NewAnthropic(cfg config.LLMConfig, client *http.Client) *Anthropic {
	model := cfg.Model
	if model == "" || model == config.DefaultConfig().LLM.Model {
		model = DefaultAnthropicModel
	}
	maxTokens := int64(cfg.NumPredict)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" && cfg.BaseURL != config.DefaultConfig().LLM.BaseURL {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if client != nil {
		opts = append(opts, option.WithHTTPClient(client))
	}

	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		apiKey:    cfg.APIKey,
		model:     model,
		maxTokens: maxTokens,
	}
}

// Name returns the provider name.
func (p *Anthropic) Name() string { return ProviderAnthropic }

// Model returns the configured model name.
func (p *Anthropic) Model() string { return p.model }

// IsAvailable reports whether an API key is configured.
func (p *Anthropic) IsAvailable(context.Context) bool { return p.apiKey != "" }

// ListModels returns the configured model; the hosted catalogue is not queried.
func (p *Anthropic) ListModels(context.Context) ([]string, error) {
	return []string{p.model}, nil
}

// Generate sends req.Prompt as a single user message.
func (p *Anthropic) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if p.apiKey == "" {
		return "", ErrNoAPIKey
	}

	model := p.model
	if req.Model != "" {
		model = req.Model
	}
	maxTokens := p.maxTokens
	if req.Options.NumPredict > 0 {
		maxTokens = int64(req.Options.NumPredict)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.Options.Temperature != nil {
		// The Messages API caps temperature at 1.
		params.Temperature = anthropic.Float(min(*req.Options.Temperature, 1))
	}
	if req.Options.TopK > 0 {
		params.TopK = anthropic.Int(int64(req.Options.TopK))
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: anthropic: %v", ErrProviderError, err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(text.String()), nil
}
