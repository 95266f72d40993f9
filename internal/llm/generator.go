package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// Suggestion sources.
const (
	SourceMock     = "mock"
	SourceFallback = "fallback"
)

// CopyRequest asks for improved copy for one selected element.
type CopyRequest struct {
	OriginalContent string   `json:"originalContent" validate:"required"`
	CampaignName    string   `json:"campaignName" validate:"required"`
	TargetAudience  string   `json:"targetAudience" validate:"required"`
	Restrictions    []string `json:"restrictions,omitempty"`
	Guidance        string   `json:"guidance,omitempty"`
	// Model overrides the provider's default model.
	Model string `json:"model,omitempty"`
}

// Suggestion is the structured answer expected from the model.
type Suggestion struct {
	OriginalContent  string   `json:"originalContent"`
	GeneratedContent string   `json:"generatedContent" validate:"required"`
	Reasoning        string   `json:"reasoning" validate:"required"`
	Confidence       float64  `json:"confidence" validate:"gte=0,lte=1"`
	Alternatives     []string `json:"alternatives,omitempty"`
	// Source is the provider name, "mock" or "fallback".
	Source string `json:"source"`
}

var (
	jsonObjectRe = regexp.MustCompile(`\{[\s\S]*\}`)
	wordStartRe  = regexp.MustCompile(`\b\w`)

	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	v.RegisterStructValidation(validateCommandChanges, CommandRequest{}, EditCommand{})
	return v
}

// InvalidFields lists the JSON paths rejected by a validation error, such as
// "campaignName" or "elements[0].selector". It returns nil for other errors.
func InvalidFields(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]string, len(verrs))
	for i, fe := range verrs {
		_, path, ok := strings.Cut(fe.Namespace(), ".")
		if !ok {
			path = fe.Field()
		}
		fields[i] = path
	}
	return fields
}

// ExtractJSON returns the outermost {...} span of a completion, or the whole
// completion when it is valid JSON on its own.
func ExtractJSON(completion string) ([]byte, error) {
	if m := jsonObjectRe.FindString(completion); m != "" {
		return []byte(m), nil
	}
	trimmed := strings.TrimSpace(completion)
	if json.Valid([]byte(trimmed)) {
		return []byte(trimmed), nil
	}
	return nil, ErrNoJSON
}

// ParseSuggestion extracts and validates a Suggestion from a completion.
func ParseSuggestion(completion string) (*Suggestion, error) {
	raw, err := ExtractJSON(completion)
	if err != nil {
		return nil, err
	}
	var s Suggestion
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode suggestion: %w", err)
	}
	if err := validate.Struct(&s); err != nil {
		return nil, fmt.Errorf("invalid suggestion: %w", err)
	}
	return &s, nil
}

// ValidateCopyRequest checks the required request fields.
func ValidateCopyRequest(req *CopyRequest) error {
	return validate.Struct(req)
}

// BuildPrompt renders the marketing prompt for req.
func BuildPrompt(req CopyRequest) string {
	var b strings.Builder
	b.WriteString("You are a marketing content specialist. Your task is to improve and personalize content for a specific campaign.\n\n")
	fmt.Fprintf(&b, "ORIGINAL CONTENT: %q\n\n", req.OriginalContent)
	b.WriteString("CAMPAIGN CONTEXT:\n")
	fmt.Fprintf(&b, "- Campaign: %s\n", req.CampaignName)
	fmt.Fprintf(&b, "- Target Audience: %s\n", req.TargetAudience)
	if len(req.Restrictions) > 0 {
		fmt.Fprintf(&b, "- Restrictions: %s\n", strings.Join(req.Restrictions, ", "))
	}
	if req.Guidance != "" {
		fmt.Fprintf(&b, "- Guidance: %s\n", req.Guidance)
	}
	b.WriteString("\nTASK: Generate improved, personalized content that is more engaging and targeted to the specific audience and campaign goals.\n\n")
	b.WriteString("RESPONSE FORMAT: You must respond with ONLY a valid JSON object in this exact format:\n")
	b.WriteString("{\n")
	fmt.Fprintf(&b, "  \"originalContent\": %q,\n", req.OriginalContent)
	b.WriteString(`  "generatedContent": "your improved content here",
  "reasoning": "brief explanation of what changes you made and why",
  "confidence": 0.85,
  "alternatives": ["alternative version 1", "alternative version 2"]
}

Important:
- Make the content more engaging and specific to the target audience
- Follow any restrictions provided
- Apply the guidance given
- Keep the same general meaning but improve tone, clarity, and appeal
- Provide exactly 2 alternative versions
- Respond with ONLY the JSON object, no other text`)
	return b.String()
}

// Generator turns selected copy into campaign-specific suggestions,
// personalization plans and edit commands.
type Generator struct {
	provider Provider
	options  Options
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewGenerator creates a generator using provider with default sampling options.
func NewGenerator(provider Provider, options Options, log logrus.FieldLogger) *Generator {
	return &Generator{provider: provider, options: options, log: log, now: time.Now}
}

func (g *Generator) timestamp() string {
	return g.now().UTC().Format(time.RFC3339)
}

// Provider returns the underlying provider.
func (g *Generator) Provider() Provider { return g.provider }

// Generate returns a suggestion for req. Provider trouble never surfaces as
// an error: an unavailable provider yields a mock suggestion and a failed or
// malformed completion yields a fallback one. Only an invalid request fails.
func (g *Generator) Generate(ctx context.Context, req CopyRequest) (*Suggestion, error) {
	if err := ValidateCopyRequest(&req); err != nil {
		return nil, err
	}

	log := g.log.WithFields(logrus.Fields{
		"provider": g.provider.Name(),
		"campaign": req.CampaignName,
	})

	if !g.provider.IsAvailable(ctx) {
		log.Warn("llm provider unavailable, using mock suggestion")
		return MockSuggestion(req), nil
	}

	completion, err := g.provider.Generate(ctx, GenerateRequest{
		Model:   req.Model,
		Prompt:  BuildPrompt(req),
		Options: g.options,
	})
	if err != nil {
		log.WithError(err).Error("copy generation failed")
		return FallbackSuggestion(req), nil
	}

	s, err := ParseSuggestion(completion)
	if err != nil {
		log.WithError(err).Error("copy generation returned an unusable completion")
		return FallbackSuggestion(req), nil
	}
	if s.OriginalContent == "" {
		s.OriginalContent = req.OriginalContent
	}
	s.Source = g.provider.Name()
	return s, nil
}

// MockSuggestion is returned when no provider is reachable.
func MockSuggestion(req CopyRequest) *Suggestion {
	return &Suggestion{
		OriginalContent:  req.OriginalContent,
		GeneratedContent: fmt.Sprintf("[Mock AI] %s - Optimized for %s", req.OriginalContent, req.CampaignName),
		Reasoning:        fmt.Sprintf("Mock: Content personalized for %s in %s campaign", req.TargetAudience, req.CampaignName),
		Confidence:       0.75,
		Alternatives: []string{
			fmt.Sprintf("Mock Alternative 1: %s - Enhanced", req.OriginalContent),
			fmt.Sprintf("Mock Alternative 2: %s - Premium", req.OriginalContent),
		},
		Source: SourceMock,
	}
}

// FallbackSuggestion is returned when the provider fails mid-request.
func FallbackSuggestion(req CopyRequest) *Suggestion {
	titled := wordStartRe.ReplaceAllStringFunc(req.OriginalContent, strings.ToUpper)
	return &Suggestion{
		OriginalContent:  req.OriginalContent,
		GeneratedContent: fmt.Sprintf("[Enhanced] %s - Tailored for %s", titled, req.CampaignName),
		Reasoning: fmt.Sprintf("Fallback: Enhanced version created due to AI service unavailability. Applied basic improvements for %s.",
			req.TargetAudience),
		Confidence: 0.6,
		Alternatives: []string{
			fmt.Sprintf("Enhanced Alternative: %s with improved appeal", req.OriginalContent),
			fmt.Sprintf("Professional Version: %s - optimized for conversion", req.OriginalContent),
		},
		Source: SourceFallback,
	}
}
