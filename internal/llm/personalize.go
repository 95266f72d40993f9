package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// PlanVersion is stamped on every personalization result.
const PlanVersion = "1.0.0"

// personalizeMinTokens leaves room for one answer per element.
const personalizeMinTokens = 800

// ElementCopy is one campaign element sent for personalization.
type ElementCopy struct {
	Selector        string `json:"selector" validate:"required"`
	OriginalContent string `json:"originalContent" validate:"required"`
	// AIGenerated marks elements whose copy is meant to be machine written.
	AIGenerated  bool     `json:"aiGenerated,omitempty"`
	Restrictions []string `json:"restrictions,omitempty"`
	Guidance     string   `json:"guidance,omitempty"`
}

// PersonalizeRequest asks for campaign copy for several elements at once.
type PersonalizeRequest struct {
	CampaignID string        `json:"campaignId" validate:"required"`
	Elements   []ElementCopy `json:"elements" validate:"required,min=1,dive"`
	Model      string        `json:"model,omitempty"`
}

// PersonalizedElement pairs an element with its campaign copy.
type PersonalizedElement struct {
	Selector            string   `json:"selector" validate:"required"`
	OriginalContent     string   `json:"originalContent"`
	PersonalizedContent string   `json:"personalizedContent" validate:"required"`
	AIGenerated         bool     `json:"aiGenerated"`
	Restrictions        []string `json:"restrictions,omitempty"`
	Guidance            string   `json:"guidance,omitempty"`
}

// PlanMetadata stamps a personalization result.
type PlanMetadata struct {
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
	Version   string `json:"version"`
}

// Personalization is the per-element plan for one campaign.
type Personalization struct {
	CampaignID string                `json:"campaignId"`
	Elements   []PersonalizedElement `json:"elements" validate:"required,min=1,dive"`
	Metadata   PlanMetadata          `json:"metadata"`
	// Source is the provider name, "mock" or "fallback".
	Source string `json:"source"`
}

// ValidatePersonalizeRequest checks the required request fields.
func ValidatePersonalizeRequest(req *PersonalizeRequest) error {
	return validate.Struct(req)
}

// ParsePersonalization extracts and validates a Personalization from a
// completion. Metadata and Source are left for the caller.
func ParsePersonalization(completion string) (*Personalization, error) {
	raw, err := ExtractJSON(completion)
	if err != nil {
		return nil, err
	}
	var p Personalization
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode personalization: %w", err)
	}
	if err := validate.Struct(&p); err != nil {
		return nil, fmt.Errorf("invalid personalization: %w", err)
	}
	return &p, nil
}

// BuildPersonalizationPrompt renders the batch personalization prompt.
func BuildPersonalizationPrompt(req PersonalizeRequest) string {
	var b strings.Builder
	b.WriteString("You are a marketing content specialist. Your task is to personalize the copy of several page elements for one campaign.\n\n")
	fmt.Fprintf(&b, "CAMPAIGN: %s\n\n", req.CampaignID)
	b.WriteString("ELEMENTS:\n")
	for i, el := range req.Elements {
		fmt.Fprintf(&b, "%d. Selector: %q\n", i+1, el.Selector)
		fmt.Fprintf(&b, "   Original: %q\n", el.OriginalContent)
		if len(el.Restrictions) > 0 {
			fmt.Fprintf(&b, "   Restrictions: %s\n", strings.Join(el.Restrictions, ", "))
		}
		if el.Guidance != "" {
			fmt.Fprintf(&b, "   Guidance: %s\n", el.Guidance)
		}
	}
	b.WriteString("\nRESPONSE FORMAT: You must respond with ONLY a valid JSON object in this exact format:\n")
	b.WriteString("{\n")
	fmt.Fprintf(&b, "  \"campaignId\": %q,\n", req.CampaignID)
	b.WriteString(`  "elements": [
    {
      "selector": "the element selector, unchanged",
      "originalContent": "the original content",
      "personalizedContent": "your personalized content here",
      "aiGenerated": true
    }
  ]
}

Important:
- Return exactly one entry per element, in the same order
- Keep every selector exactly as given
- Follow each element's restrictions and guidance
- Keep the meaning of the original but make it specific to the campaign
- Respond with ONLY the JSON object, no other text`)
	return b.String()
}

// Personalize writes campaign copy for every element of req. Like Generate,
// provider trouble yields a mock or fallback plan rather than an error.
func (g *Generator) Personalize(ctx context.Context, req PersonalizeRequest) (*Personalization, error) {
	if err := ValidatePersonalizeRequest(&req); err != nil {
		return nil, err
	}

	log := g.log.WithFields(logrus.Fields{
		"provider": g.provider.Name(),
		"campaign": req.CampaignID,
		"elements": len(req.Elements),
	})

	if !g.provider.IsAvailable(ctx) {
		log.Warn("llm provider unavailable, using mock personalization")
		return g.stampPlan(MockPersonalization(req)), nil
	}

	opts := g.options
	opts.NumPredict = max(opts.NumPredict, personalizeMinTokens)
	completion, err := g.provider.Generate(ctx, GenerateRequest{
		Model:   req.Model,
		Prompt:  BuildPersonalizationPrompt(req),
		Options: opts,
	})
	if err != nil {
		log.WithError(err).Error("personalization failed")
		return g.stampPlan(FallbackPersonalization(req)), nil
	}

	answer, err := ParsePersonalization(completion)
	if err != nil {
		log.WithError(err).Error("personalization returned an unusable completion")
		return g.stampPlan(FallbackPersonalization(req)), nil
	}

	plan, missing := mergePersonalization(req, answer)
	if missing > 0 {
		log.WithField("missing", missing).Warn("personalization skipped elements, using fallback copy for them")
	}
	plan.Source = g.provider.Name()
	return g.stampPlan(plan), nil
}

// mergePersonalization lays the model's copy over the requested elements in
// request order. Elements the model left out get fallback copy.
func mergePersonalization(req PersonalizeRequest, answer *Personalization) (*Personalization, int) {
	bySelector := make(map[string]string, len(answer.Elements))
	for _, el := range answer.Elements {
		if _, seen := bySelector[el.Selector]; !seen {
			bySelector[el.Selector] = el.PersonalizedContent
		}
	}

	missing := 0
	plan := &Personalization{CampaignID: req.CampaignID}
	for _, el := range req.Elements {
		content, ok := bySelector[el.Selector]
		if !ok {
			missing++
			content = fallbackElementCopy(el, req.CampaignID)
		}
		plan.Elements = append(plan.Elements, personalized(el, content))
	}
	return plan, missing
}

func (g *Generator) stampPlan(p *Personalization) *Personalization {
	now := g.timestamp()
	p.Metadata = PlanMetadata{CreatedAt: now, UpdatedAt: now, Version: PlanVersion}
	return p
}

// MockPersonalization is returned when no provider is reachable.
func MockPersonalization(req PersonalizeRequest) *Personalization {
	p := &Personalization{CampaignID: req.CampaignID, Source: SourceMock}
	for _, el := range req.Elements {
		p.Elements = append(p.Elements, personalized(el,
			fmt.Sprintf("[Mock AI] %s - Personalized for %s", el.OriginalContent, req.CampaignID)))
	}
	return p
}

// FallbackPersonalization is returned when the provider fails mid-request.
func FallbackPersonalization(req PersonalizeRequest) *Personalization {
	p := &Personalization{CampaignID: req.CampaignID, Source: SourceFallback}
	for _, el := range req.Elements {
		p.Elements = append(p.Elements, personalized(el, fallbackElementCopy(el, req.CampaignID)))
	}
	return p
}

func fallbackElementCopy(el ElementCopy, campaignID string) string {
	return fmt.Sprintf("[Enhanced] %s - Optimized for %s campaign", el.OriginalContent, campaignID)
}

func personalized(el ElementCopy, content string) PersonalizedElement {
	return PersonalizedElement{
		Selector:            el.Selector,
		OriginalContent:     el.OriginalContent,
		PersonalizedContent: content,
		AIGenerated:         el.AIGenerated,
		Restrictions:        el.Restrictions,
		Guidance:            el.Guidance,
	}
}
