package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Edit command actions.
const (
	ActionUpdateElement = "update_element"
	ActionAddElement    = "add_element"
	ActionRemoveElement = "remove_element"
	ActionModifyStyle   = "modify_style"
)

// commandTemperature caps sampling so commands stay consistent.
const commandTemperature = 0.3

// CommandTarget names the element a command applies to.
type CommandTarget struct {
	Selector   string `json:"selector" validate:"required"`
	CampaignID string `json:"campaignId" validate:"required"`
	VariantID  string `json:"variantId,omitempty"`
}

// CommandChanges carries what a command changes. Which fields are needed
// depends on the action.
type CommandChanges struct {
	Content    string            `json:"content,omitempty"`
	Styles     map[string]string `json:"styles,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func (c CommandChanges) empty() bool {
	return c.Content == "" && len(c.Styles) == 0 && len(c.Attributes) == 0
}

// CommandMetadata stamps a command.
type CommandMetadata struct {
	Timestamp string `json:"timestamp"`
	UserID    string `json:"userId,omitempty"`
	SessionID string `json:"sessionId"`
}

// EditCommand is a structured page edit for the builder to carry out.
type EditCommand struct {
	Action   string          `json:"action" validate:"required,oneof=update_element add_element remove_element modify_style"`
	Target   CommandTarget   `json:"target"`
	Changes  CommandChanges  `json:"changes"`
	Metadata CommandMetadata `json:"metadata"`
	// Source is the provider name, "mock" or "fallback".
	Source string `json:"source"`
}

// CommandRequest describes the edit the caller wants turned into a command.
type CommandRequest struct {
	Action  string         `json:"action" validate:"required,oneof=update_element add_element remove_element modify_style"`
	Target  CommandTarget  `json:"target"`
	Changes CommandChanges `json:"changes"`
	// SessionID is generated when empty.
	SessionID string `json:"sessionId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	Model     string `json:"model,omitempty"`
}

// validateCommandChanges requires styles for modify_style and some change
// for update_element and add_element.
func validateCommandChanges(sl validator.StructLevel) {
	var action string
	var changes CommandChanges
	switch c := sl.Current().Interface().(type) {
	case CommandRequest:
		action, changes = c.Action, c.Changes
	case EditCommand:
		action, changes = c.Action, c.Changes
	default:
		return
	}

	switch action {
	case ActionModifyStyle:
		if len(changes.Styles) == 0 {
			sl.ReportError(changes.Styles, "changes.styles", "Styles", "required", "")
		}
	case ActionUpdateElement, ActionAddElement:
		if changes.empty() {
			sl.ReportError(changes, "changes", "Changes", "required", "")
		}
	}
}

// ValidateCommandRequest checks the request fields and that the changes
// suit the action.
func ValidateCommandRequest(req *CommandRequest) error {
	return validate.Struct(req)
}

// ParseEditCommand extracts and validates an EditCommand from a completion.
func ParseEditCommand(completion string) (*EditCommand, error) {
	raw, err := ExtractJSON(completion)
	if err != nil {
		return nil, err
	}
	var c EditCommand
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode edit command: %w", err)
	}
	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid edit command: %w", err)
	}
	return &c, nil
}

// BuildCommandPrompt renders the edit command prompt for req.
func BuildCommandPrompt(req CommandRequest) string {
	var b strings.Builder
	b.WriteString("You turn page edit requests into structured edit commands for a landing page builder.\n\n")
	fmt.Fprintf(&b, "ACTION: %s\n\n", req.Action)
	b.WriteString("TARGET:\n")
	fmt.Fprintf(&b, "- Selector: %q\n", req.Target.Selector)
	fmt.Fprintf(&b, "- Campaign: %s\n", req.Target.CampaignID)
	if req.Target.VariantID != "" {
		fmt.Fprintf(&b, "- Variant: %s\n", req.Target.VariantID)
	}
	b.WriteString("\nREQUESTED CHANGES:\n")
	if req.Changes.Content != "" {
		fmt.Fprintf(&b, "- Content: %q\n", req.Changes.Content)
	}
	if len(req.Changes.Styles) > 0 {
		fmt.Fprintf(&b, "- Styles: %s\n", joinPairs(req.Changes.Styles, ": ", "; "))
	}
	if len(req.Changes.Attributes) > 0 {
		fmt.Fprintf(&b, "- Attributes: %s\n", joinPairs(req.Changes.Attributes, "=", ", "))
	}
	if req.Changes.empty() {
		b.WriteString("- none\n")
	}
	b.WriteString("\nRESPONSE FORMAT: You must respond with ONLY a valid JSON object in this exact format:\n")
	b.WriteString("{\n")
	fmt.Fprintf(&b, "  \"action\": %q,\n", req.Action)
	fmt.Fprintf(&b, "  \"target\": {\"selector\": %q, \"campaignId\": %q},\n", req.Target.Selector, req.Target.CampaignID)
	b.WriteString(`  "changes": {
    "content": "new content, if any",
    "styles": {"css-property": "value"},
    "attributes": {"attribute": "value"}
  }
}

Important:
- Keep the action and target exactly as given
- Use CSS property names in "styles" and HTML attribute names in "attributes"
- Omit change fields that are not needed
- Respond with ONLY the JSON object, no other text`)
	return b.String()
}

// joinPairs renders m in key order.
func joinPairs(m map[string]string, kv, sep string) string {
	pairs := make([]string, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		pairs = append(pairs, k+kv+m[k])
	}
	return strings.Join(pairs, sep)
}

// Command turns req into an edit command. The action, target and metadata
// always come from req; the model only refines the changes. Provider
// trouble yields the request echoed back as a mock or fallback command.
func (g *Generator) Command(ctx context.Context, req CommandRequest) (*EditCommand, error) {
	if err := ValidateCommandRequest(&req); err != nil {
		return nil, err
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	log := g.log.WithFields(logrus.Fields{
		"provider": g.provider.Name(),
		"action":   req.Action,
		"selector": req.Target.Selector,
		"session":  req.SessionID,
	})

	if !g.provider.IsAvailable(ctx) {
		log.Warn("llm provider unavailable, using mock edit command")
		return g.echoCommand(req, SourceMock), nil
	}

	opts := g.options
	if opts.Temperature == nil || *opts.Temperature > commandTemperature {
		opts.Temperature = Float(commandTemperature)
	}
	completion, err := g.provider.Generate(ctx, GenerateRequest{
		Model:   req.Model,
		Prompt:  BuildCommandPrompt(req),
		Options: opts,
	})
	if err != nil {
		log.WithError(err).Error("edit command generation failed")
		return g.echoCommand(req, SourceFallback), nil
	}

	answer, err := ParseEditCommand(completion)
	if err == nil && answer.Action != req.Action {
		err = fmt.Errorf("edit command changed action from %s to %s", req.Action, answer.Action)
	}
	if err != nil {
		log.WithError(err).Error("edit command generation returned an unusable completion")
		return g.echoCommand(req, SourceFallback), nil
	}

	cmd := g.echoCommand(req, g.provider.Name())
	cmd.Changes = answer.Changes
	return cmd, nil
}

// echoCommand builds the command req asks for, unchanged.
func (g *Generator) echoCommand(req CommandRequest, source string) *EditCommand {
	return &EditCommand{
		Action:  req.Action,
		Target:  req.Target,
		Changes: req.Changes,
		Metadata: CommandMetadata{
			Timestamp: g.timestamp(),
			UserID:    req.UserID,
			SessionID: req.SessionID,
		},
		Source: source,
	}
}
