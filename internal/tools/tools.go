// Package tools exposes the page inspection, copy application, copy
// generation, personalization and edit command operations as MCP tools.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/standardbeagle/pagepick/internal/dom"
	"github.com/standardbeagle/pagepick/internal/llm"
	"github.com/standardbeagle/pagepick/internal/protocol"
	"github.com/standardbeagle/pagepick/internal/proxy"
)

// Tool names.
const (
	ToolInspectPage  = "inspect_page"
	ToolApplyCopy    = "apply_copy"
	ToolGenerateCopy = "generate_copy"
	ToolPersonalize  = "personalize_campaign"
	ToolEditCommand  = "generate_edit_command"
)

// InspectInput defines input for the inspect_page tool.
type InspectInput struct {
	URL      string `json:"url" jsonschema:"Absolute http(s) URL of the page to inspect"`
	Selector string `json:"selector,omitempty" jsonschema:"CSS selector limiting which elements are listed (default: headings, paragraphs, links, buttons, images and similar)"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum number of elements (default: 100)"`
	MaxText  int    `json:"max_text,omitempty" jsonschema:"Truncate element text to this many characters (default: no truncation)"`
}

// InspectOutput defines output for the inspect_page tool.
type InspectOutput struct {
	URL      string                 `json:"url"`
	Status   int                    `json:"status"`
	Count    int                    `json:"count"`
	Elements []protocol.ElementData `json:"elements"`
}

// ApplyInput defines input for the apply_copy tool.
type ApplyInput struct {
	URL          string            `json:"url" jsonschema:"Absolute http(s) URL of the page to edit"`
	Replacements []dom.Replacement `json:"replacements" jsonschema:"Replacements to apply in order: {selector, text | html | src, alt}"`
	InjectPicker bool              `json:"inject_picker,omitempty" jsonschema:"Inject the element picker so the result stays selectable (default: false)"`
}

// ApplyOutput defines output for the apply_copy tool.
type ApplyOutput struct {
	URL    string     `json:"url"`
	HTML   string     `json:"html"`
	Report dom.Report `json:"report"`
}

// GenerateInput defines input for the generate_copy tool.
type GenerateInput struct {
	OriginalContent string   `json:"original_content" jsonschema:"The current copy of the element"`
	CampaignName    string   `json:"campaign_name" jsonschema:"Campaign the new copy is written for"`
	TargetAudience  string   `json:"target_audience" jsonschema:"Audience the new copy should speak to"`
	Restrictions    []string `json:"restrictions,omitempty" jsonschema:"Things the copy must avoid or respect"`
	Guidance        string   `json:"guidance,omitempty" jsonschema:"Free-form direction for tone or content"`
	Model           string   `json:"model,omitempty" jsonschema:"Model override for this request"`
}

// GenerateOutput defines output for the generate_copy tool.
type GenerateOutput struct {
	GeneratedContent string   `json:"generated_content"`
	Reasoning        string   `json:"reasoning"`
	Confidence       float64  `json:"confidence"`
	Alternatives     []string `json:"alternatives"`
	Source           string   `json:"source"`
}

// PersonalizeInput defines input for the personalize_campaign tool.
type PersonalizeInput struct {
	CampaignID string            `json:"campaign_id" jsonschema:"Campaign the copy is written for"`
	Elements   []llm.ElementCopy `json:"elements" jsonschema:"Elements to personalize: {selector, originalContent, aiGenerated, restrictions, guidance}"`
	Model      string            `json:"model,omitempty" jsonschema:"Model override for this request"`
}

// PersonalizeOutput defines output for the personalize_campaign tool.
type PersonalizeOutput struct {
	CampaignID string                    `json:"campaign_id"`
	Elements   []llm.PersonalizedElement `json:"elements"`
	Metadata   llm.PlanMetadata          `json:"metadata"`
	Source     string                    `json:"source"`
}

// EditCommandInput defines input for the generate_edit_command tool.
type EditCommandInput struct {
	Action     string            `json:"action" jsonschema:"One of update_element, add_element, remove_element, modify_style"`
	Selector   string            `json:"selector" jsonschema:"Selector of the target element"`
	CampaignID string            `json:"campaign_id" jsonschema:"Campaign the edit belongs to"`
	VariantID  string            `json:"variant_id,omitempty" jsonschema:"A/B variant the edit belongs to"`
	Content    string            `json:"content,omitempty" jsonschema:"New content"`
	Styles     map[string]string `json:"styles,omitempty" jsonschema:"CSS properties to set, required for modify_style"`
	Attributes map[string]string `json:"attributes,omitempty" jsonschema:"HTML attributes to set"`
	SessionID  string            `json:"session_id,omitempty" jsonschema:"Session the command belongs to (default: a new id)"`
	Model      string            `json:"model,omitempty" jsonschema:"Model override for this request"`
}

// EditCommandOutput defines output for the generate_edit_command tool.
type EditCommandOutput struct {
	Command llm.EditCommand `json:"command"`
}

// PageTools holds what the tools need to fetch, edit and rewrite pages.
type PageTools struct {
	fetcher      *proxy.Fetcher
	generator    *llm.Generator
	script       string
	stripScripts bool
	log          logrus.FieldLogger
}

// NewPageTools creates the tool set. script is the rendered picker, used by
// apply_copy when inject_picker is set.
func NewPageTools(fetcher *proxy.Fetcher, generator *llm.Generator, script string, stripScripts bool, log logrus.FieldLogger) *PageTools {
	return &PageTools{
		fetcher:      fetcher,
		generator:    generator,
		script:       script,
		stripScripts: stripScripts,
		log:          log,
	}
}

// Register adds every tool to server.
func (pt *PageTools) Register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name: ToolInspectPage,
		Description: `Fetch a page and list the elements whose copy can be edited.

Each element carries the selector the in-page picker would report for it, so
it can be passed straight to apply_copy.

Examples:
  inspect_page {url: "https://example.com"}
  inspect_page {url: "https://example.com", selector: "h1, h2", max_text: 80}`,
	}, pt.makeInspectHandler())

	mcp.AddTool(server, &mcp.Tool{
		Name: ToolApplyCopy,
		Description: `Apply copy replacements to a page and return the edited HTML.

Relative references in the result are rewritten to absolute URLs so the page
renders outside its origin. Replacements whose selector matches nothing are
reported, not fatal.

Example:
  apply_copy {url: "https://example.com", replacements: [{selector: "#headline", text: "New headline"}]}`,
	}, pt.makeApplyHandler())

	mcp.AddTool(server, &mcp.Tool{
		Name: ToolGenerateCopy,
		Description: `Suggest improved marketing copy for one element.

Falls back to a canned suggestion (source "mock" or "fallback") when the
language model is unavailable or answers with something unusable.

Example:
  generate_copy {original_content: "Welcome", campaign_name: "Spring Sale", target_audience: "students"}`,
	}, pt.makeGenerateHandler())

	mcp.AddTool(server, &mcp.Tool{
		Name: ToolPersonalize,
		Description: `Personalize the copy of several elements for one campaign in a single request.

Elements come back in request order. Falls back to canned copy (source
"mock" or "fallback") when the language model is unavailable or unusable.

Example:
  personalize_campaign {campaign_id: "spring-sale", elements: [{selector: "#headline", originalContent: "Welcome"}]}`,
	}, pt.makePersonalizeHandler())

	mcp.AddTool(server, &mcp.Tool{
		Name: ToolEditCommand,
		Description: `Turn a requested page edit into a structured edit command.

Actions: update_element, add_element, remove_element, modify_style. The
model may refine the changes; action and target are kept as given.

Example:
  generate_edit_command {action: "modify_style", selector: "#headline", campaign_id: "spring-sale", styles: {color: "red"}}`,
	}, pt.makeEditCommandHandler())
}

func (pt *PageTools) makeInspectHandler() func(context.Context, *mcp.CallToolRequest, InspectInput) (*mcp.CallToolResult, InspectOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input InspectInput) (*mcp.CallToolResult, InspectOutput, error) {
		emptyOutput := InspectOutput{Elements: []protocol.ElementData{}}

		if strings.TrimSpace(input.URL) == "" {
			return errorResult("Missing required parameter: url"), emptyOutput, nil
		}
		if input.Limit < 0 || input.MaxText < 0 {
			return errorResult("limit and max_text must not be negative"), emptyOutput, nil
		}

		page, elements, err := proxy.InspectPage(ctx, pt.fetcher, input.URL, pt.stripScripts, dom.InspectOptions{
			Selector: input.Selector,
			Limit:    input.Limit,
			MaxText:  input.MaxText,
		})
		if err != nil {
			pt.log.WithField("target", input.URL).WithError(err).Warn("inspect failed")
			return errorResult(fmt.Sprintf("inspect %s: %v", input.URL, err)), emptyOutput, nil
		}

		if elements == nil {
			elements = []protocol.ElementData{}
		}
		return nil, InspectOutput{
			URL:      page.URL.String(),
			Status:   page.Status,
			Count:    len(elements),
			Elements: elements,
		}, nil
	}
}

func (pt *PageTools) makeApplyHandler() func(context.Context, *mcp.CallToolRequest, ApplyInput) (*mcp.CallToolResult, ApplyOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ApplyInput) (*mcp.CallToolResult, ApplyOutput, error) {
		emptyOutput := ApplyOutput{Report: dom.Report{Results: []dom.Result{}}}

		if strings.TrimSpace(input.URL) == "" {
			return errorResult("Missing required parameter: url"), emptyOutput, nil
		}
		if len(input.Replacements) == 0 {
			return errorResult("Missing or empty required parameter: replacements"), emptyOutput, nil
		}
		for i := range input.Replacements {
			if err := protocol.Validate(&input.Replacements[i]); err != nil {
				return errorResult(fmt.Sprintf("replacements[%d]: %s", i, describeValidation(err))), emptyOutput, nil
			}
		}

		opts := proxy.PrepareOptions{StripScripts: pt.stripScripts}
		if input.InjectPicker {
			opts.Script = pt.script
		}
		body, report, err := proxy.EditPage(ctx, pt.fetcher, input.URL, input.Replacements, opts)
		if err != nil {
			pt.log.WithField("target", input.URL).WithError(err).Warn("apply failed")
			return errorResult(fmt.Sprintf("apply %s: %v", input.URL, err)), emptyOutput, nil
		}

		pt.log.WithFields(logrus.Fields{
			"target":  input.URL,
			"applied": report.Applied,
			"failed":  report.Failed,
		}).Info("copy applied")

		if report.Results == nil {
			report.Results = []dom.Result{}
		}
		return nil, ApplyOutput{URL: input.URL, HTML: string(body), Report: report}, nil
	}
}

func (pt *PageTools) makeGenerateHandler() func(context.Context, *mcp.CallToolRequest, GenerateInput) (*mcp.CallToolResult, GenerateOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input GenerateInput) (*mcp.CallToolResult, GenerateOutput, error) {
		emptyOutput := GenerateOutput{Alternatives: []string{}}

		copyReq := llm.CopyRequest{
			OriginalContent: input.OriginalContent,
			CampaignName:    input.CampaignName,
			TargetAudience:  input.TargetAudience,
			Restrictions:    input.Restrictions,
			Guidance:        input.Guidance,
			Model:           input.Model,
		}
		if err := llm.ValidateCopyRequest(&copyReq); err != nil {
			return errorResult("Missing required parameters: " + describeValidation(err)), emptyOutput, nil
		}

		s, err := pt.generator.Generate(ctx, copyReq)
		if err != nil {
			return errorResult(err.Error()), emptyOutput, nil
		}

		out := GenerateOutput{
			GeneratedContent: s.GeneratedContent,
			Reasoning:        s.Reasoning,
			Confidence:       s.Confidence,
			Alternatives:     s.Alternatives,
			Source:           s.Source,
		}
		if out.Alternatives == nil {
			out.Alternatives = []string{}
		}
		return nil, out, nil
	}
}

func (pt *PageTools) makePersonalizeHandler() func(context.Context, *mcp.CallToolRequest, PersonalizeInput) (*mcp.CallToolResult, PersonalizeOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input PersonalizeInput) (*mcp.CallToolResult, PersonalizeOutput, error) {
		emptyOutput := PersonalizeOutput{Elements: []llm.PersonalizedElement{}}

		plan, err := pt.generator.Personalize(ctx, llm.PersonalizeRequest{
			CampaignID: input.CampaignID,
			Elements:   input.Elements,
			Model:      input.Model,
		})
		if err != nil {
			return errorResult("Invalid parameters: " + describeValidation(err)), emptyOutput, nil
		}

		pt.log.WithFields(logrus.Fields{
			"campaign": plan.CampaignID,
			"elements": len(plan.Elements),
			"source":   plan.Source,
		}).Info("campaign personalized")

		return nil, PersonalizeOutput{
			CampaignID: plan.CampaignID,
			Elements:   plan.Elements,
			Metadata:   plan.Metadata,
			Source:     plan.Source,
		}, nil
	}
}

func (pt *PageTools) makeEditCommandHandler() func(context.Context, *mcp.CallToolRequest, EditCommandInput) (*mcp.CallToolResult, EditCommandOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input EditCommandInput) (*mcp.CallToolResult, EditCommandOutput, error) {
		cmd, err := pt.generator.Command(ctx, llm.CommandRequest{
			Action: input.Action,
			Target: llm.CommandTarget{
				Selector:   input.Selector,
				CampaignID: input.CampaignID,
				VariantID:  input.VariantID,
			},
			Changes: llm.CommandChanges{
				Content:    input.Content,
				Styles:     input.Styles,
				Attributes: input.Attributes,
			},
			SessionID: input.SessionID,
			Model:     input.Model,
		})
		if err != nil {
			return errorResult("Invalid parameters: " + describeValidation(err)), EditCommandOutput{}, nil
		}
		return nil, EditCommandOutput{Command: *cmd}, nil
	}
}

// describeValidation lists the failing fields of a validation error.
func describeValidation(err error) string {
	var perr *protocol.ValidationError
	if errors.As(err, &perr) {
		fields := make([]string, 0, len(perr.Fields))
		for _, f := range perr.Fields {
			fields = append(fields, f.Field)
		}
		return strings.Join(fields, ", ")
	}
	if fields := llm.InvalidFields(err); fields != nil {
		return strings.Join(fields, ", ")
	}
	return err.Error()
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}
