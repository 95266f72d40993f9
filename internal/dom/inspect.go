package dom

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/standardbeagle/pagepick/internal/protocol"
)

// CandidateSelector lists the elements that usually carry editable copy.
const CandidateSelector = "h1, h2, h3, h4, h5, h6, p, a, button, img, li, label, blockquote, figcaption, td, th, span"

// DefaultInspectLimit caps Inspect when no limit is given.
const DefaultInspectLimit = 100

// InspectOptions narrows Inspect.
type InspectOptions struct {
	// Selector overrides CandidateSelector.
	Selector string
	// Limit caps the number of elements returned (0 = DefaultInspectLimit).
	Limit int
	// MaxText truncates text content (0 = no truncation).
	MaxText int
}

// Inspect lists the candidate elements of doc in document order, described
// exactly as the picker would post them. Elements without text or, for
// images, without a src are skipped, as are spans nested in another
// candidate.
func Inspect(doc *goquery.Document, base *url.URL, opts InspectOptions) []protocol.ElementData {
	query := opts.Selector
	if query == "" {
		query = CandidateSelector
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultInspectLimit
	}

	var out []protocol.ElementData
	doc.Find(query).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if opts.Selector == "" && goquery.NodeName(s) == "span" && s.ParentsFiltered(CandidateSelector).Length() > 0 {
			return true
		}

		d := Describe(s, base)
		switch d.Content.Type {
		case protocol.ContentImage:
			if d.Content.Src == "" {
				return true
			}
		default:
			if d.Content.Text == "" {
				return true
			}
		}
		if opts.MaxText > 0 {
			d.Content.Text = truncate(d.Content.Text, opts.MaxText)
			d.Content.HTML = ""
		}

		out = append(out, d)
		return len(out) < limit
	})
	return out
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
