package dom

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/atom"
)

// Replacement rewrites the copy of one element.
type Replacement struct {
	// Selector is a selector as posted by the picker.
	Selector string `json:"selector" validate:"required"`
	// Text replaces the element's text content.
	Text string `json:"text,omitempty"`
	// HTML, when set, replaces the inner HTML instead of Text.
	HTML string `json:"html,omitempty"`
	// Src and Alt apply to images. Text doubles as alt when Alt is empty.
	Src string `json:"src,omitempty" validate:"omitempty,url"`
	Alt string `json:"alt,omitempty"`
}

// Result reports what happened to one replacement.
type Result struct {
	Selector string `json:"selector"`
	Applied  bool   `json:"applied"`
	// Before is the element's content prior to the change.
	Before string `json:"before,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Report summarises an Apply call.
type Report struct {
	Results []Result `json:"results"`
	Applied int      `json:"applied"`
	Failed  int      `json:"failed"`
}

// Apply parses page, applies every replacement in order and returns the
// re-rendered document. A replacement whose selector matches nothing is
// reported and skipped; it does not fail the call.
func Apply(page string, replacements []Replacement, base *url.URL) (string, Report, error) {
	doc, err := ParseString(page)
	if err != nil {
		return "", Report{}, err
	}

	report := ApplyToDocument(doc, replacements, base)

	out, err := doc.Html()
	if err != nil {
		return "", report, fmt.Errorf("render html: %w", err)
	}
	return out, report, nil
}

// ApplyToDocument applies replacements to doc in place.
func ApplyToDocument(doc *goquery.Document, replacements []Replacement, base *url.URL) Report {
	report := Report{Results: make([]Result, 0, len(replacements))}
	for _, r := range replacements {
		res := applyOne(doc, r, base)
		if res.Applied {
			report.Applied++
		} else {
			report.Failed++
		}
		report.Results = append(report.Results, res)
	}
	return report
}

func applyOne(doc *goquery.Document, r Replacement, base *url.URL) Result {
	res := Result{Selector: r.Selector}

	sel, err := Resolve(doc, r.Selector)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	n := sel.Get(0)
	if n.DataAtom == atom.Img {
		before := Content(sel, base)
		res.Before = before.Src
		if r.Src != "" {
			sel.SetAttr("src", r.Src)
		}
		alt := r.Alt
		if alt == "" {
			alt = r.Text
		}
		if alt != "" {
			sel.SetAttr("alt", alt)
		}
		if r.Src == "" && alt == "" {
			res.Error = errEmptyImageReplacement.Error()
			return res
		}
		res.Applied = true
		return res
	}

	res.Before = Content(sel, base).Text
	if r.HTML != "" {
		sel.SetHtml(r.HTML)
	} else {
		sel.SetText(r.Text)
	}
	res.Applied = true
	return res
}

var errEmptyImageReplacement = errors.New("image replacement needs src, alt or text")
