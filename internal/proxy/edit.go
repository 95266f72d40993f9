package proxy

import (
	"context"

	"github.com/standardbeagle/pagepick/internal/dom"
	"github.com/standardbeagle/pagepick/internal/protocol"
)

// EditPage fetches target, applies replacements to the upstream document and
// prepares the result the same way /proxy does, so the preview keeps its
// resources and stays selectable.
//
// Scripts are stripped before the replacements run so positional selectors
// match the document the picker saw.
func EditPage(ctx context.Context, f *Fetcher, target string, replacements []dom.Replacement, opts PrepareOptions) ([]byte, dom.Report, error) {
	page, err := fetchPrepared(ctx, f, target, opts.StripScripts)
	if err != nil {
		return nil, dom.Report{}, err
	}

	edited, report, err := dom.Apply(string(page.Body), replacements, page.URL)
	if err != nil {
		return nil, report, err
	}

	page.Body = []byte(edited)
	opts.StripScripts = false
	return PrepareDocument(page, opts), report, nil
}

// InspectPage fetches target and lists its candidate elements with the
// selectors the picker would report for them. stripScripts must match the
// proxy setting so the selectors line up with the served document.
func InspectPage(ctx context.Context, f *Fetcher, target string, stripScripts bool, opts dom.InspectOptions) (*Page, []protocol.ElementData, error) {
	page, err := fetchPrepared(ctx, f, target, stripScripts)
	if err != nil {
		return nil, nil, err
	}
	doc, err := dom.ParseString(string(page.Body))
	if err != nil {
		return page, nil, err
	}
	return page, dom.Inspect(doc, page.URL, opts), nil
}

// fetchPrepared returns a copy of the fetched page, with scripts removed when
// stripScripts is set.
func fetchPrepared(ctx context.Context, f *Fetcher, target string, stripScripts bool) (*Page, error) {
	page, err := f.Fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	out := *page
	if stripScripts {
		out.Body = []byte(StripScripts(string(page.Body)))
	}
	return &out, nil
}
