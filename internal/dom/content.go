package dom

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/standardbeagle/pagepick/internal/protocol"
)

// Content mirrors the picker's content extraction. Images report their src,
// resolved against base as element.src is in a browser, and their alt text.
// Everything else reports trimmed text content and inner HTML.
func Content(sel *goquery.Selection, base *url.URL) protocol.Content {
	n := sel.Get(0)
	if n != nil && n.DataAtom == atom.Img {
		alt := attr(n, "alt")
		return protocol.Content{
			Type: protocol.ContentImage,
			Src:  resolveURL(attr(n, "src"), base),
			Alt:  alt,
			Text: alt,
		}
	}

	inner, _ := sel.Html()
	return protocol.Content{
		Type: protocol.ContentText,
		Text: strings.TrimSpace(sel.Text()),
		HTML: inner,
	}
}

// Describe builds the payload the picker would post for the first element of sel.
func Describe(sel *goquery.Selection, base *url.URL) protocol.ElementData {
	n := sel.Get(0)
	return protocol.ElementData{
		Selector:  Selector(n),
		Content:   Content(sel, base),
		TagName:   strings.ToLower(n.Data),
		ClassName: attr(n, "class"),
		ID:        attr(n, "id"),
	}
}

// DescribeNode is Describe for a bare node.
func DescribeNode(n *html.Node, base *url.URL) protocol.ElementData {
	return Describe(goquery.NewDocumentFromNode(n).Selection, base)
}

func resolveURL(ref string, base *url.URL) string {
	if ref == "" || base == nil {
		return ref
	}
	u, err := base.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return u.String()
}
