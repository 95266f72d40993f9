// Package dom mirrors the picker's selector and content algorithms over
// parsed HTML, and applies copy replacements to the elements they identify.
package dom

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNoMatch is returned when a selector resolves to no element.
var ErrNoMatch = errors.New("no element matches selector")

// Parse reads an HTML document.
func Parse(r io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// ParseString reads an HTML document from s.
func ParseString(s string) (*goquery.Document, error) {
	return Parse(strings.NewReader(s))
}

// Selector computes the same selector the picker posts for n.
//
// An element with an id collapses to "#id". Otherwise each element from n up
// to, but excluding, <body> contributes tag[.class...][:nth-child(k)], where
// k counts element siblings from 1 and is omitted for an only child. Ancestor
// ids do not shorten the path.
func Selector(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	if id := attr(n, "id"); id != "" {
		return "#" + id
	}

	var path []string
	for cur := n; cur != nil && cur.Type == html.ElementNode && cur.DataAtom != atom.Body; cur = cur.Parent {
		segment := strings.ToLower(cur.Data)

		if classes := splitClasses(attr(cur, "class")); len(classes) > 0 {
			segment += "." + strings.Join(classes, ".")
		}

		if cur.Parent != nil {
			if siblings := elementChildren(cur.Parent); len(siblings) > 1 {
				segment += ":nth-child(" + strconv.Itoa(indexOf(siblings, cur)+1) + ")"
			}
		}

		path = append([]string{segment}, path...)
	}
	return strings.Join(path, " > ")
}

// splitClasses splits on single spaces and drops blank tokens, the way the
// picker does with className.split(' ').
func splitClasses(class string) []string {
	var out []string
	for _, c := range strings.Split(class, " ") {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out
}

func elementChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

func indexOf(nodes []*html.Node, n *html.Node) int {
	for i, c := range nodes {
		if c == n {
			return i
		}
	}
	return -1
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val
		}
	}
	return ""
}

// Resolve finds the element a picker selector points at. Structural
// selectors are anchored at <body> first so they match the element the
// picker walked from; ids the CSS parser rejects are matched literally.
func Resolve(doc *goquery.Document, selector string) (*goquery.Selection, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, fmt.Errorf("%w: empty selector", ErrNoMatch)
	}

	if id, ok := strings.CutPrefix(selector, "#"); ok && !strings.ContainsAny(id, " >") {
		if m, err := cascadia.Compile(selector); err == nil {
			if sel := doc.FindMatcher(m); sel.Length() > 0 {
				return sel.First(), nil
			}
		}
		sel := doc.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
			v, _ := s.Attr("id")
			return v == id
		})
		if sel.Length() == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoMatch, selector)
		}
		return sel.First(), nil
	}

	anchored, err := cascadia.Compile("body > " + selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	if sel := doc.FindMatcher(anchored); sel.Length() > 0 {
		return sel.First(), nil
	}

	// Elements outside <body> carry their full path from <html>.
	loose := cascadia.MustCompile(selector)
	if sel := doc.FindMatcher(loose); sel.Length() > 0 {
		return sel.First(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoMatch, selector)
}
