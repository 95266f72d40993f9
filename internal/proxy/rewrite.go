package proxy

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	// src="/x" and href="/x", but not protocol-relative src="//cdn".
	rootAttrRe = regexp.MustCompile(`\b(src|href)="/([^/])`)
	// src="./x" and href="./x".
	dotAttrRe = regexp.MustCompile(`\b(src|href)="\./`)
	// url(/x), url('/x') and url("/x"), but not url(//cdn).
	rootCSSURLRe = regexp.MustCompile(`url\(\s*['"]?/([^/'")\s][^'")]*)?['"]?\s*\)`)
	// the last path segment.
	lastSegmentRe = regexp.MustCompile(`/[^/]*$`)
)

// Origin returns scheme://host[:port] of u.
func Origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}

// BasePath returns the directory part of u's path, always ending in "/".
// "/dir/page.html" becomes "/dir/".
func BasePath(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		return "/"
	}
	return lastSegmentRe.ReplaceAllString(p, "/")
}

// RewriteResourceURLs turns root-relative and current-directory-relative
// src/href attributes and CSS url() references into absolute URLs on base.
// The rewrite is textual. Forms it does not recognise (../, single quoted or
// unquoted attributes, protocol-relative) are left as they are.
func RewriteResourceURLs(html string, base *url.URL) string {
	origin := Origin(base)
	dir := origin + BasePath(base)

	html = rootAttrRe.ReplaceAllStringFunc(html, func(m string) string {
		sub := rootAttrRe.FindStringSubmatch(m)
		return sub[1] + `="` + origin + "/" + sub[2]
	})
	html = dotAttrRe.ReplaceAllStringFunc(html, func(m string) string {
		sub := dotAttrRe.FindStringSubmatch(m)
		return sub[1] + `="` + dir
	})
	html = rootCSSURLRe.ReplaceAllStringFunc(html, func(m string) string {
		sub := rootCSSURLRe.FindStringSubmatch(m)
		return "url(" + origin + "/" + sub[1] + ")"
	})
	return html
}

// IsInternalTarget reports whether target contains one of markers. Internal
// targets are fetched without browser headers.
func IsInternalTarget(target string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(target, m) {
			return true
		}
	}
	return false
}
