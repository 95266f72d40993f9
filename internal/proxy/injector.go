package proxy

import (
	"bytes"
	"regexp"
	"strings"
)

var scriptElementRe = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)

// InjectScript inserts script once, immediately before the first literal
// </body>. Documents without </body> get it before </html>, and failing
// that it is appended at the end.
func InjectScript(body []byte, script string) []byte {
	// Try to inject before </body>
	if idx := bytes.Index(body, []byte("</body>")); idx != -1 {
		return insertAt(body, idx, script)
	}

	// Try to inject before </html>
	if idx := bytes.Index(body, []byte("</html>")); idx != -1 {
		return insertAt(body, idx, script)
	}

	// Last resort: append
	return insertAt(body, len(body), script)
}

func insertAt(body []byte, idx int, script string) []byte {
	result := make([]byte, 0, len(body)+len(script))
	result = append(result, body[:idx]...)
	result = append(result, script...)
	result = append(result, body[idx:]...)
	return result
}

// StripScripts removes every <script> element from html.
func StripScripts(html string) string {
	return scriptElementRe.ReplaceAllString(html, "")
}

// IsHTML reports whether a Content-Type may be treated as an HTML document.
// An empty type is accepted since many servers omit it.
func IsHTML(contentType string) bool {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType == "" {
		return true
	}
	return strings.Contains(contentType, "html") || strings.HasPrefix(contentType, "text/")
}

// PrepareOptions controls PrepareDocument.
type PrepareOptions struct {
	// Script is injected before </body>; empty skips injection.
	Script string
	// StripScripts removes upstream <script> elements first.
	StripScripts bool
}

// PrepareDocument strips (optionally), rewrites and injects page.
func PrepareDocument(page *Page, opts PrepareOptions) []byte {
	html := string(page.Body)
	if opts.StripScripts {
		html = StripScripts(html)
	}
	html = RewriteResourceURLs(html, page.URL)

	if opts.Script == "" {
		return []byte(html)
	}
	return InjectScript([]byte(html), opts.Script)
}
