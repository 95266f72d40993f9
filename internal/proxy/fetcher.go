package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"

	"github.com/standardbeagle/pagepick/internal/config"
	"github.com/standardbeagle/pagepick/internal/middleware"
)

// Browser-like request headers sent to external targets.
const (
	acceptHeader         = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
	acceptLanguageHeader = "en-US,en;q=0.5"
	acceptEncodingHeader = "gzip, deflate"
)

// Page is a fetched upstream document, decoded to UTF-8.
type Page struct {
	// Target is the URL as requested.
	Target string
	// URL is the final URL after redirects; references are resolved against it.
	URL         *url.URL
	Status      int
	ContentType string
	Body        []byte
}

// Fetcher performs the single outbound GET behind every proxy request.
// It never retries.
type Fetcher struct {
	client   *http.Client
	cfg      config.ProxyConfig
	log      logrus.FieldLogger
	fetchLog *FetchLog
}

// FetcherOption customises a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the default client. Its Timeout is left alone;
// the per-fetch deadline comes from the configuration.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = c }
}

// WithFetchLog records fetches into l instead of a private log.
func WithFetchLog(l *FetchLog) FetcherOption {
	return func(f *Fetcher) { f.fetchLog = l }
}

// NewFetcher creates a fetcher for cfg.
func NewFetcher(cfg config.ProxyConfig, log logrus.FieldLogger, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{cfg: cfg, log: log}
	for _, opt := range opts {
		opt(f)
	}
	if f.fetchLog == nil {
		f.fetchLog = NewFetchLog(cfg.FetchLogSize)
	}
	if f.client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		// Content-Encoding is undone by DecodeBody so every codec behaves the same.
		transport.DisableCompression = true
		f.client = &http.Client{
			Transport: &middleware.LoggingRoundTripper{Transport: transport, Logger: log},
		}
	}
	return f
}

// FetchLog returns the fetch history.
func (f *Fetcher) FetchLog() *FetchLog {
	return f.fetchLog
}

// Fetch retrieves target and returns its decoded body. Every call, successful
// or not, is recorded in the fetch log.
func (f *Fetcher) Fetch(ctx context.Context, target string) (*Page, error) {
	start := time.Now()
	rec := FetchRecord{
		ID:        uuid.New().String(),
		Timestamp: start,
		Target:    target,
	}

	page, err := f.fetch(ctx, strings.TrimSpace(target), &rec)

	rec.Duration = time.Since(start)
	if err != nil {
		rec.Error = err.Error()
	} else {
		rec.Bytes = len(page.Body)
	}
	f.fetchLog.Record(rec)
	return page, err
}

func (f *Fetcher) fetch(ctx context.Context, target string, rec *FetchRecord) (*Page, error) {
	if target == "" {
		return nil, ErrMissingURL
	}

	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, target)
	}
	if !HostAllowed(u.Hostname(), f.cfg.AllowedHosts) {
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, u.Hostname())
	}

	if f.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.FetchTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	rec.Internal = IsInternalTarget(target, f.cfg.InternalMarkers)
	if !rec.Internal {
		f.setBrowserHeaders(req)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()

	rec.Status = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if !IsHTML(contentType) {
		return nil, fmt.Errorf("%w: %s", ErrNotHTML, contentType)
	}

	decoded, err := DecodeBody(resp.Body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	defer decoded.Close()

	var body io.Reader = decoded
	if utf8, err := charset.NewReader(decoded, contentType); err == nil {
		body = utf8
	}

	data, err := readLimited(body, f.cfg.MaxBodyBytes)
	if err != nil {
		return nil, err
	}

	final := u
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL
	}

	f.log.WithFields(logrus.Fields{
		"request_id": middleware.RequestID(ctx),
		"target":     u.Redacted(),
		"status":     resp.StatusCode,
		"bytes":      len(data),
		"internal":   rec.Internal,
	}).Debug("fetched upstream document")

	return &Page{
		Target:      target,
		URL:         final,
		Status:      resp.StatusCode,
		ContentType: contentType,
		Body:        data,
	}, nil
}

func (f *Fetcher) setBrowserHeaders(req *http.Request) {
	ua := f.cfg.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", acceptLanguageHeader)
	req.Header.Set("Accept-Encoding", acceptEncodingHeader)
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, limit)
	}
	return data, nil
}

// HostAllowed reports whether host passes the allow-list. An empty list
// allows every host. Entries starting with "." match any subdomain.
func HostAllowed(host string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		switch {
		case a == "":
		case strings.HasPrefix(a, "."):
			if strings.HasSuffix(host, a) || host == a[1:] {
				return true
			}
		case host == a:
			return true
		}
	}
	return false
}
