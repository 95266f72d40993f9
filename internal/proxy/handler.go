package proxy

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/standardbeagle/pagepick/internal/config"
	"github.com/standardbeagle/pagepick/internal/middleware"
	"github.com/standardbeagle/pagepick/internal/respond"
)

// Client-facing error messages. Upstream details are logged, never returned.
const (
	msgURLRequired = "URL parameter required"
	msgFetchFailed = "Failed to fetch target URL"
)

// Handler serves /proxy: fetch, rewrite, inject.
type Handler struct {
	fetcher *Fetcher
	script  string
	cfg     config.ProxyConfig
	log     logrus.FieldLogger
}

// NewHandler returns a proxy handler that injects script into every page.
func NewHandler(fetcher *Fetcher, script string, cfg config.ProxyConfig, log logrus.FieldLogger) *Handler {
	return &Handler{fetcher: fetcher, script: script, cfg: cfg, log: log}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.serveGet(w, r)
	case http.MethodOptions:
		setCORSHeaders(w.Header())
		w.WriteHeader(http.StatusOK)
	default:
		respond.MethodNotAllowed(w, "GET, OPTIONS")
	}
}

func (h *Handler) serveGet(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if strings.TrimSpace(target) == "" {
		respond.Error(w, http.StatusBadRequest, msgURLRequired)
		return
	}

	page, err := h.fetcher.Fetch(r.Context(), target)
	if err != nil {
		h.logFailure(r, target, err)
		if errors.Is(err, ErrMissingURL) {
			respond.Error(w, http.StatusBadRequest, msgURLRequired)
			return
		}
		respond.Error(w, http.StatusInternalServerError, msgFetchFailed)
		return
	}

	body := PrepareDocument(page, PrepareOptions{
		Script:       h.script,
		StripScripts: h.cfg.StripScripts,
	})

	hdr := w.Header()
	hdr.Set("Content-Type", "text/html; charset=utf-8")
	setCORSHeaders(hdr)
	hdr.Set("X-Frame-Options", "SAMEORIGIN")
	hdr.Set("X-Content-Type-Options", "nosniff")
	if csp := ContentSecurityPolicy(h.cfg.ConnectSrc); csp != "" {
		hdr.Set("Content-Security-Policy", csp)
	}
	hdr.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (h *Handler) logFailure(r *http.Request, target string, err error) {
	fields := logrus.Fields{
		"request_id": middleware.RequestID(r.Context()),
		"target":     target,
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		fields["upstream_status"] = statusErr.Code
	}
	h.log.WithFields(fields).WithError(err).Warn("proxy fetch failed")
}

func setCORSHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
}

// ContentSecurityPolicy builds a connect-src policy from sources, or ""
// when sources is empty.
func ContentSecurityPolicy(sources []string) string {
	var kept []string
	for _, s := range sources {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return "connect-src " + strings.Join(kept, " ")
}

// FetchLogHandler serves the fetch history: GET lists, DELETE clears.
// Query parameters: target (substring), failed (bool), limit.
func FetchLogHandler(l *FetchLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			q := r.URL.Query()
			filter := FetchFilter{Target: q.Get("target")}
			if v := q.Get("failed"); v != "" {
				failed, err := strconv.ParseBool(v)
				if err != nil {
					respond.Error(w, http.StatusBadRequest, "failed must be a boolean")
					return
				}
				filter.FailedOnly = failed
			}
			if v := q.Get("limit"); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil || n < 0 {
					respond.Error(w, http.StatusBadRequest, "limit must be a non-negative integer")
					return
				}
				filter.Limit = n
			}

			respond.JSON(w, http.StatusOK, map[string]any{
				"entries": l.Query(filter),
				"stats":   l.Stats(),
			})
		case http.MethodDelete:
			l.Clear()
			w.WriteHeader(http.StatusNoContent)
		default:
			respond.MethodNotAllowed(w, "GET, DELETE")
		}
	}
}
