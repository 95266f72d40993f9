package server

import (
	"embed"
	"net/http"

	"github.com/rs/cors"

	"github.com/standardbeagle/pagepick/internal/llm"
	"github.com/standardbeagle/pagepick/internal/middleware"
	"github.com/standardbeagle/pagepick/internal/proxy"
	"github.com/standardbeagle/pagepick/internal/respond"
	"github.com/standardbeagle/pagepick/internal/selection"
)

//go:embed pages/host.html pages/testpage.html
var pages embed.FS

// Version is reported by /api/health; the CLI overrides it.
var Version = "dev"

func (s *Server) routes() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/api/health", s.serveHealth)
	api.HandleFunc("/api/test-page", servePage("pages/testpage.html"))
	api.HandleFunc("/api/proxy/log", proxy.FetchLogHandler(s.fetcher.FetchLog()))
	api.HandleFunc("/api/apply", s.serveApply)
	selection.NewHandler(s.selections, s.hub, s.log.WithField("component", "selections")).Register(api)
	llm.NewHandler(s.generator, s.log.WithField("component", "llm")).Register(api)

	apiCORS := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	})

	mux := http.NewServeMux()
	// /proxy sets its own CORS headers.
	mux.Handle("/proxy", proxy.NewHandler(s.fetcher, s.script, s.cfg.Proxy, s.log.WithField("component", "proxy")))
	mux.Handle("/api/", apiCORS.Handler(api))
	mux.HandleFunc("/", s.serveHost)

	var h http.Handler = mux
	if s.cfg.Server.RateLimit > 0 {
		h = middleware.RateLimit(middleware.NewRateLimiter(s.cfg.Server.RateLimit, s.cfg.Server.RateBurst))(h)
	}
	h = middleware.RequestLogging(s.log)(h)
	if s.cfg.Server.TrustProxy {
		h = middleware.RealIP()(h)
	}
	return h
}

func (s *Server) serveHost(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respond.Error(w, http.StatusNotFound, "not found")
		return
	}
	servePage("pages/host.html")(w, r)
}

func servePage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			respond.MethodNotAllowed(w, "GET, HEAD")
			return
		}
		body, err := pages.ReadFile(name)
		if err != nil {
			respond.Error(w, http.StatusInternalServerError, "page unavailable")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			w.Write(body)
		}
	}
}

// Health is the /api/health response.
type Health struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Selections int    `json:"selections"`
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respond.MethodNotAllowed(w, "GET")
		return
	}
	respond.JSON(w, http.StatusOK, Health{
		Status:     "ok",
		Version:    Version,
		Selections: s.selections.Stats().AvailableEntries,
	})
}
