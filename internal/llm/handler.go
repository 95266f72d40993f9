package llm

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/standardbeagle/pagepick/internal/respond"
)

// Handler serves the copy generation endpoints.
type Handler struct {
	gen *Generator
	log logrus.FieldLogger
}

// NewHandler creates the HTTP handler for gen.
func NewHandler(gen *Generator, log logrus.FieldLogger) *Handler {
	return &Handler{gen: gen, log: log}
}

// Register adds the LLM routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/generate", h.serveGenerate)
	mux.HandleFunc("/api/personalize", h.servePersonalize)
	mux.HandleFunc("/api/commands", h.serveCommand)
	mux.HandleFunc("/api/llm/health", h.serveHealth)
	mux.HandleFunc("/api/llm/models", h.serveModels)
}

// Health is the /api/llm/health response.
type Health struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Available bool   `json:"available"`
}

func (h *Handler) serveGenerate(w http.ResponseWriter, r *http.Request) {
	var req CopyRequest
	if !decodePost(w, r, &req) {
		return
	}
	s, err := h.gen.Generate(r.Context(), req)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, s)
}

func (h *Handler) servePersonalize(w http.ResponseWriter, r *http.Request) {
	var req PersonalizeRequest
	if !decodePost(w, r, &req) {
		return
	}
	p, err := h.gen.Personalize(r.Context(), req)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, p)
}

func (h *Handler) serveCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if !decodePost(w, r, &req) {
		return
	}
	cmd, err := h.gen.Command(r.Context(), req)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, cmd)
}

// decodePost answers non-POST requests and undecodable bodies itself and
// reports whether the handler should continue.
func decodePost(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		respond.MethodNotAllowed(w, "POST")
		return false
	}
	if err := respond.DecodeJSON(r, v); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// writeRequestError answers 400, listing the rejected fields when err is a
// validation error.
func writeRequestError(w http.ResponseWriter, err error) {
	if fields := InvalidFields(err); fields != nil {
		respond.JSON(w, http.StatusBadRequest, map[string]any{
			"error":  "invalid request fields",
			"fields": fields,
		})
		return
	}
	respond.Error(w, http.StatusBadRequest, err.Error())
}

func (h *Handler) serveHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respond.MethodNotAllowed(w, "GET")
		return
	}
	p := h.gen.Provider()
	respond.JSON(w, http.StatusOK, Health{
		Provider:  p.Name(),
		Model:     p.Model(),
		Available: p.IsAvailable(r.Context()),
	})
}

func (h *Handler) serveModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respond.MethodNotAllowed(w, "GET")
		return
	}
	models, err := h.gen.Provider().ListModels(r.Context())
	if err != nil {
		h.log.WithError(err).Warn("list models failed")
		respond.Error(w, http.StatusBadGateway, "Failed to list models")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"models": models})
}
