package server

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/standardbeagle/pagepick/internal/dom"
	"github.com/standardbeagle/pagepick/internal/middleware"
	"github.com/standardbeagle/pagepick/internal/protocol"
	"github.com/standardbeagle/pagepick/internal/proxy"
	"github.com/standardbeagle/pagepick/internal/respond"
)

// ApplyRequest is the /api/apply body.
type ApplyRequest struct {
	URL          string            `json:"url" validate:"required,url"`
	Replacements []dom.Replacement `json:"replacements" validate:"required,min=1,dive"`
	// NoPicker leaves the picker script out of the returned document.
	NoPicker bool `json:"noPicker,omitempty"`
}

// ApplyResponse is the /api/apply result.
type ApplyResponse struct {
	HTML   string     `json:"html"`
	Report dom.Report `json:"report"`
}

func (s *Server) serveApply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respond.MethodNotAllowed(w, "POST")
		return
	}

	var req ApplyRequest
	if err := respond.DecodeJSON(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := protocol.Validate(&req); err != nil {
		var verr *protocol.ValidationError
		if errors.As(err, &verr) {
			respond.JSON(w, http.StatusBadRequest, map[string]any{
				"error":  "invalid request",
				"fields": verr.Fields,
			})
			return
		}
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := proxy.PrepareOptions{StripScripts: s.cfg.Proxy.StripScripts}
	if !req.NoPicker {
		opts.Script = s.script
	}

	body, report, err := proxy.EditPage(r.Context(), s.fetcher, req.URL, req.Replacements, opts)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": middleware.RequestID(r.Context()),
			"target":     req.URL,
		}).WithError(err).Warn("apply failed")
		respond.Error(w, http.StatusInternalServerError, "Failed to fetch target URL")
		return
	}

	s.log.WithFields(logrus.Fields{
		"target":  req.URL,
		"applied": report.Applied,
		"failed":  report.Failed,
	}).Info("copy applied")
	respond.JSON(w, http.StatusOK, ApplyResponse{HTML: string(body), Report: report})
}
