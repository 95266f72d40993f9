package selection

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/standardbeagle/pagepick/internal/protocol"
	"github.com/standardbeagle/pagepick/internal/respond"
)

// Event types sent on the live feed.
const (
	EventSelected = "selected"
	EventCleared  = "cleared"
)

// Event is one live feed frame.
type Event struct {
	Type   string  `json:"type"`
	Record *Record `json:"record,omitempty"`
}

// Submission is what the host page relays for each picker message.
type Submission struct {
	PageURL string          `json:"pageUrl"`
	LoadID  string          `json:"loadId"`
	Message json.RawMessage `json:"message"`
}

// Handler serves /api/selections and its live feed.
type Handler struct {
	store *Store
	hub   *Hub
	log   logrus.FieldLogger
}

// NewHandler wires store and hub to HTTP.
func NewHandler(store *Store, hub *Hub, log logrus.FieldLogger) *Handler {
	return &Handler{store: store, hub: hub, log: log}
}

// Register adds the selection routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/selections", h.serveSelections)
	mux.HandleFunc("/api/selections/stats", h.serveStats)
	mux.Handle("/api/selections/stream", h.hub)
}

func (h *Handler) serveSelections(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.submit(w, r)
	case http.MethodDelete:
		h.store.Clear()
		h.hub.Broadcast(Event{Type: EventCleared})
		w.WriteHeader(http.StatusNoContent)
	default:
		respond.MethodNotAllowed(w, "GET, POST, DELETE")
	}
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var sub Submission
	if err := respond.DecodeJSON(r, &sub); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(sub.Message) == 0 {
		respond.Error(w, http.StatusBadRequest, "message is required")
		return
	}

	msg, err := protocol.Decode(sub.Message)
	if err != nil {
		var verr *protocol.ValidationError
		if errors.As(err, &verr) {
			respond.JSON(w, http.StatusBadRequest, map[string]any{
				"error":  "invalid message",
				"fields": verr.Fields,
			})
			return
		}
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	switch m := msg.(type) {
	case *protocol.ProxyReady:
		h.store.BeginLoad(sub.LoadID)
		h.log.WithFields(logrus.Fields{
			"page_url": sub.PageURL,
			"load_id":  sub.LoadID,
		}).Debug("picker ready")
		w.WriteHeader(http.StatusNoContent)

	case *protocol.ElementSelected:
		rec := h.store.Add(sub.PageURL, sub.LoadID, m)
		h.hub.Broadcast(Event{Type: EventSelected, Record: &rec})
		h.log.WithFields(logrus.Fields{
			"selector": rec.Data.Selector,
			"tag":      rec.Data.TagName,
			"seq":      rec.Seq,
		}).Info("element selected")
		respond.JSON(w, http.StatusCreated, rec)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := Filter{
		TagName:  q.Get("tag"),
		Selector: q.Get("selector"),
		PageURL:  q.Get("page_url"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respond.Error(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		f.Since = t
	}

	records := h.store.Query(f)
	if records == nil {
		records = []Record{}
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"selections": records,
		"stats":      h.store.Stats(),
	})
}

func (h *Handler) serveStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respond.MethodNotAllowed(w, "GET")
		return
	}
	respond.JSON(w, http.StatusOK, h.store.Stats())
}
