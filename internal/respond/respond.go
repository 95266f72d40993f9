// Package respond holds the JSON response helpers shared by pagepick's HTTP handlers.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"
)

// MaxRequestBody caps JSON request bodies read by DecodeJSON.
const MaxRequestBody = 1 << 20

var (
	logMu  sync.RWMutex
	logger logrus.FieldLogger = logrus.StandardLogger()
)

// SetLogger sets where response encoding failures are logged.
func SetLogger(log logrus.FieldLogger) {
	logMu.Lock()
	defer logMu.Unlock()
	logger = log
}

func currentLogger() logrus.FieldLogger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}

// ErrorBody is the shape of every JSON error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// JSON writes data as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		currentLogger().WithError(err).WithField("status", status).Error("error encoding JSON response")
	}
}

// Error writes {"error": msg} with the given status code.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, ErrorBody{Error: msg})
}

// DecodeJSON reads a single JSON value from r's body into v.
// Unknown fields are rejected.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// MethodNotAllowed answers 405 with an Allow header.
func MethodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	Error(w, http.StatusMethodNotAllowed, "method not allowed")
}
