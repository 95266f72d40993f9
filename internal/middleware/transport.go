package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// LoggingRoundTripper logs outbound requests made on behalf of an inbound
// request, tagging them with its request id.
type LoggingRoundTripper struct {
	Transport http.RoundTripper
	Logger    logrus.FieldLogger
}

// RoundTrip implements http.RoundTripper.
func (t *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	transport := t.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	start := time.Now()
	entry := t.Logger.WithFields(logrus.Fields{
		"request_id": RequestID(req.Context()),
		"method":     req.Method,
		"url":        req.URL.Redacted(),
	})

	resp, err := transport.RoundTrip(req)
	duration := time.Since(start)
	if err != nil {
		entry.WithError(err).WithField("duration_ms", duration.Milliseconds()).Warn("outbound request failed")
		return nil, err
	}

	entry.WithFields(logrus.Fields{
		"status":      resp.StatusCode,
		"duration_ms": duration.Milliseconds(),
	}).Debug("outbound response")
	return resp, nil
}
