// Package middleware holds the HTTP middleware shared by pagepick's server:
// request ids, request logging, per-client rate limiting and the logging
// RoundTripper used for outbound fetches.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request id on responses.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// WithRequestID stores id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// NewRequestID returns a fresh random id.
func NewRequestID() string {
	return uuid.New().String()
}

// requestIDFrom reuses a well-formed inbound X-Request-ID or mints a new one.
func requestIDFrom(r *http.Request) string {
	if id := r.Header.Get(RequestIDHeader); id != "" {
		if _, err := uuid.Parse(id); err == nil {
			return id
		}
	}
	return NewRequestID()
}
