package proxy

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the fetcher. Callers use errors.Is.
var (
	ErrMissingURL     = errors.New("url parameter required")
	ErrInvalidURL     = errors.New("invalid target url")
	ErrUpstreamStatus = errors.New("upstream returned non-2xx status")
	ErrHostNotAllowed = errors.New("target host not allowed")
	ErrBodyTooLarge   = errors.New("upstream body too large")
	ErrNotHTML        = errors.New("upstream content is not html")
)

// StatusError carries the upstream status code of a failed fetch.
// It matches ErrUpstreamStatus.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.Code)
}

// Is reports whether target is ErrUpstreamStatus.
func (e *StatusError) Is(target error) bool {
	return target == ErrUpstreamStatus
}
