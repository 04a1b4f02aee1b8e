package util

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors for common failure modes
var (
	// ErrNotFound indicates a required resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMissingCredentials indicates a platform credential is not configured
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrUnauthorized indicates the platform rejected our credentials
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates the platform asked us to slow down
	ErrRateLimited = errors.New("rate limited")

	// ErrInvalidTrackRef indicates a malformed platform track id or URL
	ErrInvalidTrackRef = errors.New("invalid track reference")
)

// HTTPError is returned by the platform clients for non-2xx responses
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	RetryAfter time.Duration
	Body       string
}

func (e *HTTPError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.StatusCode, body)
}

// Unwrap maps well-known status codes onto sentinel errors
func (e *HTTPError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}
