package llama

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a permanent failure: the slug is unknown
	// upstream. Never retried.
	ErrNotFound = errors.New("llama: protocol not found")

	// ErrUnavailable marks a transient failure that survived the
	// bounded retry budget (timeouts, 5xx, rate limiting, open
	// circuit).
	ErrUnavailable = errors.New("llama: upstream unavailable")
)

// APIError carries the HTTP status of a failed upstream call plus
// retry guidance.
type APIError struct {
	Status    int
	URL       string
	Body      string
	Retryable bool
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("llama: HTTP %d for %s: %s", e.Status, e.URL, e.Body)
	}
	return fmt.Sprintf("llama: HTTP %d for %s", e.Status, e.URL)
}

// Unwrap maps the status onto the package sentinels so callers can use
// errors.Is without inspecting status codes.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == 404:
		return ErrNotFound
	case e.Retryable:
		return ErrUnavailable
	default:
		return nil
	}
}

// isTransient reports whether an error should count against the
// circuit breaker and be retried.
func isTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}
	return !errors.Is(err, ErrNotFound)
}
