package client

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an upstream resource does not exist.
var ErrNotFound = errors.New("not found")

// HTTPError represents an HTTP error response.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// IsNotFound returns true if the error represents a 404 response.
func (e *HTTPError) IsNotFound() bool {
	return e.StatusCode == 404
}

// Unwrap lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *HTTPError) Unwrap() error {
	if e.IsNotFound() {
		return ErrNotFound
	}
	return nil
}

// NotFoundError wraps ErrNotFound with the upstream coordinates that were
// looked up.
type NotFoundError struct {
	Source  string
	Name    string
	Version string
}

func (e *NotFoundError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("%s: %s version %s not found", e.Source, e.Name, e.Version)
	}
	return fmt.Sprintf("%s: %s not found", e.Source, e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// RateLimitError is returned when the upstream rate limits requests.
type RateLimitError struct {
	RetryAfter int // seconds
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %d seconds", e.RetryAfter)
}

// StatusCode extracts the HTTP status code from err, or 0 if err does not
// carry one.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return 429
	}
	return 0
}
