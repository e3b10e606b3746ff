package http

import (
	"context"
	"errors"
	"fmt"
)

// StatusError is returned when the server answers with a non-2xx status.
// It is never retried.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.Code, e.URL)
}

// NetworkError wraps a transport-level failure: connection refused or reset,
// DNS, TLS handshake, timeout, or a body cut short.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error for %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNotFound reports whether err carries an HTTP 404.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == 404
}

// IsTransient reports whether err is a network error worth retrying.
// Cancellation of the caller's context is not transient.
func IsTransient(err error) bool {
	var ne *NetworkError
	if !errors.As(err, &ne) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}
