// ABOUTME: Error taxonomy for REST calls: unauthenticated, validation, network, server
// ABOUTME: Callers branch with errors.Is / errors.As instead of inspecting status codes

package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthenticated means the credential is missing, expired or was
	// rejected with 401. The session must be torn down; it cannot be retried.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
)

// ValidationError reports input rejected before any request was made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NetworkError wraps a transport failure: unreachable host, reset connection,
// client-side timeout.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is a non-2xx, non-401 response.
type ServerError struct {
	Op         string
	StatusCode int
	// Message comes from the response body's "message" field when present.
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.StatusCode)
}

// IsUnauthenticated reports whether err requires a new login.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

// IsRetryable reports whether repeating the same call may succeed: network
// failures and 5xx/429 responses.
func IsRetryable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var srvErr *ServerError
	if errors.As(err, &srvErr) {
		return srvErr.StatusCode >= 500 || srvErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// genericFailure is shown when the body carries no usable message.
func genericFailure(status int) string {
	if text := http.StatusText(status); text != "" {
		return "request failed: " + text
	}
	return "request failed"
}
