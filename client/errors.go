package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuth is returned when the cloud rejects the service credentials or
	// the token endpoint cannot be reached.
	ErrAuth = errors.New("cloud authentication failed")
	// ErrNotFound is returned when no usable token exists on the account.
	ErrNotFound = errors.New("not found")
)

// ServiceError is a failed per-device cloud call. StatusCode carries the
// upstream HTTP status, or 502/504 when no response was received.
type ServiceError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("cloud service error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ServiceError) Unwrap() error { return e.Err }

// IsAuthFailure reports whether the upstream rejected the access token.
func (e *ServiceError) IsAuthFailure() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}
