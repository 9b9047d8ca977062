// Package platform is the REST client for the awareness platform that stores users,
// receives uploaded simulations and assigns them to targets.
package platform

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUserNotFound is returned when a user lookup matches nobody
var ErrUserNotFound = errors.New("user not found")

// APIError is a non-2xx answer from the platform
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
	Cause      error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("platform %s failed: %s: %v", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("platform %s failed (HTTP %d): %s", e.Operation, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// Temporary reports whether repeating the call may succeed
func (e *APIError) Temporary() bool {
	if e.StatusCode == 0 {
		return e.Cause != nil
	}
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= 500
}
