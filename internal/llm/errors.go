package llm

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// BackendError wraps any failure reported by a generation backend
type BackendError struct {
	Vendor     Vendor
	StatusCode int
	Message    string
	Cause      error
}

func (e *BackendError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s backend error (status %d): %s", e.Vendor, e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s backend error: %s: %v", e.Vendor, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s backend error: %s", e.Vendor, e.Message)
}

func (e *BackendError) Unwrap() error {
	return e.Cause
}

// Temporary reports whether a retry may succeed: network failures, 408, 429 and 5xx.
func (e *BackendError) Temporary() bool {
	switch {
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	case e.StatusCode > 0:
		return false
	}
	var netErr net.Error
	return errors.As(e.Cause, &netErr)
}

// MalformedResponseError is returned when no JSON value can be recovered from a response
type MalformedResponseError struct {
	Context string
	Snippet string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed %s response: no JSON value found in %q", e.Context, e.Snippet)
}
