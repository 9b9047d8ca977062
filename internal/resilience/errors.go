package resilience

import (
	"fmt"
	"strings"
)

// TransportError is a network, timeout or non-2xx failure that survived retries
type TransportError struct {
	Label    string
	Attempts int
	Cause    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure after %d attempt(s): %v", e.Label, e.Attempts, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// ValidationError is generated content that failed schema or domain checks
type ValidationError struct {
	Label      string
	Attempts   int
	Violations []string
	Cause      error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: generated content failed validation", e.Label)
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempt(s)", e.Attempts)
	}
	if len(e.Violations) > 0 {
		msg += ": " + strings.Join(e.Violations, "; ")
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(" (%v)", e.Cause)
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// NewValidationError builds a single-attempt validation error
func NewValidationError(label string, cause error, violations ...string) *ValidationError {
	return &ValidationError{Label: label, Attempts: 1, Violations: violations, Cause: cause}
}
