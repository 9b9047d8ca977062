// Package htmlfix post-processes generated HTML templates before they are persisted.
package htmlfix

import "fmt"

// ParseError indicates a template could not be parsed as HTML
type ParseError struct {
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("html post-processing failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("html post-processing failed: %s", e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}
