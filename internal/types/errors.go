// Package types provides type definitions for structured data used throughout the simulation generator.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "fmt"

// InputError rejects a malformed request before any external call is made
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid input: %s", e.Message)
	}
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Message)
}
