// Package types provides type definitions for structured data used throughout the simulation generator.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "fmt"

// Violation represents a single validation failure of generated content
type Violation struct {
	Part     string `json:"part"`
	Field    string `json:"field"`
	Rule     string `json:"rule"`
	Details  string `json:"details"`
	Severity string `json:"severity"`
}

// Violations represents a collection of validation failures
type Violations struct {
	Violations []Violation `json:"violations"`
}

// Add appends a blocking violation
func (v *Violations) Add(part, field, rule, details string) {
	v.Violations = append(v.Violations, Violation{
		Part:     part,
		Field:    field,
		Rule:     rule,
		Details:  details,
		Severity: "error",
	})
}

// Empty reports whether no violations were recorded
func (v *Violations) Empty() bool {
	return v == nil || len(v.Violations) == 0
}

// Messages renders each violation as a one-line constraint description
func (v *Violations) Messages() []string {
	if v.Empty() {
		return nil
	}
	out := make([]string, 0, len(v.Violations))
	for _, viol := range v.Violations {
		out = append(out, fmt.Sprintf("%s.%s: %s", viol.Part, viol.Field, viol.Details))
	}
	return out
}

// ForPart returns the violations recorded against one part
func (v *Violations) ForPart(part string) *Violations {
	out := &Violations{}
	if v == nil {
		return out
	}
	for _, viol := range v.Violations {
		if viol.Part == part {
			out.Violations = append(out.Violations, viol)
		}
	}
	return out
}
