// Package types provides type definitions for structured data used throughout the simulation generator.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"
	"strings"
)

// ContentKind is the delivery channel of a generated artifact
type ContentKind string

const (
	// KindEmail produces a phishing email and landing pages
	KindEmail ContentKind = "email"
	// KindSMS produces smishing text messages and landing pages
	KindSMS ContentKind = "sms"
)

// Difficulty controls how subtle the generated red flags are
type Difficulty string

// Difficulty levels
const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// ParseDifficulty accepts any casing of easy/medium/hard.
func ParseDifficulty(s string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return DifficultyEasy, nil
	case "medium", "":
		return DifficultyMedium, nil
	case "hard":
		return DifficultyHard, nil
	default:
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
}

// TargetProfile describes who the content is aimed at. All fields are advisory.
type TargetProfile struct {
	Name            string   `json:"name,omitempty"`
	Department      string   `json:"department,omitempty"`
	Triggers        []string `json:"triggers,omitempty"`
	Vulnerabilities []string `json:"vulnerabilities,omitempty"`
}

// GenerationRequest is the immutable input of one pipeline run
type GenerationRequest struct {
	Topic              string         `json:"topic" validate:"required,max=500"`
	Kind               ContentKind    `json:"kind" validate:"required,oneof=email sms"`
	Difficulty         Difficulty     `json:"difficulty" validate:"required,oneof=Easy Medium Hard"`
	Profile            *TargetProfile `json:"profile,omitempty"`
	Language           string         `json:"language" validate:"required,bcp47_language_tag"`
	IncludeMessage     bool           `json:"include_message"`
	IncludeLandingPage bool           `json:"include_landing_page"`
	Vendor             string         `json:"vendor,omitempty"`
	Model              string         `json:"model,omitempty"`
	Organization       string         `json:"organization,omitempty" validate:"omitempty,max=200"`
}

// Normalized returns a copy with defaults applied: email kind, Medium difficulty,
// en-gb language and both parts enabled when neither toggle was set.
func (r GenerationRequest) Normalized() GenerationRequest {
	out := r
	out.Topic = strings.TrimSpace(out.Topic)
	if out.Kind == "" {
		out.Kind = KindEmail
	}
	out.Kind = ContentKind(strings.ToLower(string(out.Kind)))
	if d, err := ParseDifficulty(string(out.Difficulty)); err == nil {
		out.Difficulty = d
	}
	if out.Language == "" {
		out.Language = "en-gb"
	}
	out.Language = strings.ToLower(out.Language)
	if !out.IncludeMessage && !out.IncludeLandingPage {
		out.IncludeMessage = true
		out.IncludeLandingPage = true
	}
	return out
}

// KeyPrefix returns the store namespace for the request kind.
func (k ContentKind) KeyPrefix() string {
	if k == KindSMS {
		return "smishing"
	}
	return "phishing"
}

// MessagePartName returns the store suffix of the message part.
func (k ContentKind) MessagePartName() string {
	if k == KindSMS {
		return "sms"
	}
	return "email"
}
