// Package types provides type definitions for structured data used throughout the simulation generator.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "time"

// Placeholder tokens the delivery platform substitutes at send time
const (
	TokenRecipientName = "{FIRSTNAME}"
	TokenTrackingURL   = "{PHISHINGURL}"
)

// EmailContent is the message part of an email artifact
type EmailContent struct {
	Subject     string `json:"subject"`
	Template    string `json:"template"`
	FromName    string `json:"from_name"`
	FromAddress string `json:"from_address"`
}

// SMSContent is the message part of an sms artifact
type SMSContent struct {
	Messages []string `json:"messages"`
}

// MessagePart holds exactly one of Email or SMS
type MessagePart struct {
	Email *EmailContent `json:"email,omitempty"`
	SMS   *SMSContent   `json:"sms,omitempty"`
}

// Page is a single landing page template
type Page struct {
	Type     string `json:"type"`
	Template string `json:"template"`
}

// LandingPage is the landing page part of an artifact
type LandingPage struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Pages       []Page `json:"pages"`
}

// PartStatus records the validation outcome and fixes applied to a part
type PartStatus struct {
	Part      string   `json:"part"`
	Valid     bool     `json:"valid"`
	Escalated bool     `json:"escalated"`
	Fixes     []string `json:"fixes,omitempty"`
}

// ArtifactBase is the metadata record of a persisted artifact
type ArtifactBase struct {
	ID         string            `json:"id"`
	Kind       ContentKind       `json:"kind"`
	Topic      string            `json:"topic"`
	Difficulty Difficulty        `json:"difficulty"`
	Language   string            `json:"language"`
	Analysis   *ScenarioAnalysis `json:"analysis"`
	Vendor     string            `json:"vendor"`
	Model      string            `json:"model"`
	Parts      []string          `json:"parts"`
	Status     []PartStatus      `json:"status,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Artifact is a fully loaded artifact
type Artifact struct {
	Base        ArtifactBase `json:"base"`
	Message     *MessagePart `json:"message,omitempty"`
	LandingPage *LandingPage `json:"landing_page,omitempty"`
}
