// Package llm - extractor.go describes the JSON objects small structured-output calls return.
package llm

import (
	"fmt"
	"strings"
)

// ExtractionSchema defines the JSON object a structured-output call must return.
type ExtractionSchema struct {
	Name        string        // Schema name (e.g., "TopicSelection", "RiskProfile")
	Description string        // System preamble describing the task
	Fields      []SchemaField // Expected output fields
}

// SchemaField defines a single field in the output.
type SchemaField struct {
	Name        string // JSON field name
	Type        string // Type hint: "string", "[]string", "map[string]string"
	Description string // Description for the model
	Required    bool   // Whether this field is required
}

// Describe renders the expected JSON structure with type hints, for the
// {{.Schema}} slot of a prompt template.
func (s ExtractionSchema) Describe() string {
	var sb strings.Builder

	sb.WriteString("{\n")
	for i, field := range s.Fields {
		typeHint := field.Type
		if typeHint == "" {
			typeHint = "string"
		}
		requiredHint := ""
		if field.Required {
			requiredHint = " (required)"
		}
		sb.WriteString(fmt.Sprintf("  \"%s\": %s", field.Name, typeHint))
		if i < len(s.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString(requiredHint)
		if field.Description != "" {
			sb.WriteString(fmt.Sprintf(" // %s", field.Description))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}")

	return sb.String()
}

// RequiredFields lists the names of required fields, used to name violated constraints
func (s ExtractionSchema) RequiredFields() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// --- Predefined Schemas ---

// TopicSelectionSchema returns the schema for choosing a shared topic for a group.
func TopicSelectionSchema() ExtractionSchema {
	return ExtractionSchema{
		Name: "TopicSelection",
		Description: `You plan security-awareness simulations for a group of employees.
Pick ONE realistic topic that fits the group and write a short prompt for each requested action.`,
		Fields: []SchemaField{
			{Name: "topic", Type: "\"string\"", Description: "Shared simulation topic, e.g. 'Password Reset'", Required: true},
			{Name: "difficulty", Type: "\"Easy|Medium|Hard\"", Description: "Recommended difficulty", Required: true},
			{Name: "phishing_prompt", Type: "\"string\"", Description: "Direction for the email simulation", Required: false},
			{Name: "smishing_prompt", Type: "\"string\"", Description: "Direction for the SMS simulation", Required: false},
			{Name: "training_prompt", Type: "\"string\"", Description: "Direction for the training module", Required: false},
		},
	}
}

// RiskProfileSchema returns the schema for a per-user risk recommendation.
func RiskProfileSchema() ExtractionSchema {
	return ExtractionSchema{
		Name: "RiskProfile",
		Description: `You analyze an employee's role and recent activity to recommend the simulation
scenario that best exercises their weak spots.`,
		Fields: []SchemaField{
			{Name: "topic", Type: "\"string\"", Description: "Recommended scenario topic", Required: true},
			{Name: "difficulty", Type: "\"Easy|Medium|Hard\"", Description: "Recommended difficulty", Required: true},
			{Name: "triggers", Type: "[\"string\"]", Description: "Behavioral triggers this user is likely to respond to", Required: true},
			{Name: "vulnerabilities", Type: "[\"string\"]", Description: "Observed weak spots", Required: false},
			{Name: "rationale", Type: "\"string\"", Description: "One sentence explaining the choice", Required: false},
		},
	}
}

// TrainingModuleSchema returns the schema for a short training module.
func TrainingModuleSchema() ExtractionSchema {
	return ExtractionSchema{
		Name: "TrainingModule",
		Description: `You write short security-awareness training modules that teach employees to
recognise and report the given attack scenario.`,
		Fields: []SchemaField{
			{Name: "title", Type: "\"string\"", Description: "Module title", Required: true},
			{Name: "summary", Type: "\"string\"", Description: "Two sentence summary", Required: true},
			{Name: "sections", Type: "[{\"heading\": \"string\", \"body\": \"string\"}]", Description: "Three to five sections", Required: true},
			{Name: "quiz", Type: "[{\"question\": \"string\", \"options\": [\"string\"], \"answer\": \"number\"}]", Description: "Up to three questions", Required: false},
		},
	}
}
