// Package types provides type definitions for structured data used throughout the simulation generator.
//
//nolint:revive // types is a standard Go package name pattern
package types

// Delivery methods a scenario can use
const (
	MethodClickOnly      = "Click-Only"
	MethodDataSubmission = "Data-Submission"
)

// Sender is the identity the message impersonates
type Sender struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Role    string `json:"role,omitempty"`
}

// ScenarioAnalysis is the structured output of the first generation call.
// It conditions every later prompt and is never mutated after creation.
type ScenarioAnalysis struct {
	Scenario    string   `json:"scenario"`
	Category    string   `json:"category"`
	Description string   `json:"description,omitempty"`
	Triggers    []string `json:"psychological_triggers"`
	RedFlags    []string `json:"red_flags"`
	Sender      Sender   `json:"sender"`
	Tone        string   `json:"tone"`
	Method      string   `json:"method"`
	Industry    string   `json:"industry,omitempty"`
	Brand       string   `json:"brand,omitempty"`
}

// RequiresForm reports whether landing pages must collect data.
func (a *ScenarioAnalysis) RequiresForm() bool {
	return a != nil && a.Method == MethodDataSubmission
}

// BrandContext is styling guidance for the impersonated organization
type BrandContext struct {
	BrandName  string   `json:"brand_name,omitempty"`
	LogoURL    string   `json:"logo_url,omitempty"`
	Industry   string   `json:"industry,omitempty"`
	Colors     []string `json:"colors,omitempty"`
	Typography string   `json:"typography,omitempty"`
	Patterns   []string `json:"patterns,omitempty"`
}
