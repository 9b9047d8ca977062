// Package prompts holds the prompt templates for generation and autonomous
// selection. Templates live in embedded JSON files keyed by prompt name.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"
	"sync"
)

//go:embed *.json
var promptFiles embed.FS

// Prompt files
const (
	GenerationFile = "generation.json"
	AutonomousFile = "autonomous.json"
)

// Prompt keys in GenerationFile
const (
	KeySystem              = "system"
	KeyAnalyzeScenario     = "analyze-scenario"
	KeyGenerateEmail       = "generate-email"
	KeyGenerateSMS         = "generate-sms"
	KeyGenerateLandingPage = "generate-landing-page"
)

// Prompt keys in AutonomousFile
const (
	KeySelectGroupTopic = "select-group-topic"
	KeyAnalyzeUserRisk  = "analyze-user-risk"
	KeyGenerateTraining = "generate-training-module"
)

var (
	catalogOnce sync.Once
	catalog     map[string]map[string]string
	catalogErr  error
)

// Get returns the template stored under key in file
func Get(file, key string) (string, error) {
	catalogOnce.Do(func() {
		catalog, catalogErr = parseAll(promptFiles)
	})
	if catalogErr != nil {
		return "", catalogErr
	}

	templates, ok := catalog[file]
	if !ok {
		return "", fmt.Errorf("prompt file %s is not embedded", file)
	}
	template, ok := templates[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, file)
	}
	return template, nil
}

// parseAll decodes every JSON file at the root of fsys
func parseAll(fsys fs.FS) (map[string]map[string]string, error) {
	names, err := fs.Glob(fsys, "*.json")
	if err != nil {
		return nil, err
	}

	out := make(map[string]map[string]string, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt file %s: %w", name, err)
		}
		var templates map[string]string
		if err := json.Unmarshal(data, &templates); err != nil {
			return nil, fmt.Errorf("failed to parse prompt file %s: %w", name, err)
		}
		out[name] = templates
	}
	return out, nil
}

// Format fills {{.Name}} placeholders from data in a single pass, so values
// that themselves contain placeholders are not expanded. Placeholders without
// data are left in place.
func Format(template string, data map[string]string) string {
	if len(data) == 0 {
		return template
	}
	pairs := make([]string, 0, 2*len(data))
	for key, value := range data {
		pairs = append(pairs, "{{."+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
