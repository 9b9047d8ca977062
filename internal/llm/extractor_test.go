package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribe(t *testing.T) {
	desc := TopicSelectionSchema().Describe()

	assert.True(t, strings.HasPrefix(desc, "{\n"))
	assert.True(t, strings.HasSuffix(desc, "\n}"))
	assert.Contains(t, desc, `"topic": "string", (required) // Shared simulation topic`)
	assert.Contains(t, desc, `"phishing_prompt": "string", //`)
	assert.Contains(t, desc, `"training_prompt": "string" // Direction for the training module`+"\n")
}

func TestDescribe_DefaultTypeHint(t *testing.T) {
	desc := ExtractionSchema{Fields: []SchemaField{{Name: "note"}}}.Describe()
	assert.Equal(t, "{\n  \"note\": string\n}", desc)
}

func TestRequiredFields(t *testing.T) {
	assert.Equal(t, []string{"topic", "difficulty", "triggers"}, RiskProfileSchema().RequiredFields())
	assert.Equal(t, []string{"title", "summary", "sections"}, TrainingModuleSchema().RequiredFields())
}
