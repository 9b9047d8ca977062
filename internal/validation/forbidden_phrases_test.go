package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckForbiddenPhrases_NoPhrases(t *testing.T) {
	violations := CheckForbiddenPhrases(PartEmail, "template", "Please enter your card number", nil)
	assert.Empty(t, violations)
}

func TestCheckForbiddenPhrases_Found(t *testing.T) {
	text := "Hello {FIRSTNAME}\nPlease confirm your Credit Card Number below\nThanks"

	violations := CheckForbiddenPhrases(PartEmail, "template", text, DefaultForbiddenPhrases)
	require.Len(t, violations, 1)
	assert.Equal(t, "forbidden_phrase", violations[0].Rule)
	assert.Equal(t, PartEmail, violations[0].Part)
	assert.Contains(t, violations[0].Details, "line 2")
}

func TestCheckForbiddenPhrases_IgnoresMarkup(t *testing.T) {
	text := `<label>Your <b>bank</b> account   number</label>`

	violations := CheckForbiddenPhrases(PartLanding, "pages[0].template", text, []string{"bank account number"})
	assert.Len(t, violations, 1)
}

func TestCheckForbiddenPhrases_DecodesEntities(t *testing.T) {
	text := `What is your mother&#39;s maiden name?`

	violations := CheckForbiddenPhrases(PartLanding, "pages[0].template", text, DefaultForbiddenPhrases)
	assert.Len(t, violations, 1)
}

func TestCheckForbiddenPhrases_OnePerLine(t *testing.T) {
	text := "card number and cvv please"

	violations := CheckForbiddenPhrases(PartSMS, "messages[0]", text, DefaultForbiddenPhrases)
	assert.Len(t, violations, 1)
}

func TestCheckForbiddenPhrases_BlankPhraseSkipped(t *testing.T) {
	violations := CheckForbiddenPhrases(PartSMS, "messages[0]", "anything", []string{"  "})
	assert.Empty(t, violations)
}
