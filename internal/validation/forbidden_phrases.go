package validation

import (
	"fmt"
	"strings"

	"github.com/jonathan/phish-simulator/internal/types"
)

// DefaultForbiddenPhrases are requests for data a training simulation must never collect
var DefaultForbiddenPhrases = []string{
	"social security number",
	"credit card number",
	"card number",
	"cvv",
	"security code on the back",
	"bank account number",
	"routing number",
	"mother's maiden name",
}

// CheckForbiddenPhrases reports each line of text that contains a forbidden phrase.
// Matching is case-insensitive and ignores markup.
func CheckForbiddenPhrases(part, field, text string, phrases []string) []types.Violation {
	if len(phrases) == 0 || text == "" {
		return nil
	}

	var violations []types.Violation
	for i, line := range strings.Split(text, "\n") {
		normalizedLine := normalizeForMatching(line)

		for _, phrase := range phrases {
			normalizedPhrase := strings.ToLower(strings.TrimSpace(phrase))
			if normalizedPhrase == "" {
				continue
			}

			if strings.Contains(normalizedLine, normalizedPhrase) {
				violations = append(violations, types.Violation{
					Part:     part,
					Field:    field,
					Rule:     "forbidden_phrase",
					Severity: "error",
					Details:  fmt.Sprintf("line %d must not ask for %q", i+1, phrase),
				})
				break // Only report one violation per line (first match)
			}
		}
	}
	return violations
}

// normalizeForMatching lower-cases text, drops tags and decodes the common entities
func normalizeForMatching(text string) string {
	var sb strings.Builder
	inTag := false
	for _, r := range text {
		switch {
		case r == '<':
			inTag = true
			sb.WriteByte(' ')
		case r == '>':
			inTag = false
		case !inTag:
			sb.WriteRune(r)
		}
	}

	out := sb.String()
	out = strings.ReplaceAll(out, "&#39;", "'")
	out = strings.ReplaceAll(out, "&apos;", "'")
	out = strings.ReplaceAll(out, "&nbsp;", " ")
	out = strings.ReplaceAll(out, "&amp;", "&")
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}
