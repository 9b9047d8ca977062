// Package llm - util.go provides shared utilities for LLM response processing.
package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// CleanResponse extracts a JSON value from free-form generated text. A response
// that already is a JSON object or array is returned unchanged. Otherwise the
// recognized malformations are repaired in this order and nothing else is attempted:
//
//  1. markdown code fence wrapper (```json ... ``` or ``` ... ```) opening a line
//  2. prose before or after the JSON object or array
//  3. trailing commas before } or ]
//  4. raw newline, tab, carriage return or other control characters inside string literals
//
// The result is not guaranteed to parse; callers still decode it strictly.
// context names the call site and appears in the error.
func CleanResponse(raw, context string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if isJSONContainer(trimmed) {
		return trimmed, nil
	}

	text, ok := extractOutermostJSON(CleanJSONBlock(trimmed))
	if !ok {
		return "", &MalformedResponseError{Context: context, Snippet: snippet(raw)}
	}
	return repairJSON(text), nil
}

// CleanJSONBlock removes a markdown code block wrapper from a JSON response.
// The opening fence must start a line, so backticks inside string values are
// left alone. A fence preceded by prose is also unwrapped.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	start := fenceStart(text)
	if start < 0 {
		return text
	}
	inner := text[start+3:]

	// Skip a language identifier on the fence line
	if idx := strings.Index(inner, "\n"); idx >= 0 {
		firstLine := strings.TrimSpace(inner[:idx])
		if len(firstLine) < 20 && !strings.ContainsAny(firstLine, " {[") {
			inner = inner[idx+1:]
		}
	}

	if end := strings.Index(inner, "\n```"); end >= 0 {
		inner = inner[:end]
	} else if end := strings.LastIndex(inner, "```"); end >= 0 {
		inner = inner[:end]
	}
	return strings.TrimSpace(inner)
}

// fenceStart returns the index of the first ``` that begins a line, or -1
func fenceStart(text string) int {
	for offset := 0; offset < len(text); {
		idx := strings.Index(text[offset:], "```")
		if idx < 0 {
			return -1
		}
		pos := offset + idx
		lineStart := strings.LastIndexByte(text[:pos], '\n') + 1
		if strings.TrimSpace(text[lineStart:pos]) == "" {
			return pos
		}
		offset = pos + 3
	}
	return -1
}

// extractOutermostJSON scans the top-level bracketed candidates in text and
// returns the longest one that parses once repaired. When none parses, the
// first candidate is returned; an unbalanced candidate runs to the end of text.
func extractOutermostJSON(text string) (string, bool) {
	var first, best string
	found := false

	for offset := 0; offset < len(text); {
		idx := strings.IndexAny(text[offset:], "{[")
		if idx < 0 {
			break
		}
		start := offset + idx
		end, balanced := matchingBracket(text, start)
		if !balanced {
			if !found {
				first, found = strings.TrimSpace(text[start:]), true
			}
			break
		}

		candidate := text[start : end+1]
		if !found {
			first, found = candidate, true
		}
		if len(candidate) > len(best) && isJSONContainer(repairJSON(candidate)) {
			best = candidate
		}
		offset = end + 1
	}

	if !found {
		return "", false
	}
	if best != "" {
		return best, true
	}
	return first, true
}

// matchingBracket returns the index closing the bracket at start, skipping
// brackets inside string literals.
func matchingBracket(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return -1, false
}

func isJSONContainer(text string) bool {
	if text == "" || (text[0] != '{' && text[0] != '[') {
		return false
	}
	return json.Valid([]byte(text))
}

func repairJSON(text string) string {
	return escapeControlChars(removeTrailingCommas(text))
}

func removeTrailingCommas(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))

	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			sb.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = true
		}
		if c == ',' {
			j := i + 1
			for j < len(text) && isSpace(text[j]) {
				j++
			}
			if j < len(text) && (text[j] == '}' || text[j] == ']') {
				continue
			}
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

func escapeControlChars(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))

	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			sb.WriteByte(c)
			continue
		}
		switch {
		case escaped:
			escaped = false
			sb.WriteByte(c)
		case c == '\\':
			escaped = true
			sb.WriteByte(c)
		case c == '"':
			inString = false
			sb.WriteByte(c)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c < 0x20:
			sb.WriteString(fmt.Sprintf(`\u%04x`, c))
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r'
}

// snippet shortens s to 80 runes for error messages
func snippet(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > 80 {
		return string([]rune(s)[:80]) + "..."
	}
	return s
}
