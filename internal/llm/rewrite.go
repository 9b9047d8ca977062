package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// rewriteTransport reshapes Workers AI responses before the OpenAI decoder sees them
type rewriteTransport struct {
	base http.RoundTripper
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}

	body = RewriteWorkersAIResponse(body)
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	resp.Header.Del("Content-Length")
	return resp, nil
}

// RewriteWorkersAIResponse normalizes a raw Workers AI response body:
//   - a reasoning item nested in the "output" array is lifted to a top-level "reasoning" field
//   - usage input_tokens/output_tokens are copied to prompt_tokens/completion_tokens and
//     total_tokens is derived once when absent
//   - a responses-style "output" without "choices" gets a single synthesized choice
//
// Bodies that are not JSON objects are returned unchanged.
func RewriteWorkersAIResponse(body []byte) []byte {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return body
	}

	changed := liftReasoning(doc)
	if normalizeUsage(doc) {
		changed = true
	}
	if synthesizeChoices(doc) {
		changed = true
	}
	if !changed {
		return body
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return body
	}
	return out
}

func outputItems(doc map[string]any, itemType string) []map[string]any {
	raw, ok := doc["output"].([]any)
	if !ok {
		return nil
	}
	var items []map[string]any
	for _, r := range raw {
		item, ok := r.(map[string]any)
		if ok && item["type"] == itemType {
			items = append(items, item)
		}
	}
	return items
}

// itemText concatenates text found in an output item's content or summary parts
func itemText(item map[string]any) string {
	if s, ok := item["text"].(string); ok {
		return s
	}
	var buf bytes.Buffer
	for _, field := range []string{"content", "summary"} {
		parts, ok := item[field].([]any)
		if !ok {
			continue
		}
		for _, p := range parts {
			if part, ok := p.(map[string]any); ok {
				if s, ok := part["text"].(string); ok {
					buf.WriteString(s)
				}
			}
		}
		if buf.Len() > 0 {
			break
		}
	}
	return buf.String()
}

func liftReasoning(doc map[string]any) bool {
	if _, exists := doc["reasoning"]; exists {
		return false
	}
	items := outputItems(doc, "reasoning")
	if len(items) == 0 {
		return false
	}
	text := itemText(items[0])
	doc["reasoning"] = text

	if msg := firstChoiceMessage(doc); msg != nil {
		if _, ok := msg["reasoning_content"]; !ok {
			msg["reasoning_content"] = text
		}
	}
	return true
}

func normalizeUsage(doc map[string]any) bool {
	usage, ok := doc["usage"].(map[string]any)
	if !ok {
		return false
	}

	changed := false
	in, hasIn := usage["input_tokens"].(float64)
	out, hasOut := usage["output_tokens"].(float64)

	if _, ok := usage["prompt_tokens"]; !ok && hasIn {
		usage["prompt_tokens"] = in
		changed = true
	}
	if _, ok := usage["completion_tokens"]; !ok && hasOut {
		usage["completion_tokens"] = out
		changed = true
	}
	if _, ok := usage["total_tokens"]; !ok && hasIn && hasOut {
		usage["total_tokens"] = in + out
		changed = true
	}
	return changed
}

func synthesizeChoices(doc map[string]any) bool {
	if _, ok := doc["choices"]; ok {
		return false
	}
	messages := outputItems(doc, "message")
	if len(messages) == 0 {
		return false
	}

	msg := map[string]any{
		"role":    "assistant",
		"content": itemText(messages[0]),
	}
	if r, ok := doc["reasoning"].(string); ok {
		msg["reasoning_content"] = r
	}
	doc["choices"] = []any{
		map[string]any{"index": 0, "message": msg, "finish_reason": "stop"},
	}
	return true
}

func firstChoiceMessage(doc map[string]any) map[string]any {
	choices, ok := doc["choices"].([]any)
	if !ok || len(choices) == 0 {
		return nil
	}
	choice, ok := choices[0].(map[string]any)
	if !ok {
		return nil
	}
	msg, _ := choice["message"].(map[string]any)
	return msg
}
