package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jonathan/phish-simulator/internal/llm"
	"github.com/jonathan/phish-simulator/internal/metrics"
	"github.com/jonathan/phish-simulator/internal/prompts"
	"github.com/jonathan/phish-simulator/internal/resilience"
	"github.com/jonathan/phish-simulator/internal/schemas"
)

// StructuredCall describes one structured-output generation
type StructuredCall struct {
	// Label tags retries, escalations and errors
	Label string
	// PromptFile and PromptKey select the prompt template
	PromptFile string
	PromptKey  string
	// Data fills the template placeholders. Schema and Amendment are set by the call.
	Data map[string]string
	// Schema validates the decoded response
	Schema schemas.Name
	// SchemaText replaces the embedded schema document in the prompt when set
	SchemaText  string
	Temperature float32
}

// Generator runs structured calls against one resolved provider
type Generator struct {
	selection llm.Selection
	policy    resilience.Policy
}

// NewGenerator creates a generator for sel with transport retry policy
func NewGenerator(sel llm.Selection, policy resilience.Policy) *Generator {
	return &Generator{selection: sel, policy: policy}
}

// Selection returns the provider the generator calls
func (g *Generator) Selection() llm.Selection {
	return g.selection
}

// GenerateStructured renders the prompt, calls the backend with transport retries,
// repairs and schema-checks the response, and escalates once if the response or
// validate reports violations. It returns the value and the number of calls made.
func GenerateStructured[T any](ctx context.Context, g *Generator, call StructuredCall, validate resilience.Validator[T]) (T, int, error) {
	var zero T

	system, err := prompts.Get(prompts.GenerationFile, prompts.KeySystem)
	if err != nil {
		return zero, 0, err
	}
	template, err := prompts.Get(call.PromptFile, call.PromptKey)
	if err != nil {
		return zero, 0, err
	}
	schemaText := call.SchemaText
	if schemaText == "" && call.Schema != "" {
		if schemaText, err = schemas.Text(call.Schema); err != nil {
			return zero, 0, err
		}
	}

	calls := 0
	value, err := resilience.RetryWithStrongerPrompt(ctx, call.Label, func(ctx context.Context, amendment string) (T, error) {
		calls++
		data := make(map[string]string, len(call.Data)+2)
		for k, v := range call.Data {
			data[k] = v
		}
		data["Schema"] = schemaText
		data["Amendment"] = ""
		if amendment != "" {
			data["Amendment"] = "\n\n" + amendment
		}

		text, err := g.complete(ctx, call.Label, llm.Request{
			System:      system,
			Prompt:      prompts.Format(template, data),
			JSON:        true,
			Temperature: call.Temperature,
		})
		if err != nil {
			return zero, err
		}
		return decode[T](call.Label, call.Schema, text)
	}, validate)
	return value, calls, err
}

// complete performs one generation with blind transport retries
func (g *Generator) complete(ctx context.Context, label string, req llm.Request) (string, error) {
	vendor := string(g.selection.Vendor)

	resp, err := resilience.WithRetry(ctx, label, g.policy, func(ctx context.Context) (*llm.Response, error) {
		start := time.Now()
		resp, err := g.selection.Generate(ctx, req)
		metrics.GenerationLatency.WithLabelValues(vendor).Observe(time.Since(start).Seconds())

		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.GenerationCallsTotal.WithLabelValues(vendor, status).Inc()
		return resp, err
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// decode repairs, schema-checks and unmarshals a response. Anything the model
// could fix on a second try is returned as *resilience.ValidationError.
func decode[T any](label string, schema schemas.Name, raw string) (T, error) {
	var out T

	cleaned, err := llm.CleanResponse(raw, label)
	if err != nil {
		return out, resilience.NewValidationError(label, err, "the response must be a single JSON object with no surrounding text")
	}

	if schema != "" {
		if err := schemas.Validate(schema, []byte(cleaned)); err != nil {
			var schemaErr *schemas.ValidationError
			if errors.As(err, &schemaErr) {
				return out, resilience.NewValidationError(label, err, schemaErr.Messages()...)
			}
			return out, err
		}
	}

	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return out, resilience.NewValidationError(label, err, "every field must have the type the schema declares")
	}
	return out, nil
}
