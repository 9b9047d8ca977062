package resilience

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jonathan/phish-simulator/internal/metrics"
)

// GenerateCall performs one structured generation. amendment is empty on the
// first call and carries the violated constraints on the escalated call.
// Decode or schema failures should be returned as *ValidationError.
type GenerateCall[T any] func(ctx context.Context, amendment string) (T, error)

// Validator returns the constraints a decoded value violates; none means valid.
type Validator[T any] func(T) []string

// RetryWithStrongerPrompt invokes call, and if the result fails validation
// invokes it exactly once more with an amendment naming the violations.
// Transport errors are returned untouched. call runs at most twice.
func RetryWithStrongerPrompt[T any](ctx context.Context, label string, call GenerateCall[T], validate Validator[T]) (T, error) {
	var zero T
	logger := zerolog.Ctx(ctx)

	violations, result, err := attemptStructured(ctx, call, validate, "")
	if err != nil {
		return zero, err
	}
	if len(violations) == 0 {
		return result, nil
	}

	logger.Warn().
		Str("operation", label).
		Strs("violations", violations).
		Msg("generated content failed validation, escalating prompt")

	second, result, err := attemptStructured(ctx, call, validate, BuildAmendment(violations))
	if err != nil {
		return zero, err
	}
	if len(second) == 0 {
		metrics.EscalationsTotal.WithLabelValues(label, "recovered").Inc()
		return result, nil
	}

	metrics.EscalationsTotal.WithLabelValues(label, "failed").Inc()
	return zero, &ValidationError{Label: label, Attempts: 2, Violations: second}
}

// attemptStructured runs call once and folds decode failures into violations.
func attemptStructured[T any](ctx context.Context, call GenerateCall[T], validate Validator[T], amendment string) ([]string, T, error) {
	var zero T

	result, err := call(ctx, amendment)
	if err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			violations := vErr.Violations
			if len(violations) == 0 {
				violations = []string{vErr.Error()}
			}
			return violations, zero, nil
		}
		return nil, zero, err
	}

	if validate == nil {
		return nil, result, nil
	}
	return validate(result), result, nil
}

// BuildAmendment renders violations as an instruction appended to the prompt.
func BuildAmendment(violations []string) string {
	var sb strings.Builder
	sb.WriteString("IMPORTANT: your previous response was rejected because it violated these constraints:\n")
	for _, v := range violations {
		sb.WriteString("- ")
		sb.WriteString(v)
		sb.WriteString("\n")
	}
	sb.WriteString("Return ONLY a single valid JSON object that satisfies every constraint above. ")
	sb.WriteString("Do not wrap it in markdown or add any commentary.")
	return sb.String()
}
