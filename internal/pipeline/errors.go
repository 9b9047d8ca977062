package pipeline

import (
	"errors"
	"fmt"

	"github.com/jonathan/phish-simulator/internal/artifacts"
	"github.com/jonathan/phish-simulator/internal/resilience"
	"github.com/jonathan/phish-simulator/internal/types"
)

// Stage names a pipeline stage in errors, logs and metrics
type Stage string

// Pipeline stages, in execution order
const (
	StageValidateRequest     Stage = "validate_request"
	StageFetchPolicyContext  Stage = "fetch_policy_context"
	StageAnalyze             Stage = "analyze"
	StageGenerateMessage     Stage = "generate_message"
	StageGenerateLandingPage Stage = "generate_landing_page"
	StagePostProcess         Stage = "post_process"
	StagePersist             Stage = "persist"
	StageAwaitConsistency    Stage = "await_consistency"
)

// StageError is the single failure a pipeline run reports
type StageError struct {
	Stage Stage
	Cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline stage %s failed: %v", e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// Message is a user-facing description without backend identifiers
func (e *StageError) Message() string {
	var inputErr *types.InputError
	var transportErr *resilience.TransportError
	var validationErr *resilience.ValidationError
	var persistenceErr *artifacts.PersistenceError

	switch {
	case errors.As(e.Cause, &inputErr):
		if inputErr.Field != "" {
			return fmt.Sprintf("The request is invalid: %s %s.", inputErr.Field, inputErr.Message)
		}
		return fmt.Sprintf("The request is invalid: %s.", inputErr.Message)
	case errors.As(e.Cause, &transportErr):
		return "The content generator is temporarily unavailable. Please try again in a moment."
	case errors.As(e.Cause, &validationErr):
		return "The generated content did not pass quality checks. Please try again."
	case errors.As(e.Cause, &persistenceErr):
		return "The generated content could not be saved. Please try again."
	}
	return "Content generation failed."
}

// Retryable reports whether running the same request again may succeed
func (e *StageError) Retryable() bool {
	var inputErr *types.InputError
	return !errors.As(e.Cause, &inputErr)
}
