// Package server provides the HTTP API of the simulation content service.
package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/phish-simulator/internal/artifacts"
	"github.com/jonathan/phish-simulator/internal/autonomous"
	"github.com/jonathan/phish-simulator/internal/kvstore"
	"github.com/jonathan/phish-simulator/internal/pipeline"
	"github.com/jonathan/phish-simulator/internal/resilience"
	"github.com/jonathan/phish-simulator/internal/tasks"
	"github.com/jonathan/phish-simulator/internal/types"
)

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Error     string `json:"error"`
	Stage     string `json:"stage,omitempty"`
	Retryable bool   `json:"retryable"`
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		inputErr       *types.InputError
		transportErr   *resilience.TransportError
		validationErr  *resilience.ValidationError
		persistenceErr *artifacts.PersistenceError
		targetErr      *autonomous.TargetError
	)

	switch {
	case errors.As(err, &inputErr):
		return http.StatusBadRequest
	case errors.Is(err, autonomous.ErrRunNotFound), errors.Is(err, kvstore.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &targetErr):
		return http.StatusBadGateway
	case errors.As(err, &transportErr), errors.Is(err, tasks.ErrPoolClosed):
		return http.StatusServiceUnavailable
	case errors.As(err, &validationErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &persistenceErr):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// errorBody builds a response that never carries backend identifiers
func errorBody(err error) ErrorResponse {
	var (
		stageErr  *pipeline.StageError
		inputErr  *types.InputError
		targetErr *autonomous.TargetError
	)

	switch {
	case errors.As(err, &stageErr):
		return ErrorResponse{Error: stageErr.Message(), Stage: string(stageErr.Stage), Retryable: stageErr.Retryable()}
	case errors.As(err, &inputErr):
		return ErrorResponse{Error: inputErr.Error()}
	case errors.Is(err, autonomous.ErrRunNotFound):
		return ErrorResponse{Error: "run not found"}
	case errors.Is(err, kvstore.ErrNotFound):
		return ErrorResponse{Error: "artifact not found"}
	case errors.As(err, &targetErr):
		return ErrorResponse{Error: "The target could not be resolved.", Retryable: true}
	case errors.Is(err, tasks.ErrPoolClosed):
		return ErrorResponse{Error: "The service is shutting down. Please try again.", Retryable: true}
	}
	return ErrorResponse{Error: "Internal server error."}
}
