package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jonathan/phish-simulator/internal/autonomous"
	"github.com/jonathan/phish-simulator/internal/server/middleware"
	"github.com/jonathan/phish-simulator/internal/types"
)

// kindTraining addresses training modules under /v1/artifacts
const kindTraining = "training"

// RunFailureResponse is returned when a synchronous run could not resolve its target
type RunFailureResponse struct {
	ErrorResponse
	Run *autonomous.RunResult `json:"run"`
}

// decodeJSON reads a bounded JSON body, rejecting unknown fields
func decodeJSON(w http.ResponseWriter, r *http.Request, into any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return &types.InputError{Message: "request body is not valid JSON: " + err.Error()}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return &types.InputError{Message: "request body must contain a single JSON object"}
	}
	return nil
}

// requestLogger tags the request logger with the authenticated caller
func requestLogger(r *http.Request) zerolog.Logger {
	logger := zerolog.Ctx(r.Context()).With().Logger()
	if subject, err := middleware.GetSubject(r); err == nil {
		logger = logger.With().Str("caller", subject).Logger()
	}
	return logger
}

// handleGenerate runs the generation pipeline synchronously
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req types.GenerationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.failure(w, r, err)
		return
	}

	logger := requestLogger(r)
	ctx := logger.WithContext(r.Context())
	res, err := s.deps.Generator.Run(ctx, req)
	if err != nil {
		s.failure(w, r.WithContext(ctx), err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

// handleAutonomous starts an autonomous run. Deferred runs answer 202 with the
// status URL in Location.
func (s *Server) handleAutonomous(w http.ResponseWriter, r *http.Request) {
	var req autonomous.Request
	if err := decodeJSON(w, r, &req); err != nil {
		s.failure(w, r, err)
		return
	}

	logger := requestLogger(r)
	ctx := logger.WithContext(r.Context())
	run, err := s.deps.Autonomous.Run(ctx, req)
	if err != nil {
		if run != nil {
			s.jsonResponse(w, HTTPStatus(err), RunFailureResponse{ErrorResponse: errorBody(err), Run: run})
			return
		}
		s.failure(w, r.WithContext(ctx), err)
		return
	}

	if run.Mode == autonomous.ModeDeferred {
		w.Header().Set("Location", "/v1/runs/"+run.RunID)
		s.jsonResponse(w, http.StatusAccepted, run)
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

// handleRunStatus returns the latest state of a run
func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		s.errorResponse(w, http.StatusBadRequest, "run id is required")
		return
	}

	run, err := s.deps.Autonomous.Status(r.Context(), id)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

// handleArtifact reads a persisted email, sms or training artifact
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	kind := strings.ToLower(r.PathValue("kind"))
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		s.errorResponse(w, http.StatusBadRequest, "artifact id is required")
		return
	}

	switch kind {
	case string(types.KindEmail), string(types.KindSMS):
		a, err := s.deps.Generator.Load(r.Context(), types.ContentKind(kind), id)
		if err != nil {
			s.failure(w, r, err)
			return
		}
		s.jsonResponse(w, http.StatusOK, a)
	case kindTraining:
		if s.deps.Autonomous == nil {
			s.errorResponse(w, http.StatusNotFound, "training artifacts are not available")
			return
		}
		module, err := s.deps.Autonomous.LoadTraining(r.Context(), id)
		if err != nil {
			s.failure(w, r, err)
			return
		}
		s.jsonResponse(w, http.StatusOK, module)
	default:
		s.errorResponse(w, http.StatusBadRequest, fmt.Sprintf("unknown artifact kind %q", kind))
	}
}
