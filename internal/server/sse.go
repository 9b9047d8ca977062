package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/phish-simulator/internal/autonomous"
)

// SSEWriter helps write Server-Sent Events
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter creates a new SSE writer
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends an SSE event
func (s *SSEWriter) WriteEvent(event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteError sends an error event
func (s *SSEWriter) WriteError(message string) {
	s.WriteEvent("error", ErrorResponse{Error: message}) //nolint:errcheck
}

// WriteComplete sends a completion event
func (s *SSEWriter) WriteComplete(run *autonomous.RunResult) {
	s.WriteEvent("complete", run) //nolint:errcheck
}

// handleRunEvents streams a run's status until it completes or fails. A
// "status" event is sent for the first snapshot and whenever the status or
// the number of recorded results changes.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))

	run, err := s.deps.Autonomous.Status(r.Context(), id)
	if err != nil {
		s.failure(w, r, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	ticker := time.NewTicker(s.cfg.EventInterval)
	defer ticker.Stop()

	lastStatus, lastResults := "", -1
	for {
		if run.Status != lastStatus || len(run.Results) != lastResults {
			if run.Status != autonomous.StatusProcessing {
				sse.WriteComplete(run)
				return
			}
			if err := sse.WriteEvent("status", run); err != nil {
				return
			}
			lastStatus, lastResults = run.Status, len(run.Results)
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		run, err = s.deps.Autonomous.Status(r.Context(), id)
		if err != nil {
			sse.WriteError(errorBody(err).Error)
			return
		}
	}
}
