package autonomous

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/phish-simulator/internal/db"
)

// Ledger records runs in Postgres. It implements RunRecorder and RunReader.
type Ledger struct {
	db *db.DB
}

// NewLedger wraps a connected database
func NewLedger(database *db.DB) *Ledger {
	return &Ledger{db: database}
}

// CreateRun inserts the run in processing state
func (l *Ledger) CreateRun(ctx context.Context, run *RunResult) error {
	id, err := uuid.Parse(run.RunID)
	if err != nil {
		return fmt.Errorf("invalid run id: %w", err)
	}
	actions := make([]string, len(run.Actions))
	for i, a := range run.Actions {
		actions[i] = string(a)
	}
	return l.db.CreateRun(ctx, &db.RunInput{
		ID:         id,
		Mode:       string(run.Mode),
		TargetType: run.Target.Kind(),
		TargetID:   run.Target.ID(),
		Actions:    actions,
	})
}

// RecordAction upserts one action result
func (l *Ledger) RecordAction(ctx context.Context, runID string, position int, result ActionResult) error {
	id, err := uuid.Parse(runID)
	if err != nil {
		return fmt.Errorf("invalid run id: %w", err)
	}
	return l.db.RecordAction(ctx, id, &db.ActionRecord{
		Action:     string(result.Action),
		Position:   position,
		Success:    result.Success,
		ArtifactID: result.ArtifactID,
		ResourceID: result.ResourceID,
		LanguageID: result.LanguageID,
		Assigned:   result.Assigned,
		Error:      result.Error,
	})
}

// CompleteRun stores the terminal status
func (l *Ledger) CompleteRun(ctx context.Context, run *RunResult) error {
	id, err := uuid.Parse(run.RunID)
	if err != nil {
		return fmt.Errorf("invalid run id: %w", err)
	}
	return l.db.CompleteRun(ctx, id, run.Status, run.Error)
}

// GetRun loads a run; unknown or malformed ids return nil, nil
func (l *Ledger) GetRun(ctx context.Context, runID string) (*RunResult, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return nil, nil
	}
	stored, err := l.db.GetRun(ctx, id)
	if err != nil || stored == nil {
		return nil, err
	}
	return fromStored(stored), nil
}

func fromStored(r *db.Run) *RunResult {
	out := &RunResult{
		RunID:       r.ID.String(),
		Mode:        Mode(r.Mode),
		Status:      r.Status,
		Error:       r.Error,
		CreatedAt:   r.CreatedAt,
		CompletedAt: r.CompletedAt,
	}
	if r.TargetType == db.TargetUser {
		out.Target.UserID = r.TargetID
	} else {
		out.Target.GroupID = r.TargetID
	}
	for _, a := range r.Actions {
		out.Actions = append(out.Actions, Action(a))
	}
	for _, rec := range r.Results {
		out.Results = append(out.Results, ActionResult{
			Action:     Action(rec.Action),
			Success:    rec.Success,
			ArtifactID: rec.ArtifactID,
			ResourceID: rec.ResourceID,
			LanguageID: rec.LanguageID,
			Assigned:   rec.Assigned,
			Error:      rec.Error,
		})
	}
	return out
}
