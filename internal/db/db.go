// Package db provides PostgreSQL access for the autonomous run ledger.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database and ensures the ledger tables exist
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{pool: pool}
	if err := db.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure ledger schema: %w", err)
	}
	return db, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

func (db *DB) ensureSchema(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS autonomous_runs (
			id             UUID PRIMARY KEY,
			mode           TEXT NOT NULL,
			target_type    TEXT NOT NULL,
			target_id      TEXT NOT NULL,
			actions        TEXT[] NOT NULL,
			status         TEXT NOT NULL,
			error_message  TEXT,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at   TIMESTAMPTZ
		);
		CREATE TABLE IF NOT EXISTS run_actions (
			id             BIGSERIAL PRIMARY KEY,
			run_id         UUID NOT NULL REFERENCES autonomous_runs(id) ON DELETE CASCADE,
			action         TEXT NOT NULL,
			position       INT NOT NULL,
			success        BOOLEAN NOT NULL DEFAULT FALSE,
			artifact_id    TEXT,
			resource_id    TEXT,
			language_id    TEXT,
			assigned       BOOLEAN NOT NULL DEFAULT FALSE,
			error_message  TEXT,
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(run_id, action)
		);
		CREATE INDEX IF NOT EXISTS idx_runs_status ON autonomous_runs(status);
		CREATE INDEX IF NOT EXISTS idx_runs_created ON autonomous_runs(created_at);
	`)
	return err
}

// CreateRun inserts a run in the processing state
func (db *DB) CreateRun(ctx context.Context, input *RunInput) error {
	if input == nil || input.ID == uuid.Nil {
		return errors.New("run id is required")
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO autonomous_runs (id, mode, target_type, target_id, actions, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		input.ID, input.Mode, input.TargetType, input.TargetID, input.Actions, RunStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// RecordAction upserts the outcome of one action of a run
func (db *DB) RecordAction(ctx context.Context, runID uuid.UUID, a *ActionRecord) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO run_actions (run_id, action, position, success, artifact_id, resource_id, language_id, assigned, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (run_id, action) DO UPDATE SET
		     success = $4, artifact_id = $5, resource_id = $6, language_id = $7,
		     assigned = $8, error_message = $9, updated_at = NOW()`,
		runID, a.Action, a.Position, a.Success, nullable(a.ArtifactID), nullable(a.ResourceID),
		nullable(a.LanguageID), a.Assigned, nullable(a.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to record action %s: %w", a.Action, err)
	}
	return nil
}

// CompleteRun sets the terminal status of a run
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, status, errorMessage string) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE autonomous_runs SET status = $1, error_message = $2, completed_at = NOW() WHERE id = $3`,
		status, nullable(errorMessage), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

// GetRun retrieves a run with its actions in requested order. It returns nil, nil
// when the run does not exist.
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	var run Run
	var errMsg *string
	err := db.pool.QueryRow(ctx,
		`SELECT id, mode, target_type, target_id, actions, status, error_message, created_at, completed_at
		 FROM autonomous_runs WHERE id = $1`,
		runID,
	).Scan(&run.ID, &run.Mode, &run.TargetType, &run.TargetID, &run.Actions, &run.Status, &errMsg,
		&run.CreatedAt, &run.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if errMsg != nil {
		run.Error = *errMsg
	}

	rows, err := db.pool.Query(ctx,
		`SELECT action, position, success, COALESCE(artifact_id, ''), COALESCE(resource_id, ''),
		        COALESCE(language_id, ''), assigned, COALESCE(error_message, '')
		 FROM run_actions WHERE run_id = $1 ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list run actions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a ActionRecord
		if err := rows.Scan(&a.Action, &a.Position, &a.Success, &a.ArtifactID, &a.ResourceID,
			&a.LanguageID, &a.Assigned, &a.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run action: %w", err)
		}
		run.Results = append(run.Results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read run actions: %w", err)
	}
	return &run, nil
}

// RunFilters holds optional filters for listing runs
type RunFilters struct {
	Status   string
	TargetID string
	Limit    int
}

// ListRuns retrieves recent runs without their action results
func (db *DB) ListRuns(ctx context.Context, filters RunFilters) ([]Run, error) {
	if filters.Limit == 0 {
		filters.Limit = 50
	}

	query := `SELECT id, mode, target_type, target_id, actions, status, COALESCE(error_message, ''), created_at, completed_at
		FROM autonomous_runs WHERE 1=1`
	args := []any{}
	argNum := 1

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, filters.Status)
		argNum++
	}
	if filters.TargetID != "" {
		query += fmt.Sprintf(" AND target_id = $%d", argNum)
		args = append(args, filters.TargetID)
		argNum++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argNum)
	args = append(args, filters.Limit)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Mode, &run.TargetType, &run.TargetID, &run.Actions, &run.Status,
			&run.Error, &run.CreatedAt, &run.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
