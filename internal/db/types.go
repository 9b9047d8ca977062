package db

import (
	"time"

	"github.com/google/uuid"
)

// Run status constants
const (
	RunStatusProcessing = "processing"
	RunStatusCompleted  = "completed"
	RunStatusFailed     = "failed"
)

// Target type constants
const (
	TargetUser  = "user"
	TargetGroup = "group"
)

// Run represents an autonomous run record
type Run struct {
	ID          uuid.UUID      `json:"id"`
	Mode        string         `json:"mode"`
	TargetType  string         `json:"target_type"`
	TargetID    string         `json:"target_id"`
	Actions     []string       `json:"actions"`
	Status      string         `json:"status"`
	Error       string         `json:"error,omitempty"`
	Results     []ActionRecord `json:"results,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// RunInput represents input for creating a run
type RunInput struct {
	ID         uuid.UUID
	Mode       string
	TargetType string
	TargetID   string
	Actions    []string
}

// ActionRecord is the stored outcome of one action
type ActionRecord struct {
	Action     string `json:"action"`
	Position   int    `json:"position"`
	Success    bool   `json:"success"`
	ArtifactID string `json:"artifact_id,omitempty"`
	ResourceID string `json:"resource_id,omitempty"`
	LanguageID string `json:"language_id,omitempty"`
	Assigned   bool   `json:"assigned"`
	Error      string `json:"error,omitempty"`
}
