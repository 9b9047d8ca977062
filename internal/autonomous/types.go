// Package autonomous chains target resolution, content generation, platform
// upload and assignment into one run, executed synchronously or deferred to a
// supervised background pool.
package autonomous

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/phish-simulator/internal/types"
)

// Mode selects where the caller waits
type Mode string

// Execution modes
const (
	ModeSync     Mode = "sync"
	ModeDeferred Mode = "deferred"
)

// Action is one unit of work requested for a target
type Action string

// Supported actions
const (
	ActionPhishing Action = "phishing"
	ActionSmishing Action = "smishing"
	ActionTraining Action = "training"
)

// Run statuses
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Target names exactly one of a platform user or group
type Target struct {
	UserID  string `json:"user_id,omitempty"`
	GroupID string `json:"group_id,omitempty"`
}

// Kind is "user" or "group"
func (t Target) Kind() string {
	if t.UserID != "" {
		return "user"
	}
	return "group"
}

// ID returns whichever resource id is set
func (t Target) ID() string {
	if t.UserID != "" {
		return t.UserID
	}
	return t.GroupID
}

// Request starts an autonomous run
type Request struct {
	Target   Target   `json:"target"`
	Actions  []Action `json:"actions"`
	Mode     Mode     `json:"mode,omitempty"`
	Language string   `json:"language,omitempty"`
	// Difficulty overrides the recommended difficulty when set
	Difficulty   types.Difficulty `json:"difficulty,omitempty"`
	Organization string           `json:"organization,omitempty"`
	Vendor       string           `json:"vendor,omitempty"`
	Model        string           `json:"model,omitempty"`
}

// ActionResult is the outcome of one action. Error is safe to show to users.
type ActionResult struct {
	Action     Action `json:"action"`
	Success    bool   `json:"success"`
	ArtifactID string `json:"artifact_id,omitempty"`
	ResourceID string `json:"resource_id,omitempty"`
	LanguageID string `json:"language_id,omitempty"`
	Assigned   bool   `json:"assigned"`
	Error      string `json:"error,omitempty"`
}

// RunResult is the state of a run. Results follow the order of Actions.
type RunResult struct {
	RunID       string         `json:"run_id"`
	Mode        Mode           `json:"mode"`
	Status      string         `json:"status"`
	Target      Target         `json:"target"`
	Actions     []Action       `json:"actions"`
	Topic       string         `json:"topic,omitempty"`
	Results     []ActionResult `json:"results,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

func (r *RunResult) clone() *RunResult {
	cp := *r
	cp.Actions = append([]Action(nil), r.Actions...)
	cp.Results = append([]ActionResult(nil), r.Results...)
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

var knownActions = map[Action]bool{
	ActionPhishing: true,
	ActionSmishing: true,
	ActionTraining: true,
}

// normalize validates req and fills defaults. Violations are *types.InputError.
func normalize(req Request) (Request, error) {
	req.Target.UserID = strings.TrimSpace(req.Target.UserID)
	req.Target.GroupID = strings.TrimSpace(req.Target.GroupID)
	if (req.Target.UserID == "") == (req.Target.GroupID == "") {
		return req, &types.InputError{Field: "target", Message: "exactly one of user_id or group_id is required"}
	}

	if len(req.Actions) == 0 {
		return req, &types.InputError{Field: "actions", Message: "at least one action is required"}
	}
	seen := make(map[Action]bool, len(req.Actions))
	actions := make([]Action, 0, len(req.Actions))
	for _, a := range req.Actions {
		a = Action(strings.ToLower(strings.TrimSpace(string(a))))
		if !knownActions[a] {
			return req, &types.InputError{Field: "actions", Message: fmt.Sprintf("unknown action %q", a)}
		}
		if seen[a] {
			return req, &types.InputError{Field: "actions", Message: fmt.Sprintf("duplicate action %q", a)}
		}
		seen[a] = true
		actions = append(actions, a)
	}
	req.Actions = actions

	switch Mode(strings.ToLower(string(req.Mode))) {
	case "", ModeSync:
		req.Mode = ModeSync
	case ModeDeferred:
		req.Mode = ModeDeferred
	default:
		return req, &types.InputError{Field: "mode", Message: fmt.Sprintf("unknown mode %q", req.Mode)}
	}

	if req.Difficulty != "" {
		d, err := types.ParseDifficulty(string(req.Difficulty))
		if err != nil {
			return req, &types.InputError{Field: "difficulty", Message: err.Error()}
		}
		req.Difficulty = d
	}
	req.Language = strings.ToLower(strings.TrimSpace(req.Language))
	return req, nil
}
