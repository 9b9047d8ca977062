package autonomous

import (
	"context"

	"github.com/jonathan/phish-simulator/internal/pipeline"
	"github.com/jonathan/phish-simulator/internal/platform"
	"github.com/jonathan/phish-simulator/internal/types"
)

// ContentGenerator runs the generation pipeline
type ContentGenerator interface {
	Run(ctx context.Context, req types.GenerationRequest) (*pipeline.Result, error)
}

// UserDirectory looks up platform users
type UserDirectory interface {
	LookupUser(ctx context.Context, resourceID string) (*platform.User, error)
}

// Uploader publishes content to the platform
type Uploader interface {
	Upload(ctx context.Context, req platform.UploadRequest) (*platform.UploadResult, error)
}

// Assigner assigns uploaded content to a target
type Assigner interface {
	Assign(ctx context.Context, req platform.AssignRequest) error
}

// GroupContext is what topic selection knows about a group target
type GroupContext struct {
	GroupID  string
	Actions  []Action
	Language string
}

// TopicSelection is a topic shared by every action of a group run
type TopicSelection struct {
	Topic          string `json:"topic"`
	Difficulty     string `json:"difficulty"`
	PhishingPrompt string `json:"phishing_prompt,omitempty"`
	SmishingPrompt string `json:"smishing_prompt,omitempty"`
	TrainingPrompt string `json:"training_prompt,omitempty"`
}

// PromptFor returns the per-action direction, if any
func (t *TopicSelection) PromptFor(a Action) string {
	switch a {
	case ActionPhishing:
		return t.PhishingPrompt
	case ActionSmishing:
		return t.SmishingPrompt
	case ActionTraining:
		return t.TrainingPrompt
	}
	return ""
}

// TopicSelector picks the shared topic for a group target
type TopicSelector interface {
	SelectGroupTopic(ctx context.Context, group GroupContext) (*TopicSelection, error)
}

// RiskProfile is a per-user scenario recommendation
type RiskProfile struct {
	Topic           string   `json:"topic"`
	Difficulty      string   `json:"difficulty"`
	Triggers        []string `json:"triggers"`
	Vulnerabilities []string `json:"vulnerabilities,omitempty"`
	Rationale       string   `json:"rationale,omitempty"`
}

// RiskAnalyzer recommends a scenario for a user target
type RiskAnalyzer interface {
	Recommend(ctx context.Context, user *platform.User) (*RiskProfile, error)
}

// TrainingRequest asks for a training module
type TrainingRequest struct {
	Topic      string
	Difficulty types.Difficulty
	Language   string
	Audience   string
	Vendor     string
	Model      string
}

// TrainingSection is one part of a training module
type TrainingSection struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// QuizQuestion is a multiple-choice question; Answer indexes Options
type QuizQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   int      `json:"answer"`
}

// TrainingModule is generated awareness training
type TrainingModule struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Summary    string            `json:"summary"`
	Sections   []TrainingSection `json:"sections"`
	Quiz       []QuizQuestion    `json:"quiz,omitempty"`
	Topic      string            `json:"topic"`
	Difficulty types.Difficulty  `json:"difficulty"`
	Language   string            `json:"language"`
	Vendor     string            `json:"vendor,omitempty"`
	Model      string            `json:"model,omitempty"`
}

// TrainingGenerator writes training modules
type TrainingGenerator interface {
	GenerateTraining(ctx context.Context, req TrainingRequest) (*TrainingModule, error)
}

// RunRecorder keeps a durable ledger of runs
type RunRecorder interface {
	CreateRun(ctx context.Context, run *RunResult) error
	RecordAction(ctx context.Context, runID string, position int, result ActionResult) error
	CompleteRun(ctx context.Context, run *RunResult) error
}

// RunReader loads runs from the ledger. Returns nil, nil for unknown runs.
type RunReader interface {
	GetRun(ctx context.Context, runID string) (*RunResult, error)
}
