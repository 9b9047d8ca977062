package autonomous

import (
	"context"
	"errors"
	"sync"

	"github.com/jonathan/phish-simulator/internal/pipeline"
	"github.com/jonathan/phish-simulator/internal/platform"
	"github.com/jonathan/phish-simulator/internal/types"
)

// fakeGenerator records requests and answers through fn
type fakeGenerator struct {
	mu       sync.Mutex
	requests []types.GenerationRequest
	fn       func(ctx context.Context, req types.GenerationRequest) (*pipeline.Result, error)
}

func (g *fakeGenerator) Run(ctx context.Context, req types.GenerationRequest) (*pipeline.Result, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()
	if g.fn != nil {
		return g.fn(ctx, req)
	}
	return succeed(req), nil
}

func (g *fakeGenerator) seen() []types.GenerationRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]types.GenerationRequest(nil), g.requests...)
}

func succeed(req types.GenerationRequest) *pipeline.Result {
	return &pipeline.Result{
		ArtifactID: "artifact-" + string(req.Kind),
		Kind:       req.Kind,
		Analysis:   &types.ScenarioAnalysis{Scenario: "Password Reset", Category: "Credential Harvesting", Method: types.MethodClickOnly},
		Message:    &types.MessagePart{},
		Consistent: true,
	}
}

type fakeUsers struct {
	user *platform.User
	err  error
}

func (u fakeUsers) LookupUser(_ context.Context, id string) (*platform.User, error) {
	if u.err != nil {
		return nil, u.err
	}
	user := *u.user
	user.ID = id
	return &user, nil
}

type fakeTopics struct {
	mu    sync.Mutex
	calls int
	sel   *TopicSelection
	err   error
}

func (f *fakeTopics) SelectGroupTopic(_ context.Context, _ GroupContext) (*TopicSelection, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.sel, f.err
}

type fakeRisk struct {
	profile *RiskProfile
	seen    *platform.User
}

func (f *fakeRisk) Recommend(_ context.Context, user *platform.User) (*RiskProfile, error) {
	f.seen = user
	return f.profile, nil
}

type fakeTraining struct{}

func (fakeTraining) GenerateTraining(_ context.Context, req TrainingRequest) (*TrainingModule, error) {
	return &TrainingModule{
		Title:    "Spotting " + req.Topic,
		Summary:  "How to recognise the attack.",
		Sections: []TrainingSection{{Heading: "Red flags", Body: "Check the sender."}},
	}, nil
}

// fakePlatform counts attempts and fails the configured kinds
type fakePlatform struct {
	mu         sync.Mutex
	uploads    []platform.UploadRequest
	assigns    []platform.AssignRequest
	failUpload map[string]error
	failAssign error
}

func (p *fakePlatform) Upload(_ context.Context, req platform.UploadRequest) (*platform.UploadResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.uploads = append(p.uploads, req)
	if err := p.failUpload[req.Kind]; err != nil {
		return nil, err
	}
	return &platform.UploadResult{ResourceID: "res-" + req.Kind, LanguageID: "lang-1"}, nil
}

func (p *fakePlatform) Assign(_ context.Context, req platform.AssignRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assigns = append(p.assigns, req)
	return p.failAssign
}

func (p *fakePlatform) assigned() []platform.AssignRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]platform.AssignRequest(nil), p.assigns...)
}

// memoryLedger is a RunRecorder and RunReader backed by a map
type memoryLedger struct {
	mu      sync.Mutex
	runs    map[string]*RunResult
	actions map[string][]int
	failAll bool
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{runs: map[string]*RunResult{}, actions: map[string][]int{}}
}

var errLedgerDown = errors.New("ledger unavailable")

func (l *memoryLedger) CreateRun(_ context.Context, run *RunResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAll {
		return errLedgerDown
	}
	l.runs[run.RunID] = run.clone()
	return nil
}

func (l *memoryLedger) RecordAction(_ context.Context, runID string, position int, _ ActionResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAll {
		return errLedgerDown
	}
	l.actions[runID] = append(l.actions[runID], position)
	return nil
}

func (l *memoryLedger) CompleteRun(_ context.Context, run *RunResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAll {
		return errLedgerDown
	}
	l.runs[run.RunID] = run.clone()
	return nil
}

func (l *memoryLedger) GetRun(_ context.Context, runID string) (*RunResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	run, ok := l.runs[runID]
	if !ok {
		return nil, nil
	}
	return run.clone(), nil
}
