package autonomous

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jonathan/phish-simulator/internal/artifacts"
	"github.com/jonathan/phish-simulator/internal/consistency"
	"github.com/jonathan/phish-simulator/internal/kvstore"
	"github.com/jonathan/phish-simulator/internal/pipeline"
	"github.com/jonathan/phish-simulator/internal/platform"
	"github.com/jonathan/phish-simulator/internal/resilience"
	"github.com/jonathan/phish-simulator/internal/tasks"
	"github.com/jonathan/phish-simulator/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type harness struct {
	svc       *Service
	generator *fakeGenerator
	topics    *fakeTopics
	risk      *fakeRisk
	platform  *fakePlatform
	ledger    *memoryLedger
	store     *kvstore.MemoryStore
}

func newHarness(t *testing.T, mutate func(*Deps)) *harness {
	t.Helper()
	store := kvstore.NewMemoryStore(0)
	h := &harness{
		generator: &fakeGenerator{},
		topics: &fakeTopics{sel: &TopicSelection{
			Topic:          "Quarterly payroll update",
			Difficulty:     "hard",
			PhishingPrompt: "Pose as the payroll provider",
		}},
		risk: &fakeRisk{profile: &RiskProfile{
			Topic:      "Shared document invitation",
			Difficulty: "easy",
			Triggers:   []string{"curiosity"},
		}},
		platform: &fakePlatform{},
		ledger:   newMemoryLedger(),
		store:    store,
	}
	deps := Deps{
		Generator: h.generator,
		Users: fakeUsers{user: &platform.User{
			FirstName:  "Dana",
			LastName:   "Reyes",
			Department: "Finance",
			Language:   "DE-DE",
		}},
		Topics:     h.topics,
		Risk:       h.risk,
		Training:   fakeTraining{},
		Uploader:   h.platform,
		Assigner:   h.platform,
		Repository: artifacts.NewRepository(store, zerolog.Nop()),
		Guard:      consistency.NewGuard(store, zerolog.Nop()),
		Recorder:   h.ledger,
		Logger:     zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&deps)
	}
	svc, err := NewService(deps, Options{
		PlatformRetry:      resilience.Policy{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1},
		ConsistencyTimeout: 200 * time.Millisecond,
		PollInterval:       10 * time.Millisecond,
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func TestNewService_RequiresGenerator(t *testing.T) {
	_, err := NewService(Deps{}, Options{})
	assert.Error(t, err)
}

func TestRun_InvalidRequests(t *testing.T) {
	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"no target", Request{Actions: []Action{ActionPhishing}}, "target"},
		{"both targets", Request{Target: Target{UserID: "u1", GroupID: "g1"}, Actions: []Action{ActionPhishing}}, "target"},
		{"no actions", Request{Target: Target{UserID: "u1"}}, "actions"},
		{"unknown action", Request{Target: Target{UserID: "u1"}, Actions: []Action{"vishing"}}, "actions"},
		{"duplicate action", Request{Target: Target{UserID: "u1"}, Actions: []Action{ActionPhishing, "Phishing"}}, "actions"},
		{"unknown mode", Request{Target: Target{UserID: "u1"}, Actions: []Action{ActionPhishing}, Mode: "later"}, "mode"},
		{"deferred without pool", Request{Target: Target{UserID: "u1"}, Actions: []Action{ActionPhishing}, Mode: ModeDeferred}, "mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			run, err := h.svc.Run(context.Background(), tt.req)
			require.Error(t, err)
			assert.Nil(t, run)

			var inputErr *types.InputError
			require.ErrorAs(t, err, &inputErr)
			assert.Equal(t, tt.field, inputErr.Field)
			assert.Empty(t, h.generator.seen())
			assert.Empty(t, h.ledger.runs)
		})
	}
}

func TestRun_GroupTargetSharesTopic(t *testing.T) {
	h := newHarness(t, nil)

	run, err := h.svc.Run(context.Background(), Request{
		Target:  Target{GroupID: "g-42"},
		Actions: []Action{ActionPhishing, ActionSmishing},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, "Quarterly payroll update", run.Topic)
	assert.Equal(t, 1, h.topics.calls)
	require.Len(t, run.Results, 2)
	for _, r := range run.Results {
		assert.True(t, r.Success, r.Error)
		assert.True(t, r.Assigned)
	}

	byKind := map[types.ContentKind]types.GenerationRequest{}
	for _, req := range h.generator.seen() {
		byKind[req.Kind] = req
	}
	assert.Equal(t, "Quarterly payroll update. Pose as the payroll provider", byKind[types.KindEmail].Topic)
	assert.Equal(t, "Quarterly payroll update", byKind[types.KindSMS].Topic)
	assert.Equal(t, types.DifficultyHard, byKind[types.KindEmail].Difficulty)
	assert.Equal(t, DefaultLanguage, byKind[types.KindSMS].Language)
	assert.Nil(t, byKind[types.KindEmail].Profile)

	assigns := h.platform.assigned()
	require.Len(t, assigns, 2)
	for _, a := range assigns {
		assert.Equal(t, "g-42", a.GroupID)
		assert.Empty(t, a.UserID)
		assert.Equal(t, "res-"+a.Kind, a.ResourceID, "assignment uses the platform resource id")
		assert.Equal(t, "lang-1", a.LanguageID)
	}
}

func TestRun_UserTargetProfile(t *testing.T) {
	h := newHarness(t, nil)

	run, err := h.svc.Run(context.Background(), Request{
		Target:     Target{UserID: "u-7"},
		Actions:    []Action{ActionPhishing},
		Difficulty: types.DifficultyMedium,
	})
	require.NoError(t, err)
	require.Len(t, run.Results, 1)
	assert.True(t, run.Results[0].Success)

	require.NotNil(t, h.risk.seen)
	assert.Equal(t, "u-7", h.risk.seen.ID)

	reqs := h.generator.seen()
	require.Len(t, reqs, 1)
	req := reqs[0]
	assert.Equal(t, "Shared document invitation", req.Topic)
	assert.Equal(t, types.DifficultyMedium, req.Difficulty, "explicit difficulty wins over the recommendation")
	assert.Equal(t, "de-de", req.Language)
	assert.True(t, req.IncludeMessage)
	assert.True(t, req.IncludeLandingPage)
	require.NotNil(t, req.Profile)
	assert.Equal(t, "Dana Reyes", req.Profile.Name)
	assert.Equal(t, "Finance", req.Profile.Department)
	assert.Equal(t, []string{"curiosity"}, req.Profile.Triggers)

	assigns := h.platform.assigned()
	require.Len(t, assigns, 1)
	assert.Equal(t, "u-7", assigns[0].UserID)
}

func TestRun_ActionsAreIsolated(t *testing.T) {
	h := newHarness(t, nil)
	h.generator.fn = func(_ context.Context, req types.GenerationRequest) (*pipeline.Result, error) {
		if req.Kind == types.KindEmail {
			return nil, &pipeline.StageError{
				Stage: pipeline.StageGenerateMessage,
				Cause: &resilience.ValidationError{Label: "email", Violations: []string{"missing url"}},
			}
		}
		return succeed(req), nil
	}

	run, err := h.svc.Run(context.Background(), Request{
		Target:  Target{GroupID: "g-1"},
		Actions: []Action{ActionPhishing, ActionSmishing},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, run.Status)
	require.Len(t, run.Results, 2)

	assert.Equal(t, ActionPhishing, run.Results[0].Action)
	assert.False(t, run.Results[0].Success)
	assert.Equal(t, "The generated content did not pass quality checks. Please try again.", run.Results[0].Error)

	assert.Equal(t, ActionSmishing, run.Results[1].Action)
	assert.True(t, run.Results[1].Success)
	assert.Equal(t, "res-smishing", run.Results[1].ResourceID)
}

func TestRun_TargetFailureIsFatal(t *testing.T) {
	h := newHarness(t, func(d *Deps) {
		d.Users = fakeUsers{err: errors.New("user not found")}
	})

	run, err := h.svc.Run(context.Background(), Request{
		Target:  Target{UserID: "missing"},
		Actions: []Action{ActionPhishing, ActionTraining},
	})
	require.Error(t, err)

	var targetErr *TargetError
	require.ErrorAs(t, err, &targetErr)
	assert.Equal(t, "lookup_user", targetErr.Step)

	require.NotNil(t, run)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, "The target could not be resolved.", run.Error)
	assert.Empty(t, run.Results)
	assert.NotNil(t, run.CompletedAt)
	assert.Empty(t, h.generator.seen())
}

func TestRun_EmptyTopicIsTargetFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.topics.sel = &TopicSelection{Topic: "  "}

	run, err := h.svc.Run(context.Background(), Request{
		Target:  Target{GroupID: "g-1"},
		Actions: []Action{ActionPhishing},
	})
	var targetErr *TargetError
	require.ErrorAs(t, err, &targetErr)
	assert.Equal(t, StatusFailed, run.Status)
}

func TestRun_UploadFailureRecorded(t *testing.T) {
	h := newHarness(t, nil)
	h.platform.failUpload = map[string]error{platform.ContentPhishing: errors.New("quota exceeded")}

	run, err := h.svc.Run(context.Background(), Request{
		Target:  Target{UserID: "u-1"},
		Actions: []Action{ActionPhishing},
	})
	require.NoError(t, err)
	require.Len(t, run.Results, 1)

	res := run.Results[0]
	assert.False(t, res.Success)
	assert.Equal(t, "artifact-email", res.ArtifactID, "generation output is kept")
	assert.Equal(t, "The content could not be uploaded to the platform.", res.Error)
	assert.Empty(t, h.platform.assigned())
}

func TestRun_AssignFailureRecorded(t *testing.T) {
	h := newHarness(t, nil)
	h.platform.failAssign = errors.New("group archived")

	run, err := h.svc.Run(context.Background(), Request{
		Target:  Target{GroupID: "g-1"},
		Actions: []Action{ActionSmishing},
	})
	require.NoError(t, err)

	res := run.Results[0]
	assert.False(t, res.Success)
	assert.False(t, res.Assigned)
	assert.Equal(t, "res-smishing", res.ResourceID)
	assert.Equal(t, "The content was uploaded but could not be assigned.", res.Error)
}

func TestRun_WithoutPlatformStopsAfterGeneration(t *testing.T) {
	h := newHarness(t, func(d *Deps) {
		d.Uploader = nil
		d.Assigner = nil
	})

	run, err := h.svc.Run(context.Background(), Request{
		Target:  Target{GroupID: "g-1"},
		Actions: []Action{ActionPhishing},
	})
	require.NoError(t, err)
	assert.True(t, run.Results[0].Success)
	assert.False(t, run.Results[0].Assigned)
	assert.Empty(t, run.Results[0].ResourceID)
}

func TestRun_PanicIsolatedToAction(t *testing.T) {
	h := newHarness(t, nil)
	h.generator.fn = func(_ context.Context, req types.GenerationRequest) (*pipeline.Result, error) {
		if req.Kind == types.KindSMS {
			panic("nil map write")
		}
		return succeed(req), nil
	}

	run, err := h.svc.Run(context.Background(), Request{
		Target:  Target{GroupID: "g-1"},
		Actions: []Action{ActionSmishing, ActionPhishing},
	})
	require.NoError(t, err)
	assert.Equal(t, "The action failed.", run.Results[0].Error)
	assert.True(t, run.Results[1].Success)
}

func TestRun_TrainingPersisted(t *testing.T) {
	h := newHarness(t, nil)

	run, err := h.svc.Run(context.Background(), Request{
		Target:  Target{GroupID: "g-1"},
		Actions: []Action{ActionTraining},
	})
	require.NoError(t, err)
	res := run.Results[0]
	require.True(t, res.Success, res.Error)
	require.NotEmpty(t, res.ArtifactID)

	module, err := h.svc.LoadTraining(context.Background(), res.ArtifactID)
	require.NoError(t, err)
	assert.Equal(t, "Quarterly payroll update", module.Topic)
	assert.Equal(t, types.DifficultyHard, module.Difficulty)
	assert.Equal(t, "Spotting Quarterly payroll update", module.Title)

	_, err = h.store.Get(context.Background(), TrainingKey(res.ArtifactID))
	assert.NoError(t, err)

	_, err = h.svc.LoadTraining(context.Background(), "missing")
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
	assert.Empty(t, h.generator.seen(), "training does not run the message pipeline")
}

func TestRun_RecordsLedger(t *testing.T) {
	h := newHarness(t, nil)

	run, err := h.svc.Run(context.Background(), Request{
		Target:  Target{GroupID: "g-1"},
		Actions: []Action{ActionPhishing, ActionSmishing},
	})
	require.NoError(t, err)

	stored, err := h.ledger.GetRun(context.Background(), run.RunID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, StatusCompleted, stored.Status)
	assert.ElementsMatch(t, []int{0, 1}, h.ledger.actions[run.RunID])
}

func TestRun_LedgerFailureDoesNotFailRun(t *testing.T) {
	h := newHarness(t, nil)
	h.ledger.failAll = true

	run, err := h.svc.Run(context.Background(), Request{
		Target:  Target{GroupID: "g-1"},
		Actions: []Action{ActionPhishing},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.True(t, run.Results[0].Success)
}

func TestRun_DeferredCompletesInBackground(t *testing.T) {
	pool := tasks.NewPool(context.Background(), 2, zerolog.Nop())
	release := make(chan struct{})

	h := newHarness(t, func(d *Deps) { d.Pool = pool })
	h.generator.fn = func(_ context.Context, req types.GenerationRequest) (*pipeline.Result, error) {
		<-release
		return succeed(req), nil
	}

	ack, err := h.svc.Run(context.Background(), Request{
		Target:  Target{GroupID: "g-1"},
		Actions: []Action{ActionPhishing},
		Mode:    ModeDeferred,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, ack.Status)
	assert.Equal(t, ModeDeferred, ack.Mode)
	assert.Empty(t, ack.Results)

	status, err := h.svc.Status(context.Background(), ack.RunID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, status.Status)

	close(release)
	require.NoError(t, pool.Shutdown(context.Background()))

	status, err = h.svc.Status(context.Background(), ack.RunID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status.Status)
	require.Len(t, status.Results, 1)
	assert.True(t, status.Results[0].Success)
}

func TestRun_DeferredAfterPoolShutdown(t *testing.T) {
	pool := tasks.NewPool(context.Background(), 1, zerolog.Nop())
	require.NoError(t, pool.Shutdown(context.Background()))
	h := newHarness(t, func(d *Deps) { d.Pool = pool })

	run, err := h.svc.Run(context.Background(), Request{
		Target:  Target{GroupID: "g-1"},
		Actions: []Action{ActionPhishing},
		Mode:    ModeDeferred,
	})
	require.ErrorIs(t, err, tasks.ErrPoolClosed)
	assert.Nil(t, run)
	assert.Empty(t, h.generator.seen())
}

func TestStatus(t *testing.T) {
	t.Run("unknown run", func(t *testing.T) {
		h := newHarness(t, nil)
		_, err := h.svc.Status(context.Background(), "nope")
		assert.ErrorIs(t, err, ErrRunNotFound)
	})

	t.Run("falls back to the ledger", func(t *testing.T) {
		h := newHarness(t, nil)
		completed := time.Now().UTC()
		h.ledger.runs["older"] = &RunResult{RunID: "older", Status: StatusCompleted, CompletedAt: &completed}

		run, err := h.svc.Status(context.Background(), "older")
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, run.Status)
	})

	t.Run("snapshots are copies", func(t *testing.T) {
		h := newHarness(t, nil)
		run, err := h.svc.Run(context.Background(), Request{
			Target:  Target{GroupID: "g-1"},
			Actions: []Action{ActionPhishing},
		})
		require.NoError(t, err)
		run.Results[0].Error = "mutated"

		again, err := h.svc.Status(context.Background(), run.RunID)
		require.NoError(t, err)
		assert.Empty(t, again.Results[0].Error)
	})
}
