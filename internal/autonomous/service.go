package autonomous

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/phish-simulator/internal/artifacts"
	"github.com/jonathan/phish-simulator/internal/consistency"
	"github.com/jonathan/phish-simulator/internal/metrics"
	"github.com/jonathan/phish-simulator/internal/platform"
	"github.com/jonathan/phish-simulator/internal/resilience"
	"github.com/jonathan/phish-simulator/internal/tasks"
	"github.com/jonathan/phish-simulator/internal/types"
)

// Action steps, used in errors and logs
const (
	stepGenerate = "generate"
	stepUpload   = "upload"
	stepAssign   = "assign"
)

// DefaultLanguage is used when neither the request nor the user names one
const DefaultLanguage = "en-gb"

// maxTopicRunes keeps derived topics inside the pipeline's request limit
const maxTopicRunes = 500

// Deps are the collaborators of a Service. Uploader, Assigner, Recorder and
// Pool may be nil: without a platform, actions stop after generation; without
// a pool, deferred mode is rejected.
type Deps struct {
	Generator  ContentGenerator
	Users      UserDirectory
	Topics     TopicSelector
	Risk       RiskAnalyzer
	Training   TrainingGenerator
	Uploader   Uploader
	Assigner   Assigner
	Repository *artifacts.Repository
	Guard      *consistency.Guard
	Recorder   RunRecorder
	Pool       *tasks.Pool
	Logger     zerolog.Logger
}

// Options tune platform retries and the training consistency wait
type Options struct {
	PlatformRetry      resilience.Policy
	ConsistencyTimeout time.Duration
	PollInterval       time.Duration
	// TrackedRuns bounds the in-memory run status table
	TrackedRuns int
}

// Service executes autonomous runs
type Service struct {
	deps    Deps
	opts    Options
	logger  zerolog.Logger
	tracker *tracker

	newID func() string
	now   func() time.Time
}

// NewService creates a service. Generator is required; Users and Risk are
// required for user targets and Topics for group targets, which is checked
// per run.
func NewService(deps Deps, opts Options) (*Service, error) {
	if deps.Generator == nil {
		return nil, errors.New("autonomous: content generator is required")
	}
	if opts.PlatformRetry.MaxAttempts == 0 {
		opts.PlatformRetry = resilience.Policy{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2,
			JitterFactor: 0.2,
			CallTimeout:  30 * time.Second,
		}
	}
	if opts.ConsistencyTimeout <= 0 {
		opts.ConsistencyTimeout = 5 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}

	return &Service{
		deps:    deps,
		opts:    opts,
		logger:  deps.Logger.With().Str("component", "autonomous").Logger(),
		tracker: newTracker(opts.TrackedRuns),
		newID:   uuid.NewString,
		now:     time.Now,
	}, nil
}

// Run validates req and executes it. In sync mode it returns the finished run;
// a target resolution failure returns the failed run together with a
// *TargetError. In deferred mode it returns a processing acknowledgment and the
// run continues on the task pool. Invalid requests return *types.InputError
// before any work starts.
func (s *Service) Run(ctx context.Context, req Request) (*RunResult, error) {
	req, err := normalize(req)
	if err != nil {
		return nil, err
	}
	if req.Mode == ModeDeferred && s.deps.Pool == nil {
		return nil, &types.InputError{Field: "mode", Message: "deferred mode is not available"}
	}

	run := &RunResult{
		RunID:     s.newID(),
		Mode:      req.Mode,
		Status:    StatusProcessing,
		Target:    req.Target,
		Actions:   req.Actions,
		CreatedAt: s.now().UTC(),
	}
	logger := s.logger.With().
		Str("run_id", run.RunID).
		Str("target_type", req.Target.Kind()).
		Str("mode", string(req.Mode)).
		Logger()
	ctx = logger.WithContext(ctx)

	s.tracker.put(run)
	s.record(ctx, "create run", func(ctx context.Context, r RunRecorder) error {
		return r.CreateRun(ctx, run)
	})
	logger.Info().Interface("actions", req.Actions).Msg("autonomous run started")

	if req.Mode == ModeSync {
		return s.execute(ctx, req, run)
	}

	ack := run.clone()
	err = s.deps.Pool.Submit("autonomous_run:"+run.RunID, func(poolCtx context.Context) error {
		_, err := s.execute(logger.WithContext(poolCtx), req, run)
		return err
	})
	if err != nil {
		s.finish(ctx, run, StatusFailed, "The run could not be scheduled.")
		return nil, fmt.Errorf("schedule run: %w", err)
	}
	return ack, nil
}

// Status returns the latest known state of a run, from memory first and then
// from the ledger.
func (s *Service) Status(ctx context.Context, runID string) (*RunResult, error) {
	if run, ok := s.tracker.get(runID); ok {
		return run, nil
	}
	if reader, ok := s.deps.Recorder.(RunReader); ok {
		run, err := reader.GetRun(ctx, runID)
		if err != nil {
			return nil, err
		}
		if run != nil {
			return run, nil
		}
	}
	return nil, ErrRunNotFound
}

// execute resolves the target and runs every action. run is owned by the
// caller's goroutine; actions write only their own result slot.
func (s *Service) execute(ctx context.Context, req Request, run *RunResult) (*RunResult, error) {
	logger := zerolog.Ctx(ctx)

	p, err := s.resolveTarget(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("target resolution failed")
		s.finish(ctx, run, StatusFailed, "The target could not be resolved.")
		return run.clone(), err
	}
	run.Topic = p.topic
	s.tracker.put(run)

	results := make([]ActionResult, len(req.Actions))
	var eg errgroup.Group
	for i, action := range req.Actions {
		eg.Go(func() error {
			results[i] = s.safeAction(ctx, req, p, action)
			s.record(ctx, "record action", func(ctx context.Context, r RunRecorder) error {
				return r.RecordAction(ctx, run.RunID, i, results[i])
			})
			return nil
		})
	}
	_ = eg.Wait()

	run.Results = results
	s.finish(ctx, run, StatusCompleted, "")

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	logger.Info().
		Int("succeeded", succeeded).
		Int("actions", len(results)).
		Msg("autonomous run completed")
	return run.clone(), nil
}

func (s *Service) finish(ctx context.Context, run *RunResult, status, message string) {
	completed := s.now().UTC()
	run.Status = status
	run.Error = message
	run.CompletedAt = &completed
	s.tracker.put(run)
	s.record(ctx, "complete run", func(ctx context.Context, r RunRecorder) error {
		return r.CompleteRun(ctx, run)
	})
}

// record writes to the ledger. Failures are logged and never fail the run.
func (s *Service) record(ctx context.Context, what string, fn func(context.Context, RunRecorder) error) {
	if s.deps.Recorder == nil {
		return
	}
	if err := fn(context.WithoutCancel(ctx), s.deps.Recorder); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("op", what).Msg("run ledger write failed")
	}
}

// safeAction runs one action and converts a panic into a failed result
func (s *Service) safeAction(ctx context.Context, req Request, p *plan, action Action) (res ActionResult) {
	defer func() {
		if r := recover(); r != nil {
			zerolog.Ctx(ctx).Error().
				Str("action", string(action)).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("action panicked")
			metrics.AutonomousActionsTotal.WithLabelValues(string(action), "failed").Inc()
			res = ActionResult{Action: action, Error: "The action failed."}
		}
	}()
	return s.runAction(ctx, req, p, action)
}

func (s *Service) runAction(ctx context.Context, req Request, p *plan, action Action) ActionResult {
	logger := zerolog.Ctx(ctx).With().Str("action", string(action)).Logger()
	res := ActionResult{Action: action}

	fail := func(step string, err error) ActionResult {
		actionErr := &ActionError{Action: action, Step: step, Cause: err}
		logger.Error().Err(err).Str("step", step).Msg("action failed")
		metrics.AutonomousActionsTotal.WithLabelValues(string(action), "failed").Inc()
		res.Error = actionErr.Message()
		return res
	}

	content, err := s.generate(ctx, req, p, action)
	if err != nil {
		return fail(stepGenerate, err)
	}
	res.ArtifactID = content.ArtifactID

	if s.deps.Uploader == nil {
		logger.Debug().Msg("no platform configured, skipping upload and assignment")
		metrics.AutonomousActionsTotal.WithLabelValues(string(action), "success").Inc()
		res.Success = true
		return res
	}

	upload, err := resilience.WithRetry(ctx, "platform_upload", s.opts.PlatformRetry,
		func(ctx context.Context) (*platform.UploadResult, error) {
			return s.deps.Uploader.Upload(ctx, platform.UploadRequest{
				ArtifactID:  content.ArtifactID,
				Kind:        contentKind(action),
				Name:        content.Name,
				Description: content.Description,
				Language:    content.Language,
				Difficulty:  string(content.Difficulty),
				Content:     content.Body,
			})
		})
	if err != nil {
		return fail(stepUpload, err)
	}
	res.ResourceID, res.LanguageID = upload.ResourceID, upload.LanguageID

	if s.deps.Assigner != nil {
		_, err = resilience.WithRetry(ctx, "platform_assign", s.opts.PlatformRetry,
			func(ctx context.Context) (struct{}, error) {
				return struct{}{}, s.deps.Assigner.Assign(ctx, platform.AssignRequest{
					ResourceID: upload.ResourceID,
					Kind:       contentKind(action),
					LanguageID: upload.LanguageID,
					UserID:     req.Target.UserID,
					GroupID:    req.Target.GroupID,
				})
			})
		if err != nil {
			return fail(stepAssign, err)
		}
		res.Assigned = true
	}

	metrics.AutonomousActionsTotal.WithLabelValues(string(action), "success").Inc()
	logger.Info().
		Str("artifact_id", res.ArtifactID).
		Str("resource_id", res.ResourceID).
		Bool("assigned", res.Assigned).
		Msg("action completed")
	res.Success = true
	return res
}

func contentKind(a Action) string {
	switch a {
	case ActionSmishing:
		return platform.ContentSmishing
	case ActionTraining:
		return platform.ContentTraining
	}
	return platform.ContentPhishing
}

func truncateRunes(s string, limit int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= limit {
		return string(r)
	}
	return string(r[:limit])
}
