// Package pipeline turns a generation request into a validated, post-processed
// and persisted simulation artifact.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/phish-simulator/internal/artifacts"
	"github.com/jonathan/phish-simulator/internal/brand"
	"github.com/jonathan/phish-simulator/internal/consistency"
	"github.com/jonathan/phish-simulator/internal/htmlfix"
	"github.com/jonathan/phish-simulator/internal/kvstore"
	"github.com/jonathan/phish-simulator/internal/llm"
	"github.com/jonathan/phish-simulator/internal/metrics"
	"github.com/jonathan/phish-simulator/internal/policy"
	"github.com/jonathan/phish-simulator/internal/resilience"
	"github.com/jonathan/phish-simulator/internal/types"
	"github.com/jonathan/phish-simulator/internal/validation"
)

// Default consistency settings
const (
	DefaultConsistencyTimeout = 5 * time.Second
	DefaultPollInterval       = 250 * time.Millisecond
)

// ProviderResolver maps vendor/model hints to a callable selection
type ProviderResolver interface {
	Resolve(ctx context.Context, vendorHint, modelHint string) llm.Selection
}

// Deps are the collaborators a pipeline runs against. Policy, Brands and HTML may be nil.
type Deps struct {
	Providers  ProviderResolver
	Policy     policy.Source
	Brands     brand.Resolver
	HTML       htmlfix.Processor
	Repository *artifacts.Repository
	Guard      *consistency.Guard
	Logger     zerolog.Logger
}

// Options tune retries and the consistency wait
type Options struct {
	Retry              resilience.Policy
	ConsistencyTimeout time.Duration
	PollInterval       time.Duration
}

// Provider identifies the backend that produced an artifact
type Provider struct {
	Vendor   string `json:"vendor"`
	Model    string `json:"model"`
	Fallback bool   `json:"fallback,omitempty"`
}

// Result is a successfully persisted artifact
type Result struct {
	ArtifactID  string                  `json:"artifact_id"`
	Kind        types.ContentKind       `json:"kind"`
	Subject     string                  `json:"subject,omitempty"`
	Messages    []string                `json:"messages,omitempty"`
	Analysis    *types.ScenarioAnalysis `json:"scenario_analysis"`
	Message     *types.MessagePart      `json:"message,omitempty"`
	LandingPage *types.LandingPage      `json:"landing_page,omitempty"`
	Brand       *types.BrandContext     `json:"brand,omitempty"`
	Provider    Provider                `json:"provider"`
	Consistent  bool                    `json:"consistent"`
	Warnings    []string                `json:"warnings,omitempty"`
	Parts       []types.PartStatus      `json:"parts"`
}

// Pipeline runs generation requests. It holds no per-run state and is safe
// for concurrent use.
type Pipeline struct {
	deps   Deps
	opts   Options
	logger zerolog.Logger

	newID func() string
	now   func() time.Time
}

// New creates a pipeline. Providers, Repository and Guard are required.
func New(deps Deps, opts Options) (*Pipeline, error) {
	switch {
	case deps.Providers == nil:
		return nil, errors.New("pipeline: provider resolver is required")
	case deps.Repository == nil:
		return nil, errors.New("pipeline: artifact repository is required")
	case deps.Guard == nil:
		return nil, errors.New("pipeline: consistency guard is required")
	}
	if deps.HTML == nil {
		deps.HTML = htmlfix.NewDocumentProcessor(nil)
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultPolicy()
	}
	if opts.ConsistencyTimeout <= 0 {
		opts.ConsistencyTimeout = DefaultConsistencyTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	return &Pipeline{
		deps:   deps,
		opts:   opts,
		logger: deps.Logger.With().Str("component", "pipeline").Logger(),
		newID:  uuid.NewString,
		now:    time.Now,
	}, nil
}

// run carries the request-scoped state of one pipeline run
type run struct {
	req       types.GenerationRequest
	gen       *Generator
	logger    zerolog.Logger
	policy    string
	analysis  *types.ScenarioAnalysis
	brand     types.BrandContext
	warnings  []string
	message   *types.MessagePart
	landing   *types.LandingPage
	msgStatus types.PartStatus
	lpStatus  types.PartStatus
}

// Run executes every stage for req. Failures are returned as *StageError.
// A consistency timeout is not a failure: the result reports Consistent=false.
func (p *Pipeline) Run(ctx context.Context, req types.GenerationRequest) (*Result, error) {
	req = req.Normalized()
	kind := string(req.Kind)

	if err := validation.ValidateRequest(req); err != nil {
		return nil, p.fail(kind, StageValidateRequest, err)
	}

	logger := p.logger.With().
		Str("kind", kind).
		Str("topic", req.Topic).
		Str("difficulty", string(req.Difficulty)).
		Logger()
	ctx = logger.WithContext(ctx)

	sel := p.deps.Providers.Resolve(ctx, req.Vendor, req.Model)
	r := &run{
		req:    req,
		gen:    NewGenerator(sel, p.opts.Retry),
		logger: logger,
	}
	logger.Info().
		Str("vendor", string(sel.Vendor)).
		Str("model", sel.Model).
		Bool("fallback", sel.Fallback).
		Msg("pipeline started")

	p.fetchPolicyContext(ctx, r)

	if err := p.analyze(ctx, r); err != nil {
		return nil, p.fail(kind, StageAnalyze, err)
	}

	p.resolveBrand(ctx, r)

	if err := p.generate(ctx, r); err != nil {
		var stageErr *StageError
		if errors.As(err, &stageErr) {
			return nil, p.fail(kind, stageErr.Stage, stageErr.Cause)
		}
		return nil, p.fail(kind, StageGenerateMessage, err)
	}

	if err := p.postProcess(ctx, r); err != nil {
		return nil, p.fail(kind, StagePostProcess, err)
	}

	artifact := p.assemble(r)
	keys, err := p.deps.Repository.Save(ctx, artifact)
	if err != nil {
		return nil, p.fail(kind, StagePersist, err)
	}

	consistent := p.deps.Guard.Wait(ctx, keys, p.opts.ConsistencyTimeout, p.opts.PollInterval)
	if !consistent {
		r.warnings = append(r.warnings, "the artifact was saved but is not yet readable everywhere; reads may briefly miss it")
		logger.Warn().
			Str("artifact_id", artifact.Base.ID).
			Dur("timeout", p.opts.ConsistencyTimeout).
			Msg("artifact not visible before consistency deadline")
	}

	metrics.PipelineRunsTotal.WithLabelValues(kind, "success").Inc()
	logger.Info().
		Str("artifact_id", artifact.Base.ID).
		Bool("consistent", consistent).
		Msg("pipeline completed")

	return p.result(r, artifact, consistent), nil
}

func (p *Pipeline) fail(kind string, stage Stage, cause error) error {
	metrics.PipelineRunsTotal.WithLabelValues(kind, "failed").Inc()
	p.logger.Error().
		Err(cause).
		Str("kind", kind).
		Str("stage", string(stage)).
		Msg("pipeline failed")
	return &StageError{Stage: stage, Cause: cause}
}

// generate runs the message and landing page stages concurrently. Each branch
// writes only its own fields of r.
func (p *Pipeline) generate(ctx context.Context, r *run) error {
	eg, egCtx := errgroup.WithContext(ctx)

	if r.req.IncludeMessage {
		eg.Go(func() error {
			msg, status, err := p.generateMessage(egCtx, r)
			if err != nil {
				return &StageError{Stage: StageGenerateMessage, Cause: err}
			}
			r.message, r.msgStatus = msg, status
			return nil
		})
	}

	if r.req.IncludeLandingPage {
		eg.Go(func() error {
			lp, status, err := p.generateLandingPage(egCtx, r)
			if err != nil {
				return &StageError{Stage: StageGenerateLandingPage, Cause: err}
			}
			r.landing, r.lpStatus = lp, status
			return nil
		})
	}

	return eg.Wait()
}

func (p *Pipeline) assemble(r *run) *types.Artifact {
	sel := r.gen.Selection()
	base := types.ArtifactBase{
		ID:         p.newID(),
		Kind:       r.req.Kind,
		Topic:      r.req.Topic,
		Difficulty: r.req.Difficulty,
		Language:   r.req.Language,
		Analysis:   r.analysis,
		Vendor:     string(sel.Vendor),
		Model:      sel.Model,
		CreatedAt:  p.now().UTC(),
	}
	if r.message != nil {
		base.Status = append(base.Status, r.msgStatus)
	}
	if r.landing != nil {
		base.Status = append(base.Status, r.lpStatus)
	}
	return &types.Artifact{Base: base, Message: r.message, LandingPage: r.landing}
}

func (p *Pipeline) result(r *run, a *types.Artifact, consistent bool) *Result {
	sel := r.gen.Selection()
	res := &Result{
		ArtifactID:  a.Base.ID,
		Kind:        a.Base.Kind,
		Analysis:    r.analysis,
		Message:     r.message,
		LandingPage: r.landing,
		Provider:    Provider{Vendor: string(sel.Vendor), Model: sel.Model, Fallback: sel.Fallback},
		Consistent:  consistent,
		Warnings:    r.warnings,
		Parts:       a.Base.Status,
	}
	if r.landing != nil {
		bc := r.brand
		res.Brand = &bc
	}
	if r.message != nil {
		if r.message.Email != nil {
			res.Subject = r.message.Email.Subject
		}
		if r.message.SMS != nil {
			res.Messages = r.message.SMS.Messages
		}
	}
	return res
}

// Load reads a persisted artifact. A missing base record is retried at the poll
// interval until the consistency timeout has elapsed, covering writes that are
// not yet visible to this reader.
func (p *Pipeline) Load(ctx context.Context, kind types.ContentKind, id string) (*types.Artifact, error) {
	deadline := p.now().Add(p.opts.ConsistencyTimeout)
	for {
		a, err := p.deps.Repository.Load(ctx, kind, id)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, kvstore.ErrNotFound) || !p.now().Before(deadline) {
			return nil, err
		}

		timer := time.NewTimer(p.opts.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
