// Package app builds the service graph from configuration. It is shared by
// the HTTP server and the command line tools.
package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/jonathan/phish-simulator/internal/artifacts"
	"github.com/jonathan/phish-simulator/internal/autonomous"
	"github.com/jonathan/phish-simulator/internal/brand"
	"github.com/jonathan/phish-simulator/internal/config"
	"github.com/jonathan/phish-simulator/internal/consistency"
	"github.com/jonathan/phish-simulator/internal/db"
	"github.com/jonathan/phish-simulator/internal/htmlfix"
	"github.com/jonathan/phish-simulator/internal/kvstore"
	"github.com/jonathan/phish-simulator/internal/llm"
	"github.com/jonathan/phish-simulator/internal/metrics"
	"github.com/jonathan/phish-simulator/internal/pipeline"
	"github.com/jonathan/phish-simulator/internal/platform"
	"github.com/jonathan/phish-simulator/internal/policy"
	"github.com/jonathan/phish-simulator/internal/server"
	"github.com/jonathan/phish-simulator/internal/server/ratelimit"
	"github.com/jonathan/phish-simulator/internal/tasks"
)

// App holds the wired components and the resources to release on Close
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Registry   *llm.Registry
	Store      kvstore.Store
	Repository *artifacts.Repository
	Guard      *consistency.Guard
	Brands     *brand.CatalogResolver
	Policies   *policy.StoreSource
	Pipeline   *pipeline.Pipeline
	Platform   *platform.Client
	Pool       *tasks.Pool
	Autonomous *autonomous.Service

	closers []func() error
	drained chan struct{}
}

// New wires every component. Redis, PostgreSQL and the platform are optional:
// without REDIS_URL an in-process store is used, without DATABASE_URL runs are
// tracked in memory only, and without PLATFORM_BASE_URL autonomous actions stop
// after generation.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	if err := a.wire(ctx); err != nil {
		_ = a.Close(context.WithoutCancel(ctx))
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg, logger := a.Config, a.Logger

	vendor, model := cfg.DefaultProvider()
	a.Registry = llm.NewRegistry(string(vendor), model, llm.WithLogger(logger))
	a.closers = append(a.closers, a.Registry.Close)

	if cfg.RedisURL != "" {
		store, err := kvstore.OpenRedis(ctx, cfg.RedisURL,
			kvstore.WithKeyPrefix(cfg.RedisKeyPrefix),
			kvstore.WithTTL(cfg.ArtifactTTL))
		if err != nil {
			return fmt.Errorf("open artifact store: %w", err)
		}
		a.Store = store
		a.closers = append(a.closers, store.Close)
	} else {
		logger.Warn().Msg("REDIS_URL not set, artifacts are kept in process memory")
		a.Store = kvstore.NewMemoryStore(0)
	}

	a.Repository = artifacts.NewRepository(a.Store, logger)
	a.Guard = consistency.NewGuard(a.Store, logger)
	a.Brands = brand.NewCatalogResolver(a.Store, logger)
	a.Policies = policy.NewStoreSource(a.Store)

	retry := cfg.RetryPolicy()
	p, err := pipeline.New(pipeline.Deps{
		Providers:  a.Registry,
		Policy:     a.Policies,
		Brands:     a.Brands,
		HTML:       htmlfix.NewDocumentProcessor(htmlfix.NewHTTPImageValidator(cfg.ImageCheckTimeout)),
		Repository: a.Repository,
		Guard:      a.Guard,
		Logger:     logger,
	}, pipeline.Options{
		Retry:              retry,
		ConsistencyTimeout: cfg.ConsistencyTimeout,
		PollInterval:       cfg.ConsistencyPollInterval,
	})
	if err != nil {
		return err
	}
	a.Pipeline = p

	deps := autonomous.Deps{
		Generator:  a.Pipeline,
		Topics:     autonomous.NewLLMTopicSelector(a.Registry, retry),
		Risk:       autonomous.NewLLMRiskAnalyzer(a.Registry, retry, logger),
		Training:   autonomous.NewLLMTrainingGenerator(a.Registry, retry),
		Repository: a.Repository,
		Guard:      a.Guard,
		Logger:     logger,
	}

	if cfg.PlatformEnabled() {
		client, err := platform.NewClient(ctx, platform.Config{
			BaseURL:      cfg.PlatformBaseURL,
			TokenURL:     cfg.PlatformTokenURL,
			ClientID:     cfg.PlatformClientID,
			ClientSecret: cfg.PlatformClientSecret,
			Scopes:       cfg.PlatformScopes,
			Timeout:      cfg.PlatformTimeout,
		})
		if err != nil {
			return fmt.Errorf("create platform client: %w", err)
		}
		a.Platform = client
		deps.Users, deps.Uploader, deps.Assigner = client, client, client
	} else {
		logger.Warn().Msg("PLATFORM_BASE_URL not set, user targets and uploads are unavailable")
	}

	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error { database.Close(); return nil })
		deps.Recorder = autonomous.NewLedger(database)
	}

	a.Pool = tasks.NewPool(ctx, cfg.TaskWorkers, logger)
	deps.Pool = a.Pool
	a.drained = make(chan struct{})
	go a.drainTaskErrors()

	a.Autonomous, err = autonomous.NewService(deps, autonomous.Options{
		ConsistencyTimeout: cfg.ConsistencyTimeout,
		PollInterval:       cfg.ConsistencyPollInterval,
	})
	return err
}

// drainTaskErrors counts background failures until the pool shuts down
func (a *App) drainTaskErrors() {
	defer close(a.drained)
	for taskErr := range a.Pool.Errors() {
		metrics.BackgroundTaskFailuresTotal.WithLabelValues(strconv.FormatBool(taskErr.Panicked)).Inc()
	}
}

// Server builds the HTTP server. JWT_SECRET must be configured.
func (a *App) Server() (*server.Server, error) {
	jwtCfg, err := a.Config.JWT()
	if err != nil {
		return nil, err
	}
	limitCfg, err := ratelimit.LoadConfig()
	if err != nil {
		return nil, err
	}

	return server.New(server.Config{
		Addr:            a.Config.Addr(),
		ShutdownTimeout: a.Config.ShutdownTimeout,
	}, server.Deps{
		Generator:  a.Pipeline,
		Autonomous: a.Autonomous,
		Tokens:     server.NewJWTService(jwtCfg).AsTokenValidator(),
		Limiter:    ratelimit.NewLimiter(limitCfg),
		Logger:     a.Logger,
	})
}

// Close waits for background runs, bounded by ctx, then releases connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Pool != nil {
		if err := a.Pool.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("task pool shutdown: %w", err))
		}
		<-a.drained
	}
	errs = append(errs, a.release())
	return errors.Join(errs...)
}

func (a *App) release() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
