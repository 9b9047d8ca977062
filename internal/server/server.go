package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/jonathan/phish-simulator/internal/autonomous"
	"github.com/jonathan/phish-simulator/internal/pipeline"
	"github.com/jonathan/phish-simulator/internal/server/middleware"
	"github.com/jonathan/phish-simulator/internal/server/ratelimit"
	"github.com/jonathan/phish-simulator/internal/types"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// Generator runs and reads back generation pipeline artifacts
type Generator interface {
	Run(ctx context.Context, req types.GenerationRequest) (*pipeline.Result, error)
	Load(ctx context.Context, kind types.ContentKind, id string) (*types.Artifact, error)
}

// Autonomous runs and reports autonomous runs
type Autonomous interface {
	Run(ctx context.Context, req autonomous.Request) (*autonomous.RunResult, error)
	Status(ctx context.Context, runID string) (*autonomous.RunResult, error)
	LoadTraining(ctx context.Context, id string) (*autonomous.TrainingModule, error)
}

// Deps are the collaborators of a Server. Autonomous and Limiter are optional.
type Deps struct {
	Generator  Generator
	Autonomous Autonomous
	Tokens     middleware.TokenValidator
	Limiter    *ratelimit.Limiter
	Logger     zerolog.Logger
}

// Config holds server configuration
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// EventInterval is how often run event streams poll for changes
	EventInterval time.Duration
}

// Server represents the HTTP server
type Server struct {
	cfg        Config
	deps       Deps
	logger     zerolog.Logger
	handler    http.Handler
	httpServer *http.Server
}

// New creates a new server instance
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Generator == nil {
		return nil, errors.New("server: generator is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("server: token validator is required")
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		// Long timeout for synchronous generation
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.EventInterval <= 0 {
		cfg.EventInterval = time.Second
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With().Str("component", "http").Logger(),
	}

	api := http.NewServeMux()
	api.HandleFunc("POST /v1/generate", s.handleGenerate)
	api.HandleFunc("GET /v1/artifacts/{kind}/{id}", s.handleArtifact)
	if deps.Autonomous != nil {
		api.HandleFunc("POST /v1/autonomous", s.handleAutonomous)
		api.HandleFunc("GET /v1/runs/{id}", s.handleRunStatus)
		api.HandleFunc("GET /v1/runs/{id}/events", s.handleRunEvents)
	}

	mux := http.NewServeMux()
	mux.Handle("/v1/", middleware.AuthMiddleware(deps.Tokens)(api))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.handler = middleware.Logging(s.logger)(s.withRateLimit(s.withCORS(mux)))
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s, nil
}

// Handler returns the root handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if s.deps.Limiter != nil {
		s.deps.Limiter.Stop()
	}
	s.logger.Info().Msg("server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	if s.deps.Limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.deps.Limiter.Allow(clientID(r), r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientID uses the IP address from RemoteAddr. X-Forwarded-For is ignored
// because no trusted proxy list is configured.
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}
	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Round(time.Second).Seconds())
		if seconds < 1 {
			seconds = 1
		}
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	zerolog.Ctx(r.Context()).Warn().
		Str("client", clientID(r)).
		Int("limit", info.Limit).
		Msg("rate limit exceeded")

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// errorResponse writes an error JSON response with a plain message
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, ErrorResponse{Error: message})
}

// failure maps err to a status and a safe body, logging server-side faults
func (s *Server) failure(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Int("status", status).Msg("request failed")
	}
	s.jsonResponse(w, status, errorBody(err))
}
