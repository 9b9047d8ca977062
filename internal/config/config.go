// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/jonathan/phish-simulator/internal/llm"
	"github.com/jonathan/phish-simulator/internal/resilience"
)

// Config holds the environment driven configuration. Provider credentials are
// deliberately absent: the provider registry reads them when a vendor is first used.
type Config struct {
	// Service
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"phish-simulator"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Generation
	LLMDefaultVendor      string        `env:"LLM_DEFAULT_VENDOR" envDefault:"google"`
	LLMDefaultModel       string        `env:"LLM_DEFAULT_MODEL" envDefault:"gemini-2.5-flash"`
	GenerationCallTimeout time.Duration `env:"GENERATION_CALL_TIMEOUT" envDefault:"60s"`
	RetryMaxAttempts      int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"3"`
	RetryInitialDelay     time.Duration `env:"RETRY_INITIAL_DELAY" envDefault:"500ms"`
	RetryMaxDelay         time.Duration `env:"RETRY_MAX_DELAY" envDefault:"8s"`

	// Key-value store; empty RedisURL selects the in-process store
	RedisURL       string        `env:"REDIS_URL"`
	RedisKeyPrefix string        `env:"REDIS_KEY_PREFIX" envDefault:""`
	ArtifactTTL    time.Duration `env:"ARTIFACT_TTL" envDefault:"0s"`

	// Consistency guard
	ConsistencyTimeout      time.Duration `env:"CONSISTENCY_TIMEOUT" envDefault:"5s"`
	ConsistencyPollInterval time.Duration `env:"CONSISTENCY_POLL_INTERVAL" envDefault:"250ms"`

	// Run ledger; optional
	DatabaseURL string `env:"DATABASE_URL"`

	// Platform
	PlatformBaseURL      string        `env:"PLATFORM_BASE_URL"`
	PlatformTokenURL     string        `env:"PLATFORM_TOKEN_URL"`
	PlatformClientID     string        `env:"PLATFORM_CLIENT_ID"`
	PlatformClientSecret string        `env:"PLATFORM_CLIENT_SECRET"`
	PlatformScopes       []string      `env:"PLATFORM_SCOPES" envSeparator:","`
	PlatformTimeout      time.Duration `env:"PLATFORM_TIMEOUT" envDefault:"30s"`

	// Post-processing
	ImageCheckTimeout time.Duration `env:"IMAGE_CHECK_TIMEOUT" envDefault:"5s"`

	// Background work
	TaskWorkers int `env:"TASK_WORKERS" envDefault:"4"`

	// Authentication
	JWTSecret          string `env:"JWT_SECRET"`
	JWTExpirationHours int    `env:"JWT_EXPIRATION_HOURS" envDefault:"24"`
}

// Load parses environment variables into Config and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	cfg.LLMDefaultVendor = strings.TrimSpace(cfg.LLMDefaultVendor)
	cfg.LLMDefaultModel = strings.TrimSpace(cfg.LLMDefaultModel)
	cfg.RedisURL = strings.TrimSpace(cfg.RedisURL)
	cfg.PlatformBaseURL = strings.TrimSpace(cfg.PlatformBaseURL)
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration has valid values.
// Unknown default vendor/model values are not rejected here; the registry
// replaces them with the built-in default and logs a warning.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("config error: HTTP_PORT must be between 1 and 65535, got %d", c.HTTPPort)
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("config error: LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("config error: RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if c.GenerationCallTimeout <= 0 {
		return fmt.Errorf("config error: GENERATION_CALL_TIMEOUT must be positive")
	}
	if c.ConsistencyTimeout <= 0 {
		return fmt.Errorf("config error: CONSISTENCY_TIMEOUT must be positive")
	}
	if c.ConsistencyPollInterval <= 0 || c.ConsistencyPollInterval > c.ConsistencyTimeout {
		return fmt.Errorf("config error: CONSISTENCY_POLL_INTERVAL must be positive and not exceed CONSISTENCY_TIMEOUT")
	}
	if c.PlatformClientID != "" && c.PlatformTokenURL == "" {
		return fmt.Errorf("config error: PLATFORM_TOKEN_URL is required when PLATFORM_CLIENT_ID is set")
	}
	if c.PlatformClientID != "" && c.PlatformBaseURL == "" {
		return fmt.Errorf("config error: PLATFORM_BASE_URL is required when PLATFORM_CLIENT_ID is set")
	}
	if c.TaskWorkers < 1 {
		return fmt.Errorf("config error: TASK_WORKERS must be at least 1")
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// RetryPolicy returns the blind-retry policy for generation calls.
func (c *Config) RetryPolicy() resilience.Policy {
	p := resilience.DefaultPolicy()
	p.MaxAttempts = c.RetryMaxAttempts
	if c.RetryInitialDelay > 0 {
		p.InitialDelay = c.RetryInitialDelay
	}
	if c.RetryMaxDelay > 0 {
		p.MaxDelay = c.RetryMaxDelay
	}
	p.CallTimeout = c.GenerationCallTimeout
	return p
}

// DefaultProvider returns the configured default vendor and model, falling back
// to the built-in default when the vendor is not recognised.
func (c *Config) DefaultProvider() (llm.Vendor, string) {
	v, ok := llm.NormalizeVendor(c.LLMDefaultVendor)
	if !ok {
		return llm.DefaultVendor, llm.DefaultModel
	}
	return v, c.LLMDefaultModel
}

// PlatformEnabled reports whether a platform endpoint is configured.
func (c *Config) PlatformEnabled() bool {
	return c.PlatformBaseURL != ""
}
