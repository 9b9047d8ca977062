package ratelimit

import (
	"fmt"
	"net/http"
	"time"

	"github.com/caarlos0/env/v10"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path pattern (supports prefix matching)
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	DefaultLimit    int           `env:"RATE_LIMIT_DEFAULT_LIMIT" envDefault:"600"`
	DefaultWindow   time.Duration `env:"RATE_LIMIT_DEFAULT_WINDOW" envDefault:"1m"`
	CleanupInterval time.Duration `env:"RATE_LIMIT_CLEANUP_INTERVAL" envDefault:"5m"`
	IdleTTL         time.Duration `env:"RATE_LIMIT_IDLE_TTL" envDefault:"1h"`
	Whitelist       []string      `env:"RATE_LIMIT_WHITELIST" envSeparator:","`
	Blacklist       []string      `env:"RATE_LIMIT_BLACKLIST" envSeparator:","`
	EndpointConfigs []EndpointConfig
}

// LoadConfig loads rate limiting configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse rate limit config: %w", err)
	}
	if cfg.DefaultLimit < 0 || cfg.DefaultWindow <= 0 {
		return nil, fmt.Errorf("rate limit config: default limit must be non-negative and window positive")
	}
	cfg.EndpointConfigs = DefaultEndpointConfigs()
	return cfg, nil
}

// DefaultEndpointConfigs returns the default endpoint-specific configurations.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Generation calls several model backends per request
		{Path: "/v1/generate", Method: http.MethodPost, Limit: 60, Window: time.Hour, Burst: 5},
		{Path: "/v1/autonomous", Method: http.MethodPost, Limit: 30, Window: time.Hour, Burst: 3},

		// Reads fall through to the default limit; health and metrics are unlimited
	}
}
