package app

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jonathan/phish-simulator/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

func loadConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	for _, key := range []string{"REDIS_URL", "DATABASE_URL", "PLATFORM_BASE_URL", "PLATFORM_CLIENT_ID", "JWT_SECRET"} {
		t.Setenv(key, "")
	}
	t.Setenv("RATE_LIMIT_CLEANUP_INTERVAL", "0s")
	for k, v := range env {
		t.Setenv(k, v)
	}
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestNew_InMemory(t *testing.T) {
	cfg := loadConfig(t, nil)

	a, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)

	assert.NotNil(t, a.Pipeline)
	assert.NotNil(t, a.Autonomous)
	assert.Nil(t, a.Platform)
	assert.NotNil(t, a.Pool)

	require.NoError(t, a.Close(context.Background()))
}

func TestNew_WithPlatform(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"PLATFORM_BASE_URL": "https://platform.example.com/api"})

	a, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, a.Platform)
	require.NoError(t, a.Close(context.Background()))
}

func TestNew_BadRedisURL(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"REDIS_URL": "not-a-redis-url"})

	_, err := New(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "artifact store")
}

func TestServer(t *testing.T) {
	t.Run("requires a JWT secret", func(t *testing.T) {
		cfg := loadConfig(t, nil)
		a, err := New(context.Background(), cfg, zerolog.Nop())
		require.NoError(t, err)
		defer a.Close(context.Background()) //nolint:errcheck

		_, err = a.Server()
		assert.ErrorContains(t, err, "JWT_SECRET")
	})

	t.Run("builds with a secret", func(t *testing.T) {
		cfg := loadConfig(t, map[string]string{"JWT_SECRET": "a-long-enough-test-secret"})
		a, err := New(context.Background(), cfg, zerolog.Nop())
		require.NoError(t, err)
		defer a.Close(context.Background()) //nolint:errcheck

		s, err := a.Server()
		require.NoError(t, err)
		assert.NotNil(t, s.Handler())
	})
}
