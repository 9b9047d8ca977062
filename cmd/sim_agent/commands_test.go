package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/phish-simulator/internal/autonomous"
	"github.com/jonathan/phish-simulator/internal/config"
	"github.com/jonathan/phish-simulator/internal/server"
	"github.com/jonathan/phish-simulator/internal/types"
)

func TestToken(t *testing.T) {
	isolateEnv(t, nil)

	stdout, _, err := execute(t, "token", "--subject", "ops@example.com")
	require.NoError(t, err)

	token := strings.TrimSpace(stdout)
	require.NotEmpty(t, token)

	svc := server.NewJWTService(&config.JWTConfig{Secret: testSecret, ExpirationHours: 24})
	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
}

func TestToken_Errors(t *testing.T) {
	t.Run("missing subject", func(t *testing.T) {
		isolateEnv(t, nil)
		_, _, err := execute(t, "token")
		assert.ErrorContains(t, err, `required flag(s) "subject" not set`)
	})

	t.Run("missing secret", func(t *testing.T) {
		isolateEnv(t, map[string]string{"JWT_SECRET": ""})
		_, _, err := execute(t, "token", "--subject", "ops")
		assert.ErrorContains(t, err, "JWT_SECRET is required")
	})
}

func TestResolve(t *testing.T) {
	env := map[string]string{
		"LLM_DEFAULT_VENDOR": "openai",
		"LLM_DEFAULT_MODEL":  "gpt-4o-mini",
		"OPENAI_API_KEY":     "sk-test",
	}

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "no hints uses default",
			args: nil,
			want: "vendor=openai model=gpt-4o-mini fallback=false",
		},
		{
			name: "symbolic hints are normalized",
			args: []string{"OPENAI", "GPT_4O_MINI"},
			want: "vendor=openai model=gpt-4o-mini fallback=false",
		},
		{
			name: "unsupported vendor falls back",
			args: []string{"acme", "rocket-1"},
			want: "vendor=openai model=gpt-4o-mini fallback=true",
		},
		{
			name: "vendor without credentials falls back",
			args: []string{"gemini", "gemini-2.5-flash"},
			want: "vendor=openai model=gpt-4o-mini fallback=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t, env)
			stdout, _, err := execute(t, append([]string{"resolve"}, tt.args...)...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, strings.TrimSpace(stdout))
		})
	}
}

func TestResolve_TooManyArgs(t *testing.T) {
	isolateEnv(t, nil)
	_, _, err := execute(t, "resolve", "openai", "gpt-4o", "extra")
	assert.Error(t, err)
}

func TestGenerationRequest(t *testing.T) {
	t.Cleanup(func() { resetFlags(rootCmd) })

	genTopic = "Password reset"
	genKind = " SMS "
	genDifficulty = "hard"
	genLanguage = "de-de"
	genTargetName = "Dana Reyes"
	genMessageOnly = true

	req, err := generationRequest()
	require.NoError(t, err)

	assert.Equal(t, types.KindSMS, req.Kind)
	assert.Equal(t, types.DifficultyHard, req.Difficulty)
	assert.True(t, req.IncludeMessage)
	assert.False(t, req.IncludeLandingPage)
	require.NotNil(t, req.Profile)
	assert.Equal(t, "Dana Reyes", req.Profile.Name)

	genDifficulty = "extreme"
	_, err = generationRequest()
	var inputErr *types.InputError
	assert.ErrorAs(t, err, &inputErr)
}

func TestGenerate_Errors(t *testing.T) {
	t.Run("topic required", func(t *testing.T) {
		isolateEnv(t, nil)
		_, _, err := execute(t, "generate")
		assert.ErrorContains(t, err, `required flag(s) "topic" not set`)
	})

	t.Run("parts are exclusive", func(t *testing.T) {
		isolateEnv(t, nil)
		_, _, err := execute(t, "generate", "--topic", "x", "--message-only", "--landing-only")
		assert.Error(t, err)
	})

	t.Run("invalid kind fails before generation", func(t *testing.T) {
		isolateEnv(t, nil)
		stdout, _, err := execute(t, "generate", "--topic", "Password reset", "--kind", "fax")
		assert.Error(t, err)
		assert.Empty(t, stdout)
	})
}

func TestAutonomous_Flags(t *testing.T) {
	t.Run("target required", func(t *testing.T) {
		isolateEnv(t, nil)
		_, _, err := execute(t, "autonomous")
		assert.ErrorContains(t, err, "at least one of the flags")
	})

	t.Run("user and group exclusive", func(t *testing.T) {
		isolateEnv(t, nil)
		_, _, err := execute(t, "autonomous", "--user", "u1", "--group", "g1")
		assert.Error(t, err)
	})
}

func TestAutonomousRequest(t *testing.T) {
	t.Cleanup(func() { resetFlags(rootCmd) })

	autoGroup = "g-1"
	autoActions = []string{"phishing", "training"}
	autoDifficulty = "Easy"

	req := autonomousRequest()
	assert.Equal(t, autonomous.Target{GroupID: "g-1"}, req.Target)
	assert.Equal(t, []autonomous.Action{autonomous.ActionPhishing, autonomous.ActionTraining}, req.Actions)
	assert.Equal(t, autonomous.ModeSync, req.Mode)
	assert.Equal(t, types.DifficultyEasy, req.Difficulty)
}

func TestAutonomous_UserWithoutPlatform(t *testing.T) {
	isolateEnv(t, nil)

	stdout, _, err := execute(t, "autonomous", "--user", "user-1", "--action", "phishing")

	var targetErr *autonomous.TargetError
	require.ErrorAs(t, err, &targetErr)

	var run autonomous.RunResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &run))
	assert.Equal(t, autonomous.StatusFailed, run.Status)
	assert.Equal(t, "user-1", run.Target.UserID)
	assert.NotEmpty(t, run.Error)
}

func TestAutonomous_FindUser(t *testing.T) {
	t.Run("requires platform", func(t *testing.T) {
		isolateEnv(t, nil)
		_, _, err := execute(t, "autonomous", "--find-user", "jane@acme.test")
		assert.ErrorContains(t, err, "PLATFORM_BASE_URL is required")
	})

	t.Run("exclusive with user", func(t *testing.T) {
		isolateEnv(t, nil)
		_, _, err := execute(t, "autonomous", "--find-user", "jane", "--user", "u1")
		assert.Error(t, err)
	})

	t.Run("no match", func(t *testing.T) {
		server := newPlatformServer(t, "u-42")
		isolateEnv(t, map[string]string{"PLATFORM_BASE_URL": server.URL})
		_, _, err := execute(t, "autonomous", "--find-user", "nobody")
		assert.ErrorContains(t, err, "user not found")
	})

	t.Run("resolved id becomes the target", func(t *testing.T) {
		server := newPlatformServer(t, "u-42")
		isolateEnv(t, map[string]string{"PLATFORM_BASE_URL": server.URL})

		stdout, _, err := execute(t, "autonomous", "--find-user", "Jane Doe", "--action", "phishing")

		var targetErr *autonomous.TargetError
		require.ErrorAs(t, err, &targetErr)

		var run autonomous.RunResult
		require.NoError(t, json.Unmarshal([]byte(stdout), &run))
		assert.Equal(t, "u-42", run.Target.UserID)
	})
}

// newPlatformServer serves a user search that matches userID. Only the lookup
// made by the search succeeds, so the run itself stops at user resolution.
func newPlatformServer(t *testing.T, userID string) *httptest.Server {
	t.Helper()
	var lookups atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("GET /users", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("search") == "nobody" {
			_, _ = w.Write([]byte(`{"items":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"items":[{"id":"` + userID + `"}]}`))
	})
	mux.HandleFunc("GET /users/{id}", func(w http.ResponseWriter, r *http.Request) {
		if lookups.Add(1) > 1 {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"` + r.PathValue("id") + `"}`))
	})
	mux.HandleFunc("GET /users/{id}/timeline", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[]}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestSetPolicy_RequiresRedis(t *testing.T) {
	isolateEnv(t, nil)

	path := filepath.Join(t.TempDir(), "policy.txt")
	require.NoError(t, os.WriteFile(path, []byte("Never ask for passwords by email."), 0o600))

	_, _, err := execute(t, "set-policy", "--org", "Acme", "--in", path)
	assert.ErrorContains(t, err, "REDIS_URL is required")
}

func TestSetPolicy_MissingFile(t *testing.T) {
	isolateEnv(t, nil)
	_, _, err := execute(t, "set-policy", "--org", "Acme", "--in", filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorContains(t, err, "failed to read policy file")
}

func TestWriteJSON(t *testing.T) {
	t.Run("to writer", func(t *testing.T) {
		var sb strings.Builder
		require.NoError(t, writeJSON(&sb, "", map[string]int{"a": 1}))
		assert.Equal(t, "{\n  \"a\": 1\n}\n", sb.String())
	})

	t.Run("to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.json")
		require.NoError(t, writeJSON(nil, path, []string{"x"}))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.JSONEq(t, `["x"]`, string(data))
	})
}
