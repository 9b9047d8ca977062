package main

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// TestMain runs before all tests and loads .env if available
func TestMain(m *testing.M) {
	// Try to load .env file - ignore error if it doesn't exist (CI environment)
	_ = godotenv.Load()

	os.Exit(m.Run())
}

const testSecret = "0123456789abcdef0123456789abcdef"

// isolateEnv clears the optional backends so commands run fully in process
func isolateEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for _, key := range []string{
		"REDIS_URL", "DATABASE_URL", "PLATFORM_BASE_URL", "PLATFORM_CLIENT_ID",
		"LLM_DEFAULT_VENDOR", "LLM_DEFAULT_MODEL",
		"OPENAI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY", "WORKERS_AI_API_KEY",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")
	for k, v := range env {
		t.Setenv(k, v)
	}
}

// execute runs the root command with args and restores flag defaults afterwards
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Cleanup(func() { resetFlags(rootCmd) })

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			def := strings.Trim(f.DefValue, "[]")
			var vals []string
			if def != "" {
				vals = strings.Split(def, ",")
			}
			_ = sv.Replace(vals)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}
