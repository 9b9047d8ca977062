package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jonathan/phish-simulator/internal/app"
	"github.com/jonathan/phish-simulator/internal/config"
	"github.com/jonathan/phish-simulator/internal/observability"
)

// loadConfig reads the environment and builds the process logger
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, observability.NewLogger(cfg.LogLevel, cfg.LogFormat), nil
}

// withApp wires the service graph, runs fn and releases everything afterwards.
// Background runs get up to the configured shutdown timeout to finish.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) (err error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := logger.WithContext(cmd.Context())
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		if closeErr := a.Close(closeCtx); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to shut down cleanly: %w", closeErr)
		}
	}()

	return fn(ctx, a)
}

// writeJSON writes v indented to path, or to w when path is empty
func writeJSON(w io.Writer, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = w.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
