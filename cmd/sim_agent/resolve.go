package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/phish-simulator/internal/llm"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [vendor] [model]",
	Short: "Show which provider a vendor/model hint resolves to",
	Long:  "Normalize a vendor and model hint the way generation requests do and print the selected provider. Unsupported or unavailable hints resolve to the configured default.",
	Args:  cobra.MaximumNArgs(2),
	RunE:  runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	var vendorHint, modelHint string
	if len(args) > 0 {
		vendorHint = args[0]
	}
	if len(args) > 1 {
		modelHint = args[1]
	}

	vendor, model := cfg.DefaultProvider()
	registry := llm.NewRegistry(string(vendor), model, llm.WithLogger(logger))
	defer func() { _ = registry.Close() }()

	sel := registry.Resolve(cmd.Context(), vendorHint, modelHint)
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "vendor=%s model=%s fallback=%t\n", sel.Vendor, sel.Model, sel.Fallback)
	return err
}
