package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/phish-simulator/internal/app"
	"github.com/jonathan/phish-simulator/internal/observability"
	"github.com/jonathan/phish-simulator/internal/types"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate one simulation artifact",
	Long:  "Run the generation pipeline once and print the persisted artifact as JSON. With --verbose the analysis, brand and part outcomes are also printed to stderr.",
	RunE:  runGenerate,
}

var (
	genTopic       string
	genKind        string
	genDifficulty  string
	genLanguage    string
	genVendor      string
	genModel       string
	genOrg         string
	genTargetName  string
	genDepartment  string
	genMessageOnly bool
	genLandingOnly bool
	genOutputFile  string
	genVerbose     bool
)

func init() {
	generateCmd.Flags().StringVarP(&genTopic, "topic", "t", "", "Scenario topic or instruction (required)")
	generateCmd.Flags().StringVarP(&genKind, "kind", "k", "email", "Content kind: email or sms")
	generateCmd.Flags().StringVarP(&genDifficulty, "difficulty", "d", "medium", "Difficulty: easy, medium or hard")
	generateCmd.Flags().StringVarP(&genLanguage, "language", "l", "en-gb", "BCP 47 language tag")
	generateCmd.Flags().StringVar(&genVendor, "vendor", "", "Provider vendor hint")
	generateCmd.Flags().StringVar(&genModel, "model", "", "Provider model hint")
	generateCmd.Flags().StringVar(&genOrg, "org", "", "Organization whose policy context to include")
	generateCmd.Flags().StringVar(&genTargetName, "target-name", "", "Recipient name for personalisation")
	generateCmd.Flags().StringVar(&genDepartment, "department", "", "Recipient department")
	generateCmd.Flags().BoolVar(&genMessageOnly, "message-only", false, "Generate only the message part")
	generateCmd.Flags().BoolVar(&genLandingOnly, "landing-only", false, "Generate only the landing page")
	generateCmd.Flags().StringVarP(&genOutputFile, "out", "o", "", "Write the result JSON to this file instead of stdout")
	generateCmd.Flags().BoolVarP(&genVerbose, "verbose", "v", false, "Print analysis and part status to stderr")

	_ = generateCmd.MarkFlagRequired("topic")
	generateCmd.MarkFlagsMutuallyExclusive("message-only", "landing-only")
	rootCmd.AddCommand(generateCmd)
}

// generationRequest builds the pipeline request from the generate flags
func generationRequest() (types.GenerationRequest, error) {
	difficulty, err := types.ParseDifficulty(genDifficulty)
	if err != nil {
		return types.GenerationRequest{}, &types.InputError{Field: "difficulty", Message: err.Error()}
	}

	req := types.GenerationRequest{
		Topic:              genTopic,
		Kind:               types.ContentKind(strings.ToLower(strings.TrimSpace(genKind))),
		Difficulty:         difficulty,
		Language:           genLanguage,
		IncludeMessage:     !genLandingOnly,
		IncludeLandingPage: !genMessageOnly,
		Vendor:             genVendor,
		Model:              genModel,
		Organization:       genOrg,
	}
	if genTargetName != "" || genDepartment != "" {
		req.Profile = &types.TargetProfile{Name: genTargetName, Department: genDepartment}
	}
	return req, nil
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	req, err := generationRequest()
	if err != nil {
		return err
	}

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		res, err := a.Pipeline.Run(ctx, req)
		if err != nil {
			return err
		}

		if genVerbose {
			printer := observability.NewPrinter(cmd.ErrOrStderr())
			printer.PrintScenarioAnalysis(res.Analysis)
			if res.Brand != nil {
				printer.PrintBrandContext(res.Brand)
			}
			printer.PrintPartStatus(res.Parts)
		}
		return writeJSON(cmd.OutOrStdout(), genOutputFile, res)
	})
}
