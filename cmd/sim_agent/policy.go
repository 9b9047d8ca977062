package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/phish-simulator/internal/app"
)

var policyCmd = &cobra.Command{
	Use:   "set-policy",
	Short: "Store an organization's policy text",
	Long:  "Store the policy text that generation requests naming the organization include as context. Requires REDIS_URL so the text outlives the command.",
	RunE:  runSetPolicy,
}

var (
	policyOrg  string
	policyFile string
)

func init() {
	policyCmd.Flags().StringVar(&policyOrg, "org", "", "Organization name (required)")
	policyCmd.Flags().StringVarP(&policyFile, "in", "i", "", "Path to the policy text file (required)")
	_ = policyCmd.MarkFlagRequired("org")
	_ = policyCmd.MarkFlagRequired("in")
	rootCmd.AddCommand(policyCmd)
}

func runSetPolicy(cmd *cobra.Command, _ []string) error {
	text, err := os.ReadFile(policyFile)
	if err != nil {
		return fmt.Errorf("failed to read policy file: %w", err)
	}

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if a.Config.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required to store policies")
		}
		if err := a.Policies.Put(ctx, policyOrg, string(text)); err != nil {
			return err
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "stored policy for %s (%d bytes)\n", policyOrg, len(text))
		return err
	})
}
