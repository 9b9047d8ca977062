package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/phish-simulator/internal/app"
	"github.com/jonathan/phish-simulator/internal/autonomous"
	"github.com/jonathan/phish-simulator/internal/types"
)

var autonomousCmd = &cobra.Command{
	Use:   "autonomous",
	Short: "Run an autonomous simulation for a user or group",
	Long:  "Resolve a platform user or group, generate the requested actions, upload and assign them. The run executes synchronously and its result is printed as JSON.",
	RunE:  runAutonomous,
}

var (
	autoUser       string
	autoFindUser   string
	autoGroup      string
	autoActions    []string
	autoLanguage   string
	autoDifficulty string
	autoOrg        string
	autoVendor     string
	autoModel      string
	autoOutputFile string
)

func init() {
	autonomousCmd.Flags().StringVar(&autoUser, "user", "", "Platform user resource id")
	autonomousCmd.Flags().StringVar(&autoFindUser, "find-user", "", "Search the platform for a user by name or email")
	autonomousCmd.Flags().StringVar(&autoGroup, "group", "", "Platform group resource id")
	autonomousCmd.Flags().StringSliceVarP(&autoActions, "action", "a", []string{string(autonomous.ActionPhishing)}, "Actions to run: phishing, smishing, training")
	autonomousCmd.Flags().StringVarP(&autoLanguage, "language", "l", "", "Language override (defaults to the user's preference)")
	autonomousCmd.Flags().StringVarP(&autoDifficulty, "difficulty", "d", "", "Difficulty override")
	autonomousCmd.Flags().StringVar(&autoOrg, "org", "", "Organization whose policy context to include")
	autonomousCmd.Flags().StringVar(&autoVendor, "vendor", "", "Provider vendor hint")
	autonomousCmd.Flags().StringVar(&autoModel, "model", "", "Provider model hint")
	autonomousCmd.Flags().StringVarP(&autoOutputFile, "out", "o", "", "Write the run JSON to this file instead of stdout")

	autonomousCmd.MarkFlagsOneRequired("user", "find-user", "group")
	autonomousCmd.MarkFlagsMutuallyExclusive("user", "find-user", "group")
	rootCmd.AddCommand(autonomousCmd)
}

// autonomousRequest builds a synchronous run request from the autonomous flags
func autonomousRequest() autonomous.Request {
	actions := make([]autonomous.Action, 0, len(autoActions))
	for _, a := range autoActions {
		actions = append(actions, autonomous.Action(a))
	}
	return autonomous.Request{
		Target:       autonomous.Target{UserID: autoUser, GroupID: autoGroup},
		Actions:      actions,
		Mode:         autonomous.ModeSync,
		Language:     autoLanguage,
		Difficulty:   types.Difficulty(autoDifficulty),
		Organization: autoOrg,
		Vendor:       autoVendor,
		Model:        autoModel,
	}
}

func runAutonomous(cmd *cobra.Command, _ []string) error {
	req := autonomousRequest()

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if autoFindUser != "" {
			userID, err := findUser(ctx, a, autoFindUser)
			if err != nil {
				return err
			}
			req.Target.UserID = userID
		}

		run, err := a.Autonomous.Run(ctx, req)
		var targetErr *autonomous.TargetError
		if err != nil && !(errors.As(err, &targetErr) && run != nil) {
			return err
		}

		if writeErr := writeJSON(cmd.OutOrStdout(), autoOutputFile, run); writeErr != nil {
			return writeErr
		}
		return err
	})
}

// findUser resolves a name or email to a platform user resource id
func findUser(ctx context.Context, a *app.App, query string) (string, error) {
	if a.Platform == nil {
		return "", errors.New("PLATFORM_BASE_URL is required to search users")
	}
	user, err := a.Platform.SearchUser(ctx, query)
	if err != nil {
		return "", fmt.Errorf("failed to find user %q: %w", query, err)
	}
	return user.ID, nil
}
