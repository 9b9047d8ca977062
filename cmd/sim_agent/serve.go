package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jonathan/phish-simulator/internal/app"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes the generation and autonomous endpoints. Stops on SIGINT or SIGTERM and waits for deferred runs.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides HTTP_PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if servePort > 0 {
			a.Config.HTTPPort = servePort
		}
		if err := a.Config.Validate(); err != nil {
			return err
		}

		srv, err := a.Server()
		if err != nil {
			return err
		}
		return srv.Serve(ctx)
	})
}
