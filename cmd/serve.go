package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/drafter/internal/config"
	"github.com/lehigh-university-libraries/drafter/internal/handlers"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		port      string
		profile   string
		staticDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the review web interface",
		Long: `Starts the Drafter web interface and API.

Batches submitted through the interface run in the background; the page
polls for progress and lets an operator edit, re-analyze and save each draft
before downloading the listing feed.`,
		Example: `  # Start server on default port 8888
  drafter serve

  # Start server on custom port with a listing profile
  drafter serve --port 3000 --profile profile.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if profile != "" {
				cfg.ProfilePath = profile
			}

			a, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			handler := handlers.New(a.runner, a.lookups, a.profile, staticDir)

			addr := ":" + cfg.Port
			server := &http.Server{
				Addr:              addr,
				Handler:           handler.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Drafter interface available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on (overrides PORT)")
	cmd.Flags().StringVar(&profile, "profile", "", "Listing profile YAML (overrides PROFILE_PATH)")
	cmd.Flags().StringVar(&staticDir, "static", "static", "Directory with the web interface files")

	return cmd
}
