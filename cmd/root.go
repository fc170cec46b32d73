package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/lehigh-university-libraries/drafter/internal/config"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafter",
		Short: "Turn folders of product photos into marketplace listing drafts",
		Long: `Drafter scans a source folder for unprocessed item folders, identifies
each item from its photos with a vision-capable LLM, and lets an operator
review the drafts before exporting them as a listing feed.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			setupLogging(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
		},
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newProcessCmd())
	cmd.AddCommand(newLabelsCmd())

	return cmd
}

func setupLogging(level, format string) {
	opts := &slog.HandlerOptions{Level: config.ParseLevel(level)}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
