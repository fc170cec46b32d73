package cmd

import (
	"fmt"
	"io"

	"github.com/lehigh-university-libraries/drafter/internal/config"
	"github.com/lehigh-university-libraries/drafter/internal/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ItemSummary is one item line of the process report.
type ItemSummary struct {
	Label  string `yaml:"label"`
	Folder string `yaml:"folder"`
	Status string `yaml:"status"`
	Title  string `yaml:"title,omitempty"`
	Artist string `yaml:"artist,omitempty"`
	Images int    `yaml:"images"`
	Error  string `yaml:"error,omitempty"`
}

// SessionSummary is the YAML report printed by process.
type SessionSummary struct {
	Session string        `yaml:"session"`
	Source  string        `yaml:"source"`
	Status  string        `yaml:"status"`
	Error   string        `yaml:"error,omitempty"`
	Items   []ItemSummary `yaml:"items"`
}

func summarize(s *models.Session) SessionSummary {
	out := SessionSummary{
		Session: s.ID,
		Source:  s.Source,
		Status:  string(s.Status),
		Error:   s.Error,
		Items:   []ItemSummary{},
	}
	for _, item := range s.Items {
		is := ItemSummary{
			Label:  item.Label,
			Folder: item.FolderName,
			Status: string(item.Status),
			Images: len(item.Images),
			Error:  item.Error,
		}
		if item.Analysis != nil {
			is.Title = item.Analysis.Title
			is.Artist = item.Analysis.Artist
		}
		out.Items = append(out.Items, is)
	}
	return out
}

func writeSummary(w io.Writer, s *models.Session) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(summarize(s)); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return enc.Close()
}

func newProcessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <source>",
		Short: "Run one batch in the foreground and print a summary",
		Long: `Discovers and analyzes every unprocessed folder under <source>, then
prints a YAML summary of the session. Items are not saved, so source folders
are left unmarked.`,
		Example: `  # Process a Drive folder
  drafter process https://drive.google.com/drive/folders/1AbC...

  # Process a local directory
  STORAGE=local LOCAL_ROOT=/photos drafter process incoming`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			session, err := a.runner.SubmitBatch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.runner.Wait()

			snap, err := a.runner.Session(session.ID)
			if err != nil {
				return err
			}
			if err := writeSummary(cmd.OutOrStdout(), snap); err != nil {
				return err
			}
			if snap.Status == models.SessionError {
				return fmt.Errorf("batch failed: %s", snap.Error)
			}
			return nil
		},
	}
	return cmd
}
