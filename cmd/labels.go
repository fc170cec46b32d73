package cmd

import (
	"fmt"
	"time"

	"github.com/lehigh-university-libraries/drafter/internal/labels"
	"github.com/lehigh-university-libraries/drafter/internal/ledger"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newLabelsCmd() *cobra.Command {
	var (
		count      int
		processed  int
		prefix     string
		date       string
		ledgerPath string
	)

	cmd := &cobra.Command{
		Use:   "labels",
		Short: "Preview custom labels or inspect the label ledger",
		Example: `  # Labels for 2 new folders when 3 are already processed
  drafter labels --count 2 --processed 3

  # Show the ledger
  drafter labels --ledger data/ledger.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if ledgerPath != "" {
				l, err := ledger.Open(ledgerPath)
				if err != nil {
					return err
				}
				defer l.Close()
				rows, err := l.List(cmd.Context())
				if err != nil {
					return err
				}
				return yaml.NewEncoder(out).Encode(rows)
			}

			day := time.Now()
			if date != "" {
				d, err := time.Parse("2006-01-02", date)
				if err != nil {
					return fmt.Errorf("invalid --date %q: %w", date, err)
				}
				day = d
			}
			for _, label := range labels.Generate(prefix, processed, count, day) {
				fmt.Fprintln(out, label)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of labels to generate")
	cmd.Flags().IntVar(&processed, "processed", 0, "Number of folders already processed")
	cmd.Flags().StringVar(&prefix, "prefix", labels.DefaultPrefix, "Label prefix")
	cmd.Flags().StringVar(&date, "date", "", "Label date as YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "Print the reservations in this ledger instead")

	return cmd
}
