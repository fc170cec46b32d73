package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lehigh-university-libraries/drafter/internal/analysis"
	"github.com/lehigh-university-libraries/drafter/internal/config"
	"github.com/lehigh-university-libraries/drafter/internal/drive"
	"github.com/lehigh-university-libraries/drafter/internal/export"
	"github.com/lehigh-university-libraries/drafter/internal/handlers"
	"github.com/lehigh-university-libraries/drafter/internal/ledger"
	"github.com/lehigh-university-libraries/drafter/internal/localdir"
	"github.com/lehigh-university-libraries/drafter/internal/pipeline"
	"github.com/lehigh-university-libraries/drafter/internal/publish"
)

// app holds the wired collaborators shared by serve and process.
type app struct {
	runner  *pipeline.Runner
	lookups handlers.Lookups
	profile export.Profile
	ledger  *ledger.Ledger
}

func (a *app) Close() {
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			slog.Error("Unable to close ledger", "err", err)
		}
	}
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	profile, err := export.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return nil, err
	}
	a.profile = profile
	a.lookups = profile

	var storage pipeline.Storage
	switch cfg.Storage {
	case config.StorageDrive:
		d, err := drive.NewFromCredentials(ctx, cfg.GoogleCredentialsFile)
		if err != nil {
			return nil, err
		}
		storage = d
		if cfg.SpreadsheetID != "" {
			l, err := drive.NewLookupsFromCredentials(ctx, cfg.SpreadsheetID, cfg.GoogleCredentialsFile)
			if err != nil {
				return nil, err
			}
			a.lookups = l
		}
	case config.StorageLocal:
		l, err := localdir.New(cfg.LocalRoot)
		if err != nil {
			return nil, err
		}
		if cfg.PublicBaseURL != "" {
			l.BaseURL = cfg.PublicBaseURL + localdir.DefaultImageRoute
		}
		storage = l
	}

	oracle, err := analysis.NewService(cfg.AnalysisProvider, cfg.AnalysisModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis service: %w", err)
	}
	provider, model := oracle.Provider()

	opts := pipeline.Options{
		Storage:           storage,
		Oracle:            oracle,
		LabelPrefix:       cfg.LabelPrefix,
		ProcessedMarker:   cfg.ProcessedMarker,
		MaxAnalysisImages: cfg.MaxAnalysisImages,
	}

	if cfg.Publisher == config.PublisherEbay {
		p, err := publish.NewEbayFromEnv()
		if err != nil {
			return nil, err
		}
		opts.Publisher = p
	}

	if cfg.LedgerPath != "" {
		l, err := ledger.Open(cfg.LedgerPath)
		if err != nil {
			return nil, err
		}
		a.ledger = l
		opts.Ledger = l
	}

	a.runner = pipeline.New(opts)
	slog.Info("Pipeline configured",
		"storage", cfg.Storage,
		"provider", provider,
		"model", model,
		"publisher", cfg.Publisher,
		"ledger", cfg.LedgerPath != "",
	)
	return a, nil
}
