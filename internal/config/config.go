// Package config reads runtime settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

const (
	StorageDrive = "drive"
	StorageLocal = "local"

	PublisherNone = "none"
	PublisherEbay = "ebay"
)

type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	AnalysisProvider  string
	AnalysisModel     string
	MaxAnalysisImages int

	Storage               string
	GoogleCredentialsFile string
	SpreadsheetID         string
	LocalRoot             string
	PublicBaseURL         string

	Publisher string

	LedgerPath      string
	LabelPrefix     string
	ProcessedMarker string
	ProfilePath     string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:                  envStr("PORT", "8888"),
		LogLevel:              envStr("LOG_LEVEL", "info"),
		LogFormat:             envStr("LOG_FORMAT", "text"),
		AnalysisProvider:      envStr("ANALYSIS_PROVIDER", "openai"),
		AnalysisModel:         envStr("ANALYSIS_MODEL", ""),
		MaxAnalysisImages:     envInt("MAX_ANALYSIS_IMAGES", 3),
		Storage:               envStr("STORAGE", StorageDrive),
		GoogleCredentialsFile: envStr("GOOGLE_CREDENTIALS_FILE", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),
		SpreadsheetID:         envStr("SPREADSHEET_ID", ""),
		LocalRoot:             envStr("LOCAL_ROOT", "."),
		PublicBaseURL:         envStr("PUBLIC_BASE_URL", ""),
		Publisher:             envStr("PUBLISHER", PublisherNone),
		LedgerPath:            envStr("LEDGER_PATH", ""),
		LabelPrefix:           envStr("LABEL_PREFIX", "C"),
		ProcessedMarker:       envStr("PROCESSED_MARKER", "済"),
		ProfilePath:           envStr("PROFILE_PATH", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %q", c.Port)
	}
	switch c.Storage {
	case StorageDrive:
		if c.GoogleCredentialsFile == "" {
			return fmt.Errorf("GOOGLE_CREDENTIALS_FILE must be set when STORAGE=%s", StorageDrive)
		}
	case StorageLocal:
		if c.LocalRoot == "" {
			return fmt.Errorf("LOCAL_ROOT must not be empty")
		}
	default:
		return fmt.Errorf("STORAGE must be %q or %q, got %q", StorageDrive, StorageLocal, c.Storage)
	}
	switch c.Publisher {
	case PublisherNone, PublisherEbay:
	default:
		return fmt.Errorf("PUBLISHER must be %q or %q, got %q", PublisherNone, PublisherEbay, c.Publisher)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if c.MaxAnalysisImages < 1 {
		return fmt.Errorf("MAX_ANALYSIS_IMAGES must be positive, got %d", c.MaxAnalysisImages)
	}
	if c.ProcessedMarker == "" {
		return fmt.Errorf("PROCESSED_MARKER must not be empty")
	}
	return nil
}

// Level maps LOG_LEVEL to a slog level. Unknown values fall back to info.
func (c *Config) Level() slog.Level {
	return ParseLevel(c.LogLevel)
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
