// Package analysis turns item photos into structured release metadata using a
// vision-capable LLM.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/lehigh-university-libraries/drafter/internal/gemini"
	"github.com/lehigh-university-libraries/drafter/internal/models"
	"github.com/lehigh-university-libraries/drafter/internal/ollama"
	"github.com/lehigh-university-libraries/drafter/internal/openai"
	"github.com/lehigh-university-libraries/drafter/internal/providers"
)

// ErrNoImages is returned when Analyze is called without image data.
var ErrNoImages = errors.New("no image data provided")

var registry = providers.Named{
	"openai": func() providers.Provider { return openai.New() },
	"ollama": func() providers.Provider { return ollama.New() },
	"gemini": func() providers.Provider { return gemini.New() },
}

type Service struct {
	provider    providers.Provider
	name        string
	model       string
	temperature float64
}

// NewService creates an analysis service backed by the named provider.
// An empty provider falls back to ANALYSIS_PROVIDER, then openai.
func NewService(provider, model string) (*Service, error) {
	if provider == "" {
		provider = os.Getenv("ANALYSIS_PROVIDER")
		if provider == "" {
			provider = "openai"
		}
	}
	p, err := registry.Get(provider)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = DefaultModel(provider)
	}
	return NewServiceWithProvider(p, provider, model), nil
}

// NewServiceWithProvider wraps an existing provider.
func NewServiceWithProvider(p providers.Provider, name, model string) *Service {
	return &Service{
		provider:    p,
		name:        name,
		model:       model,
		temperature: 0.1,
	}
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case "openai":
		model := os.Getenv("OPENAI_MODEL")
		if model == "" {
			return "gpt-4o-mini"
		}
		return model
	case "ollama":
		model := os.Getenv("OLLAMA_MODEL")
		if model == "" {
			return "mistral-small3.2:24b"
		}
		return model
	case "gemini":
		model := os.Getenv("GEMINI_MODEL")
		if model == "" {
			return "gemini-1.5-flash"
		}
		return model
	default:
		return ""
	}
}

// Provider returns the provider and model names.
func (s *Service) Provider() (string, string) {
	return s.name, s.model
}

// Analyze identifies the release shown in images. A non-nil exclude is the
// previous answer for the same item and is steered away from.
func (s *Service) Analyze(ctx context.Context, images [][]byte, exclude *models.Analysis) (*models.Analysis, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}

	config := providers.Config{
		Model:       s.model,
		Temperature: s.temperature,
		Prompt:      buildPrompt(exclude),
		JSON:        true,
	}
	for _, data := range images {
		config.Images = append(config.Images, providers.Image{
			Data:     data,
			MIMEType: http.DetectContentType(data),
		})
	}

	raw, err := s.provider.ExtractText(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze with %s: %w", s.name, err)
	}

	result, err := ParseResponse(raw)
	if err != nil {
		slog.Warn("Unusable analysis response", "provider", s.name, "model", s.model, "length", len(raw), "err", err)
		return nil, err
	}

	slog.Info("Analysis complete", "provider", s.name, "model", s.model, "title", result.Title, "artist", result.Artist)
	return result, nil
}
