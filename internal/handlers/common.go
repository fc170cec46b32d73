// Package handlers exposes the batch pipeline over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/drafter/internal/export"
	"github.com/lehigh-university-libraries/drafter/internal/images"
	"github.com/lehigh-university-libraries/drafter/internal/models"
	"github.com/lehigh-university-libraries/drafter/internal/pipeline"
)

// Lookups supplies the option lists of the edit form.
type Lookups interface {
	Categories(ctx context.Context) ([]models.Category, error)
	ShippingTiers(ctx context.Context) ([]string, error)
}

type Handler struct {
	runner    *pipeline.Runner
	lookups   Lookups
	profile   export.Profile
	staticDir string
	now       func() time.Time
}

// New builds a handler. A nil lookups falls back to the profile's static lists.
func New(runner *pipeline.Runner, lookups Lookups, profile export.Profile, staticDir string) *Handler {
	if lookups == nil {
		lookups = profile
	}
	if staticDir == "" {
		staticDir = "static"
	}
	return &Handler{
		runner:    runner,
		lookups:   lookups,
		profile:   profile,
		staticDir: staticDir,
		now:       time.Now,
	}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message, "status", code)
	} else {
		slog.Warn(message, "status", code)
	}
	h.writeJSONStatus(w, code, map[string]string{"error": message})
}

// writeFailure maps pipeline errors onto status codes.
func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	h.writeError(w, err.Error(), statusFor(err, http.StatusInternalServerError))
}

func statusFor(err error, fallback int) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrAnalysisInFlight),
		errors.Is(err, models.ErrStaleVersion):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrEmptySource):
		return http.StatusBadRequest
	case errors.Is(err, images.ErrNoAnalyzableImages):
		return http.StatusUnprocessableEntity
	default:
		return fallback
	}
}
