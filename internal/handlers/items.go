package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lehigh-university-libraries/drafter/internal/models"
	"github.com/lehigh-university-libraries/drafter/internal/pipeline"
)

func (h *Handler) HandleSaveItem(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	itemID := chi.URLParam(r, "itemID")

	var edits models.UserEdits
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&edits); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	err := h.runner.SaveItem(r.Context(), sessionID, itemID, edits)
	switch {
	case errors.Is(err, pipeline.ErrMarkFailed):
		// The item is saved; only the folder rename is outstanding.
		h.writeJSON(w, map[string]string{"status": "ok", "warning": err.Error()})
	case err != nil:
		h.writeFailure(w, err)
	default:
		h.writeJSON(w, map[string]string{"status": "ok"})
	}
}

func (h *Handler) HandleReanalyze(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	itemID := chi.URLParam(r, "itemID")

	analysis, err := h.runner.Reanalyze(r.Context(), sessionID, itemID)
	if err != nil {
		slog.Warn("Re-analysis failed", "session_id", sessionID, "item_id", itemID, "err", err)
		h.writeError(w, err.Error(), statusFor(err, http.StatusBadGateway))
		return
	}
	h.writeJSON(w, analysis)
}
