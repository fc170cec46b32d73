package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type submitRequest struct {
	Source string `json:"source"`
}

func (h *Handler) HandleSubmitBatch(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	session, err := h.runner.SubmitBatch(r.Context(), req.Source)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSONStatus(w, http.StatusAccepted, map[string]string{"session_id": session.ID})
}

func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.runner.Sessions())
}

func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.runner.Session(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, session)
}
