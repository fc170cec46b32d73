package handlers

import (
	"net/http"
)

func (h *Handler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.lookups.Categories(r.Context())
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	h.writeJSON(w, categories)
}

func (h *Handler) HandleShipping(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.lookups.ShippingTiers(r.Context())
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	h.writeJSON(w, tiers)
}
