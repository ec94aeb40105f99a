package handler

import (
	"net/http"

	"github.com/Dan9191/retail-banking/internal/service"
)

// CreatePartner handles partner registration
func (h *Handler) CreatePartner(w http.ResponseWriter, r *http.Request) {
	var req service.CreatePartnerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	partner, err := h.svc.CreatePartner(r.Context(), session(r), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, partner)
}

func (h *Handler) GetPartner(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	partner, err := h.svc.GetPartner(r.Context(), session(r), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, partner)
}

// DeletePartner removes a partner nothing refers to
func (h *Handler) DeletePartner(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeletePartner(r.Context(), session(r), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) PartnerSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	summary, err := h.svc.PartnerSummary(r.Context(), session(r), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
