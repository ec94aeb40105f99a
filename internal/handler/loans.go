package handler

import (
	"net/http"

	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/Dan9191/retail-banking/internal/service"
)

// ListLoans lists the loans of ?owner_id or of the caller's default partner
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := queryID(w, r, "owner_id")
	if !ok {
		return
	}
	loans, err := h.svc.ListLoans(r.Context(), session(r), ownerID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	loan, err := h.svc.GetLoan(r.Context(), session(r), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (h *Handler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTicketRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ticket, err := h.svc.CreateTicket(r.Context(), session(r), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ticket, err := h.svc.GetTicket(r.Context(), session(r), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) UpdateTicketState(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		State models.TicketState `json:"state"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	ticket, err := h.svc.UpdateTicketState(r.Context(), session(r), id, req.State)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}
