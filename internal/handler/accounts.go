package handler

import (
	"net/http"

	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/Dan9191/retail-banking/internal/service"
)

// CreateAccount handles account creation
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req service.CreateAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	account, err := h.svc.CreateAccount(r.Context(), session(r), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// ListAccounts lists the accounts of ?owner_id or of the caller's default partner
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := queryID(w, r, "owner_id")
	if !ok {
		return
	}
	accounts, err := h.svc.ListAccounts(r.Context(), session(r), ownerID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	account, err := h.svc.GetAccount(r.Context(), session(r), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *Handler) UpdateAccountStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Status models.AccountStatus `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	account, err := h.svc.UpdateAccountStatus(r.Context(), session(r), id, req.Status)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// PostTransaction posts a credit or debit and returns the updated account
func (h *Handler) PostTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req service.PostTransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	account, err := h.svc.PostTransaction(r.Context(), session(r), id, req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// CreateCard issues a card; the full number and CVV are only returned here
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	issued, err := h.svc.CreateCard(r.Context(), session(r), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, issued)
}

func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	card, err := h.svc.GetCard(r.Context(), session(r), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}
