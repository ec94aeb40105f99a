package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Dan9191/retail-banking/internal/middleware"
	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/Dan9191/retail-banking/internal/service"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// KeyRateSource provides the bank's lending rate
type KeyRateSource interface {
	GetKeyRate(ctx context.Context) (decimal.Decimal, error)
}

type Handler struct {
	svc   *service.Service
	rates KeyRateSource
	log   *logrus.Logger
}

func NewHandler(svc *service.Service, rates KeyRateSource, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, rates: rates, log: log}
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	Field       string    `json:"field,omitempty"`
	Details     string    `json:"details,omitempty"`
}

// NewRouter registers the public and the authenticated routes
func NewRouter(h *Handler, auth mux.MiddlewareFunc) *mux.Router {
	r := mux.NewRouter()

	// Public routes
	r.HandleFunc("/key-rate", h.KeyRate).Methods("GET")

	// Protected routes
	api := r.PathPrefix("/").Subrouter()
	api.Use(auth)

	api.HandleFunc("/partners", h.CreatePartner).Methods("POST")
	api.HandleFunc("/partners/{id}", h.GetPartner).Methods("GET")
	api.HandleFunc("/partners/{id}", h.DeletePartner).Methods("DELETE")
	api.HandleFunc("/partners/{id}/summary", h.PartnerSummary).Methods("GET")

	api.HandleFunc("/accounts", h.CreateAccount).Methods("POST")
	api.HandleFunc("/accounts", h.ListAccounts).Methods("GET")
	api.HandleFunc("/accounts/{id}", h.GetAccount).Methods("GET")
	api.HandleFunc("/accounts/{id}/status", h.UpdateAccountStatus).Methods("PUT")
	api.HandleFunc("/accounts/{id}/transactions", h.PostTransaction).Methods("POST")

	api.HandleFunc("/cards", h.CreateCard).Methods("POST")
	api.HandleFunc("/cards/{id}", h.GetCard).Methods("GET")

	api.HandleFunc("/applications", h.CreateApplication).Methods("POST")
	api.HandleFunc("/applications", h.ListApplications).Methods("GET")
	api.HandleFunc("/applications/{id}", h.GetApplication).Methods("GET")
	api.HandleFunc("/applications/{id}", h.UpdateApplication).Methods("PATCH")
	api.HandleFunc("/applications/{id}/guarantors", h.AddGuarantor).Methods("POST")
	api.HandleFunc("/applications/{id}/documents", h.AddDocument).Methods("POST")
	api.HandleFunc("/applications/{id}/conditions", h.AddCondition).Methods("POST")
	api.HandleFunc("/applications/{id}/conditions/{conditionID}", h.SetConditionMet).Methods("PUT")
	api.HandleFunc("/applications/{id}/actions/{action}", h.ApplyAction).Methods("POST")

	api.HandleFunc("/loans", h.ListLoans).Methods("GET")
	api.HandleFunc("/loans/{id}", h.GetLoan).Methods("GET")

	api.HandleFunc("/tickets", h.CreateTicket).Methods("POST")
	api.HandleFunc("/tickets/{id}", h.GetTicket).Methods("GET")
	api.HandleFunc("/tickets/{id}/state", h.UpdateTicketState).Methods("PUT")

	return r
}

// KeyRate returns the central bank key rate plus the bank margin
func (h *Handler) KeyRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.rates.GetKeyRate(r.Context())
	if err != nil {
		h.log.Errorf("Failed to get key rate: %v", err)
		sendErrorResponse(w, http.StatusBadGateway, "UPSTREAM_ERROR", "Failed to get key rate", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]decimal.Decimal{"key_rate": rate})
}

// handleServiceError maps the domain errors onto HTTP statuses
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		sendError(w, http.StatusBadRequest, ErrorResponse{Code: "VALIDATION_ERROR", Description: verr.Reason, Field: verr.Field})
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrCurrencyMismatch):
		sendErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request parameters", err.Error())
	case errors.Is(err, models.ErrNotFound):
		sendErrorResponse(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", err.Error())
	case errors.Is(err, models.ErrUniquenessConflict):
		sendErrorResponse(w, http.StatusConflict, "ALREADY_EXISTS", "Resource already exists", err.Error())
	case errors.Is(err, models.ErrReferentialRestriction):
		sendErrorResponse(w, http.StatusConflict, "REFERENCED", "Resource is still referenced", err.Error())
	case errors.Is(err, models.ErrConcurrentStateConflict):
		sendErrorResponse(w, http.StatusConflict, "STATE_CONFLICT", "Resource was changed concurrently", err.Error())
	case errors.Is(err, models.ErrPreconditionNotMet):
		sendErrorResponse(w, http.StatusPreconditionFailed, "PRECONDITION_NOT_MET", "Operation cannot be performed", err.Error())
	default:
		h.log.Errorf("%s %s failed: %v", r.Method, r.URL.Path, err)
		sendErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", "")
	}
}

func sendErrorResponse(w http.ResponseWriter, statusCode int, code, description, details string) {
	sendError(w, statusCode, ErrorResponse{Code: code, Description: description, Details: details})
}

func sendError(w http.ResponseWriter, statusCode int, resp ErrorResponse) {
	resp.ID = uuid.New()
	writeJSON(w, statusCode, resp)
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON reads the request body into v and answers 400 on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to parse request body", err.Error())
		return false
	}
	return true
}

// pathID parses the uuid route variable name and answers 400 when malformed
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid "+name, err.Error())
		return uuid.Nil, false
	}
	return id, true
}

// queryID parses an optional uuid query parameter
func queryID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return uuid.Nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid "+name, err.Error())
		return uuid.Nil, false
	}
	return id, true
}

func session(r *http.Request) models.Session {
	sess, _ := middleware.SessionFromContext(r.Context())
	return sess
}
