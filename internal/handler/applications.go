package handler

import (
	"net/http"

	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/Dan9191/retail-banking/internal/service"
	"github.com/gorilla/mux"
)

func (h *Handler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	var req service.CreateApplicationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	app, err := h.svc.CreateApplication(r.Context(), session(r), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

// ListApplications filters by ?applicant_id and ?state
func (h *Handler) ListApplications(w http.ResponseWriter, r *http.Request) {
	applicantID, ok := queryID(w, r, "applicant_id")
	if !ok {
		return
	}
	filter := service.ApplicationFilter{
		ApplicantID: applicantID,
		State:       models.ApplicationState(r.URL.Query().Get("state")),
	}
	apps, err := h.svc.ListApplications(r.Context(), session(r), filter)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	app, err := h.svc.GetApplication(r.Context(), session(r), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// UpdateApplication patches the fields present in the body
func (h *Handler) UpdateApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req service.UpdateApplicationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	app, err := h.svc.UpdateApplication(r.Context(), session(r), id, req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (h *Handler) AddGuarantor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req service.GuarantorRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	g, err := h.svc.AddGuarantor(r.Context(), session(r), id, req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (h *Handler) AddDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req service.DocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	doc, err := h.svc.AddDocument(r.Context(), session(r), id, req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *Handler) AddCondition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Description string `json:"description"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	cond, err := h.svc.AddCondition(r.Context(), session(r), id, req.Description)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cond)
}

// SetConditionMet marks a condition precedent and returns the application
func (h *Handler) SetConditionMet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	conditionID, ok := pathID(w, r, "conditionID")
	if !ok {
		return
	}
	var req struct {
		IsMet bool `json:"is_met"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	app, err := h.svc.SetConditionMet(r.Context(), session(r), id, conditionID, req.IsMet)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// ApplyAction runs a workflow action. Disbursement also returns the new loan.
func (h *Handler) ApplyAction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	action := models.TransitionName(mux.Vars(r)["action"])

	if action == models.TransitionDisburse {
		app, loan, err := h.svc.Disburse(r.Context(), session(r), id)
		if err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Application *models.LoanApplication `json:"application"`
			Loan        *models.Loan            `json:"loan"`
		}{app, loan})
		return
	}

	app, err := h.svc.Transition(r.Context(), session(r), id, action)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}
