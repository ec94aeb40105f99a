package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/Dan9191/retail-banking/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateApplicationRequest opens a draft loan application. ApplicantID falls
// back to the session's default partner and Currency to the configured default.
type CreateApplicationRequest struct {
	ApplicantID            uuid.UUID       `json:"applicant_id"`
	Currency               string          `json:"currency"`
	LoanType               models.LoanType `json:"loan_type"`
	LoanProduct            string          `json:"loan_product"`
	RequestedAmount        decimal.Decimal `json:"requested_amount"`
	Tenure                 int             `json:"tenure"`
	RepaymentFrequency     string          `json:"repayment_frequency"`
	ProposedCollateralType string          `json:"proposed_collateral_type"`
	RepaymentSource        string          `json:"repayment_source"`
	MonthlyNetIncome       decimal.Decimal `json:"monthly_net_income"`
	ExistingLoanRepayments decimal.Decimal `json:"existing_loan_repayments"`
	OtherHouseholdExpenses decimal.Decimal `json:"other_household_expenses"`
	CollateralValuation    decimal.Decimal `json:"collateral_valuation"`
}

// UpdateApplicationRequest patches an application; nil fields are left unchanged
type UpdateApplicationRequest struct {
	LoanProduct            *string `json:"loan_product"`
	Tenure                 *int    `json:"tenure"`
	RepaymentFrequency     *string `json:"repayment_frequency"`
	ProposedCollateralType *string `json:"proposed_collateral_type"`
	RepaymentSource        *string `json:"repayment_source"`

	RequestedAmount        *decimal.Decimal `json:"requested_amount"`
	MonthlyNetIncome       *decimal.Decimal `json:"monthly_net_income"`
	ExistingLoanRepayments *decimal.Decimal `json:"existing_loan_repayments"`
	OtherHouseholdExpenses *decimal.Decimal `json:"other_household_expenses"`
	CollateralValuation    *decimal.Decimal `json:"collateral_valuation"`

	RecommendedEligibleAmount *decimal.Decimal `json:"recommended_eligible_loan_amount"`
	ApprovedLoanAmount        *decimal.Decimal `json:"approved_loan_amount"`
	ApprovedTenure            *int             `json:"approved_tenure"`
	InterestRate              *decimal.Decimal `json:"interest_rate"`
	InterestType              *string          `json:"interest_type"`

	LoanAccountNumber    *string          `json:"loan_account_number"`
	DisbursementDate     *time.Time       `json:"disbursement_date"`
	DisbursementAmount   *decimal.Decimal `json:"disbursement_amount"`
	RepaymentStartDate   *time.Time       `json:"repayment_start_date"`
	EMIInstallmentAmount *decimal.Decimal `json:"emi_installment_amount"`
	NextDueDate          *time.Time       `json:"next_due_date"`
}

// GuarantorRequest adds a guarantor to an application
type GuarantorRequest struct {
	Name                 string `json:"name"`
	IdentificationNumber string `json:"identification_number"`
	IncomeSource         string `json:"income_source"`
	Relationship         string `json:"relationship"`
}

// DocumentRequest attaches a reference to a document held by the document store
type DocumentRequest struct {
	Name       string              `json:"name"`
	Type       models.DocumentType `json:"document_type"`
	StorageRef string              `json:"storage_ref"`
}

// ApplicationFilter narrows ListApplications; zero fields match everything
type ApplicationFilter struct {
	ApplicantID uuid.UUID
	State       models.ApplicationState
}

// CreateApplication opens a draft application numbered from the loan.application sequence
func (s *Service) CreateApplication(ctx context.Context, sess models.Session, req CreateApplicationRequest) (*models.LoanApplication, error) {
	applicantID, ok := partnerOrDefault(sess, req.ApplicantID)
	if !ok {
		return nil, models.NewValidationError("applicant_id", "is required")
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.config.DefaultCurrency
	}

	var app *models.LoanApplication
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.requirePartner(ctx, "applicant_id", applicantID); err != nil {
			return err
		}
		number, err := s.store.NextSequence(ctx, repository.SequenceApplication)
		if err != nil {
			return err
		}

		app = models.NewLoanApplication(number, applicantID, currency)
		app.LoanType = req.LoanType
		app.LoanProduct = strings.TrimSpace(req.LoanProduct)
		app.Tenure = req.Tenure
		app.RepaymentFrequency = req.RepaymentFrequency
		app.ProposedCollateralType = req.ProposedCollateralType
		app.RepaymentSource = req.RepaymentSource
		app.SetRequestedAmount(req.RequestedAmount)
		app.SetMonthlyNetIncome(req.MonthlyNetIncome)
		app.SetExistingLoanRepayments(req.ExistingLoanRepayments)
		app.SetOtherHouseholdExpenses(req.OtherHouseholdExpenses)
		app.SetCollateralValuation(req.CollateralValuation)
		if err := checkDraft(app); err != nil {
			return err
		}
		return s.store.CreateApplication(ctx, app)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("application_id", app.ID).Infof("Loan application %s created for partner %s", app.Number, applicantID)
	return app, nil
}

// UpdateApplication applies a patch. The returned application carries the
// recomputed ratios.
func (s *Service) UpdateApplication(ctx context.Context, sess models.Session, id uuid.UUID, req UpdateApplicationRequest) (*models.LoanApplication, error) {
	var app *models.LoanApplication
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		app, err = s.store.LockApplication(ctx, id)
		if err != nil {
			return err
		}
		if app.State() == models.StateDisbursed {
			return models.NewValidationError("state", "a disbursed application cannot be changed")
		}
		req.apply(app)
		app.UpdatedAt = s.now()
		if err := checkDraft(app); err != nil {
			return err
		}
		return s.store.UpdateApplication(ctx, app)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("application_id", app.ID).Debugf("Loan application %s updated, DTI %s%%", app.Number, app.DebtToIncomeRatio())
	return app, nil
}

func (r UpdateApplicationRequest) apply(a *models.LoanApplication) {
	if r.LoanProduct != nil {
		a.LoanProduct = strings.TrimSpace(*r.LoanProduct)
	}
	if r.Tenure != nil {
		a.Tenure = *r.Tenure
	}
	if r.RepaymentFrequency != nil {
		a.RepaymentFrequency = *r.RepaymentFrequency
	}
	if r.ProposedCollateralType != nil {
		a.ProposedCollateralType = *r.ProposedCollateralType
	}
	if r.RepaymentSource != nil {
		a.RepaymentSource = *r.RepaymentSource
	}
	if r.RequestedAmount != nil {
		a.SetRequestedAmount(*r.RequestedAmount)
	}
	if r.MonthlyNetIncome != nil {
		a.SetMonthlyNetIncome(*r.MonthlyNetIncome)
	}
	if r.ExistingLoanRepayments != nil {
		a.SetExistingLoanRepayments(*r.ExistingLoanRepayments)
	}
	if r.OtherHouseholdExpenses != nil {
		a.SetOtherHouseholdExpenses(*r.OtherHouseholdExpenses)
	}
	if r.CollateralValuation != nil {
		a.SetCollateralValuation(*r.CollateralValuation)
	}
	if r.RecommendedEligibleAmount != nil {
		a.RecommendedEligibleAmount = *r.RecommendedEligibleAmount
	}
	if r.ApprovedLoanAmount != nil {
		a.ApprovedLoanAmount = *r.ApprovedLoanAmount
	}
	if r.ApprovedTenure != nil {
		a.ApprovedTenure = *r.ApprovedTenure
	}
	if r.InterestRate != nil {
		a.InterestRate = *r.InterestRate
	}
	if r.InterestType != nil {
		a.InterestType = *r.InterestType
	}
	if r.LoanAccountNumber != nil {
		a.LoanAccountNumber = *r.LoanAccountNumber
	}
	if r.DisbursementDate != nil {
		a.DisbursementDate = utcDate(*r.DisbursementDate)
	}
	if r.DisbursementAmount != nil {
		a.DisbursementAmount = *r.DisbursementAmount
	}
	if r.RepaymentStartDate != nil {
		a.RepaymentStartDate = utcDate(*r.RepaymentStartDate)
	}
	if r.EMIInstallmentAmount != nil {
		a.EMIInstallmentAmount = *r.EMIInstallmentAmount
	}
	if r.NextDueDate != nil {
		a.NextDueDate = utcDate(*r.NextDueDate)
	}
}

func utcDate(t time.Time) *time.Time {
	u := t.UTC()
	return &u
}

// checkDraft rejects values that are invalid at any stage. Completeness is
// checked by the strict workflow guards.
func checkDraft(a *models.LoanApplication) error {
	if !a.LoanType.IsValid() {
		return models.NewValidationError("loan_type", fmt.Sprintf("unknown loan type %q", a.LoanType))
	}
	if len(a.Currency) != 3 {
		return models.NewValidationError("currency", "must be a 3 letter ISO 4217 code")
	}
	if a.Tenure < 0 || a.ApprovedTenure < 0 {
		return models.NewValidationError("tenure", "cannot be negative")
	}
	amounts := []struct {
		field string
		value decimal.Decimal
	}{
		{"requested_amount", a.RequestedAmount().Value},
		{"monthly_net_income", a.MonthlyNetIncome().Value},
		{"existing_loan_repayments", a.ExistingLoanRepayments().Value},
		{"other_household_expenses", a.OtherHouseholdExpenses().Value},
		{"collateral_valuation", a.CollateralValuation().Value},
		{"approved_loan_amount", a.ApprovedLoanAmount},
		{"interest_rate", a.InterestRate},
	}
	for _, amt := range amounts {
		if amt.value.IsNegative() {
			return models.NewValidationError(amt.field, "cannot be negative")
		}
	}
	return nil
}

// GetApplication returns an application with its guarantors, conditions and documents
func (s *Service) GetApplication(ctx context.Context, sess models.Session, id uuid.UUID) (*models.LoanApplication, error) {
	return s.store.GetApplication(ctx, id)
}

// ListApplications returns the applications matching f
func (s *Service) ListApplications(ctx context.Context, sess models.Session, f ApplicationFilter) ([]*models.LoanApplication, error) {
	var filters []repository.Filter
	if f.ApplicantID != uuid.Nil {
		filters = append(filters, repository.Eq("applicant_id", f.ApplicantID))
	}
	if f.State != "" {
		if !f.State.IsValid() {
			return nil, models.NewValidationError("state", fmt.Sprintf("unknown state %q", f.State))
		}
		filters = append(filters, repository.Eq("state", string(f.State)))
	}
	return s.store.SearchApplications(ctx, filters...)
}

// AddGuarantor records a guarantor of an application
func (s *Service) AddGuarantor(ctx context.Context, sess models.Session, applicationID uuid.UUID, req GuarantorRequest) (*models.Guarantor, error) {
	g := &models.Guarantor{
		ID:                   uuid.New(),
		ApplicationID:        applicationID,
		Name:                 strings.TrimSpace(req.Name),
		IdentificationNumber: req.IdentificationNumber,
		IncomeSource:         req.IncomeSource,
		Relationship:         req.Relationship,
	}
	if g.Name == "" {
		return nil, models.NewValidationError("name", "is required")
	}
	if err := s.addChild(ctx, applicationID, func(ctx context.Context) error {
		return s.store.AddGuarantor(ctx, g)
	}); err != nil {
		return nil, err
	}
	return g, nil
}

// AddDocument attaches a document reference to an application
func (s *Service) AddDocument(ctx context.Context, sess models.Session, applicationID uuid.UUID, req DocumentRequest) (*models.Document, error) {
	d := &models.Document{
		ID:            uuid.New(),
		ApplicationID: applicationID,
		Name:          strings.TrimSpace(req.Name),
		Type:          req.Type,
		StorageRef:    strings.TrimSpace(req.StorageRef),
	}
	switch {
	case d.Name == "":
		return nil, models.NewValidationError("name", "is required")
	case !d.Type.IsValid():
		return nil, models.NewValidationError("document_type", fmt.Sprintf("unknown document type %q", d.Type))
	case d.StorageRef == "":
		return nil, models.NewValidationError("storage_ref", "is required")
	}
	if err := s.addChild(ctx, applicationID, func(ctx context.Context) error {
		return s.store.AddDocument(ctx, d)
	}); err != nil {
		return nil, err
	}
	return d, nil
}

// AddCondition adds an unmet condition precedent to an application
func (s *Service) AddCondition(ctx context.Context, sess models.Session, applicationID uuid.UUID, description string) (*models.ConditionPrecedent, error) {
	c := &models.ConditionPrecedent{
		ID:            uuid.New(),
		ApplicationID: applicationID,
		Description:   strings.TrimSpace(description),
	}
	if c.Description == "" {
		return nil, models.NewValidationError("description", "is required")
	}
	if err := s.addChild(ctx, applicationID, func(ctx context.Context) error {
		return s.store.AddCondition(ctx, c)
	}); err != nil {
		return nil, err
	}
	return c, nil
}

// SetConditionMet marks a condition precedent as met or unmet. Conditions of
// an application in a terminal state are frozen.
func (s *Service) SetConditionMet(ctx context.Context, sess models.Session, applicationID, conditionID uuid.UUID, met bool) (*models.LoanApplication, error) {
	var app *models.LoanApplication
	err := s.addChild(ctx, applicationID, func(ctx context.Context) error {
		if err := s.store.SetConditionMet(ctx, applicationID, conditionID, met); err != nil {
			return err
		}
		var err error
		app, err = s.store.GetApplication(ctx, applicationID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("application_id", applicationID).Infof("Condition %s met=%t", conditionID, met)
	return app, nil
}

// addChild writes a child record of an application that must not be disbursed yet
func (s *Service) addChild(ctx context.Context, applicationID uuid.UUID, insert func(ctx context.Context) error) error {
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		app, err := s.store.LockApplication(ctx, applicationID)
		if err != nil {
			return err
		}
		if app.State().IsTerminal() {
			return models.NewValidationError("state", fmt.Sprintf("application is %s", app.State()))
		}
		return insert(ctx)
	})
}
