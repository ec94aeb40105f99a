package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Dan9191/retail-banking/internal/derived"
	"github.com/Dan9191/retail-banking/internal/ratios"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanType is the business line of an application
type LoanType string

const (
	LoanRetail      LoanType = "retail"
	LoanSME         LoanType = "sme"
	LoanCorporate   LoanType = "corporate"
	LoanAgriculture LoanType = "agriculture"
)

// IsValid reports whether t is a known loan type
func (t LoanType) IsValid() bool {
	switch t {
	case LoanRetail, LoanSME, LoanCorporate, LoanAgriculture:
		return true
	}
	return false
}

// Fields the affordability figures are derived from
const (
	FieldMonthlyNetIncome       derived.Field = "monthly_net_income"
	FieldExistingLoanRepayments derived.Field = "existing_loan_repayments"
	FieldOtherHouseholdExpenses derived.Field = "other_household_expenses"
	FieldRequestedAmount        derived.Field = "requested_amount"
	FieldCollateralValuation    derived.Field = "collateral_valuation"

	FieldTotalDisposableIncome derived.Field = "total_disposable_income"
	FieldDebtToIncomeRatio     derived.Field = "debt_to_income_ratio"
	FieldDebtServiceRatio      derived.Field = "debt_service_ratio"
	FieldLoanToValueRatio      derived.Field = "loan_to_value_ratio"
)

var applicationGraph = derived.MustGraph(
	derived.Rule[LoanApplication]{
		Target:    FieldTotalDisposableIncome,
		DependsOn: []derived.Field{FieldMonthlyNetIncome, FieldExistingLoanRepayments, FieldOtherHouseholdExpenses},
		Compute: func(a *LoanApplication) {
			a.totalDisposableIncome = ratios.DisposableIncome(a.monthlyNetIncome, a.existingLoanRepayments, a.otherHouseholdExpenses)
		},
	},
	derived.Rule[LoanApplication]{
		Target:    FieldDebtToIncomeRatio,
		DependsOn: []derived.Field{FieldMonthlyNetIncome, FieldExistingLoanRepayments, FieldRequestedAmount},
		Compute: func(a *LoanApplication) {
			a.debtToIncomeRatio = ratios.DebtToIncome(a.monthlyNetIncome, a.existingLoanRepayments, a.requestedAmount)
		},
	},
	derived.Rule[LoanApplication]{
		Target:    FieldDebtServiceRatio,
		DependsOn: []derived.Field{FieldExistingLoanRepayments, FieldRequestedAmount, FieldTotalDisposableIncome},
		Compute: func(a *LoanApplication) {
			a.debtServiceRatio = ratios.DebtServiceRatio(a.existingLoanRepayments, a.requestedAmount, a.totalDisposableIncome)
		},
	},
	derived.Rule[LoanApplication]{
		Target:    FieldLoanToValueRatio,
		DependsOn: []derived.Field{FieldRequestedAmount, FieldCollateralValuation},
		Compute: func(a *LoanApplication) {
			a.loanToValueRatio = ratios.LoanToValue(a.requestedAmount, a.collateralValuation)
		},
	},
)

// Guarantor backs an application; informational only
type Guarantor struct {
	ID                   uuid.UUID `json:"id"`
	ApplicationID        uuid.UUID `json:"application_id"`
	Name                 string    `json:"name"`
	IdentificationNumber string    `json:"identification_number"`
	IncomeSource         string    `json:"income_source"`
	Relationship         string    `json:"relationship"`
}

// ConditionPrecedent must be met before the loan is disbursed
type ConditionPrecedent struct {
	ID            uuid.UUID `json:"id"`
	ApplicationID uuid.UUID `json:"application_id"`
	Description   string    `json:"description"`
	IsMet         bool      `json:"is_met"`
}

// DocumentType classifies a supporting document
type DocumentType string

const (
	DocIDProof               DocumentType = "id_proof"
	DocPhoto                 DocumentType = "photo"
	DocSalarySlips           DocumentType = "salary_slips"
	DocEmploymentCertificate DocumentType = "employment_certificate"
	DocBusinessLicense       DocumentType = "business_license"
	DocBankStatements        DocumentType = "bank_statements"
	DocCollateralOwnership   DocumentType = "collateral_ownership"
	DocTaxReturns            DocumentType = "tax_returns"
	DocOther                 DocumentType = "other"
)

// IsValid reports whether t is a known document type
func (t DocumentType) IsValid() bool {
	switch t {
	case DocIDProof, DocPhoto, DocSalarySlips, DocEmploymentCertificate, DocBusinessLicense,
		DocBankStatements, DocCollateralOwnership, DocTaxReturns, DocOther:
		return true
	}
	return false
}

// Document references a file held by the document store
type Document struct {
	ID            uuid.UUID    `json:"id"`
	ApplicationID uuid.UUID    `json:"application_id"`
	Name          string       `json:"name"`
	Type          DocumentType `json:"document_type"`
	StorageRef    string       `json:"storage_ref"`
}

// LoanApplication is a request for a loan moving through the approval workflow.
// Monetary fields are expressed in Currency. The workflow state and the inputs of
// the derived ratios are only written through methods.
type LoanApplication struct {
	ID          uuid.UUID `json:"id"`
	Number      string    `json:"application_number"`
	ApplicantID uuid.UUID `json:"applicant_id"`
	Currency    string    `json:"currency"`

	LoanType               LoanType `json:"loan_type"`
	LoanProduct            string   `json:"loan_product"`
	Tenure                 int      `json:"tenure"`
	RepaymentFrequency     string   `json:"repayment_frequency,omitempty"`
	ProposedCollateralType string   `json:"proposed_collateral_type,omitempty"`
	RepaymentSource        string   `json:"repayment_source,omitempty"`

	RecommendedEligibleAmount decimal.Decimal `json:"recommended_eligible_loan_amount"`

	ApprovedLoanAmount decimal.Decimal `json:"approved_loan_amount"`
	ApprovedTenure     int             `json:"approved_tenure"`
	InterestRate       decimal.Decimal `json:"interest_rate"`
	InterestType       string          `json:"interest_type,omitempty"`

	LoanAccountNumber    string          `json:"loan_account_number,omitempty"`
	DisbursementDate     *time.Time      `json:"disbursement_date,omitempty"`
	DisbursementAmount   decimal.Decimal `json:"disbursement_amount"`
	RepaymentStartDate   *time.Time      `json:"repayment_start_date,omitempty"`
	EMIInstallmentAmount decimal.Decimal `json:"emi_installment_amount"`
	NextDueDate          *time.Time      `json:"next_due_date,omitempty"`

	Guarantors []Guarantor          `json:"guarantors"`
	Conditions []ConditionPrecedent `json:"conditions_precedent"`
	Documents  []Document           `json:"documents"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	state ApplicationState

	monthlyNetIncome       decimal.Decimal
	existingLoanRepayments decimal.Decimal
	otherHouseholdExpenses decimal.Decimal
	requestedAmount        decimal.Decimal
	collateralValuation    decimal.Decimal

	totalDisposableIncome decimal.Decimal
	debtToIncomeRatio     decimal.Decimal
	debtServiceRatio      decimal.Decimal
	loanToValueRatio      decimal.Decimal

	dirty derived.Dirty
}

// NewLoanApplication creates a draft application
func NewLoanApplication(number string, applicantID uuid.UUID, currency string) *LoanApplication {
	now := time.Now().UTC()
	a := &LoanApplication{
		ID:          uuid.New(),
		Number:      number,
		ApplicantID: applicantID,
		Currency:    currency,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
		state:       StateDraft,
	}
	applicationGraph.TouchAll(&a.dirty)
	return a
}

// RestoreState sets the state and version read from storage
func (a *LoanApplication) RestoreState(state ApplicationState, version int64) {
	a.state = state
	a.Version = version
	applicationGraph.TouchAll(&a.dirty)
}

// State is the current workflow stage
func (a *LoanApplication) State() ApplicationState {
	return a.state
}

// Apply moves the application along t and returns the state it left
func (a *LoanApplication) Apply(t Transition) ApplicationState {
	from := a.state
	a.state = t.To
	a.UpdatedAt = time.Now().UTC()
	return from
}

// Validate checks the fields required on every application
func (a *LoanApplication) Validate() error {
	if a.ApplicantID == uuid.Nil {
		return NewValidationError("applicant_id", "is required")
	}
	if !a.LoanType.IsValid() {
		return NewValidationError("loan_type", fmt.Sprintf("unknown loan type %q", a.LoanType))
	}
	if strings.TrimSpace(a.LoanProduct) == "" {
		return NewValidationError("loan_product", "is required")
	}
	if !a.requestedAmount.IsPositive() {
		return NewValidationError("requested_amount", "must be positive")
	}
	if a.Tenure <= 0 {
		return NewValidationError("tenure", "must be positive")
	}
	if len(a.Currency) != 3 {
		return NewValidationError("currency", "must be a 3 letter ISO 4217 code")
	}
	return nil
}

func (a *LoanApplication) SetMonthlyNetIncome(v decimal.Decimal) {
	a.monthlyNetIncome = v
	applicationGraph.Touch(&a.dirty, FieldMonthlyNetIncome)
}

func (a *LoanApplication) SetExistingLoanRepayments(v decimal.Decimal) {
	a.existingLoanRepayments = v
	applicationGraph.Touch(&a.dirty, FieldExistingLoanRepayments)
}

func (a *LoanApplication) SetOtherHouseholdExpenses(v decimal.Decimal) {
	a.otherHouseholdExpenses = v
	applicationGraph.Touch(&a.dirty, FieldOtherHouseholdExpenses)
}

func (a *LoanApplication) SetRequestedAmount(v decimal.Decimal) {
	a.requestedAmount = v
	applicationGraph.Touch(&a.dirty, FieldRequestedAmount)
}

func (a *LoanApplication) SetCollateralValuation(v decimal.Decimal) {
	a.collateralValuation = v
	applicationGraph.Touch(&a.dirty, FieldCollateralValuation)
}

func (a *LoanApplication) MonthlyNetIncome() Money {
	return NewMoney(a.monthlyNetIncome, a.Currency)
}

func (a *LoanApplication) ExistingLoanRepayments() Money {
	return NewMoney(a.existingLoanRepayments, a.Currency)
}

func (a *LoanApplication) OtherHouseholdExpenses() Money {
	return NewMoney(a.otherHouseholdExpenses, a.Currency)
}

func (a *LoanApplication) RequestedAmount() Money {
	return NewMoney(a.requestedAmount, a.Currency)
}

func (a *LoanApplication) CollateralValuation() Money {
	return NewMoney(a.collateralValuation, a.Currency)
}

// TotalDisposableIncome is income minus repayments and household expenses
func (a *LoanApplication) TotalDisposableIncome() Money {
	applicationGraph.Resolve(&a.dirty, a, FieldTotalDisposableIncome)
	return NewMoney(a.totalDisposableIncome, a.Currency)
}

// DebtToIncomeRatio is the DTI in percent
func (a *LoanApplication) DebtToIncomeRatio() decimal.Decimal {
	applicationGraph.Resolve(&a.dirty, a, FieldDebtToIncomeRatio)
	return a.debtToIncomeRatio
}

// DebtServiceRatio is the DSR in percent
func (a *LoanApplication) DebtServiceRatio() decimal.Decimal {
	applicationGraph.Resolve(&a.dirty, a, FieldDebtServiceRatio)
	return a.debtServiceRatio
}

// LoanToValueRatio is the LTV in percent
func (a *LoanApplication) LoanToValueRatio() decimal.Decimal {
	applicationGraph.Resolve(&a.dirty, a, FieldLoanToValueRatio)
	return a.loanToValueRatio
}

// UnmetConditions lists the conditions precedent that are not met yet
func (a *LoanApplication) UnmetConditions() []ConditionPrecedent {
	var unmet []ConditionPrecedent
	for _, c := range a.Conditions {
		if !c.IsMet {
			unmet = append(unmet, c)
		}
	}
	return unmet
}

// CheckConditions fails with ErrPreconditionNotMet unless every condition is met.
// An application without conditions passes.
func (a *LoanApplication) CheckConditions() error {
	unmet := a.UnmetConditions()
	if len(unmet) == 0 {
		return nil
	}
	names := make([]string, len(unmet))
	for i, c := range unmet {
		names[i] = c.Description
	}
	return fmt.Errorf("%w: %s", ErrPreconditionNotMet, strings.Join(names, ", "))
}

// CheckStage verifies the data a strict workflow requires before t
func (a *LoanApplication) CheckStage(t Transition) error {
	switch t.Name {
	case TransitionSubmit:
		return a.Validate()
	case TransitionScreenInitially:
		if len(a.Documents) == 0 {
			return NewValidationError("documents", "at least one supporting document is required")
		}
	case TransitionAssessCollateral:
		if !a.monthlyNetIncome.IsPositive() {
			return NewValidationError("monthly_net_income", "is required before collateral assessment")
		}
	case TransitionScoreCredit:
		if !a.collateralValuation.IsPositive() && len(a.Guarantors) == 0 {
			return NewValidationError("collateral_valuation", "collateral valuation or a guarantor is required")
		}
	case TransitionSanction:
		if !a.InterestRate.IsPositive() {
			return NewValidationError("interest_rate", "is required before sanction")
		}
	}
	return nil
}

// Principal is the approved amount, or the requested amount when none was approved
func (a *LoanApplication) Principal() Money {
	if !a.ApprovedLoanAmount.IsZero() {
		return NewMoney(a.ApprovedLoanAmount, a.Currency)
	}
	return a.RequestedAmount()
}

// Term is the approved tenure, or the requested tenure when none was approved
func (a *LoanApplication) Term() int {
	if a.ApprovedTenure != 0 {
		return a.ApprovedTenure
	}
	return a.Tenure
}

// NewLoan builds the active loan materialised by disbursement
func (a *LoanApplication) NewLoan() *Loan {
	appID := a.ID
	loan := &Loan{
		ID:                       uuid.New(),
		Type:                     a.LoanProduct,
		Status:                   LoanActive,
		OwnerID:                  a.ApplicantID,
		CollateralType:           a.ProposedCollateralType,
		CollateralValue:          a.CollateralValuation(),
		DisbursementDate:         a.DisbursementDate,
		OriginatingApplicationID: &appID,
		LoanAccountNumber:        a.LoanAccountNumber,
		EMIInstallmentAmount:     NewMoney(a.EMIInstallmentAmount, a.Currency),
		RepaymentStartDate:       a.RepaymentStartDate,
		NextDueDate:              a.NextDueDate,
		CreatedAt:                time.Now().UTC(),
	}
	loan.SetTerms(a.Principal(), a.InterestRate, a.Term())
	return loan
}

// MarshalJSON includes the state, the ratio inputs and the derived figures
func (a *LoanApplication) MarshalJSON() ([]byte, error) {
	type plain LoanApplication
	return json.Marshal(struct {
		*plain
		State                  ApplicationState `json:"state"`
		RequestedAmount        decimal.Decimal  `json:"requested_amount"`
		CollateralValuation    decimal.Decimal  `json:"collateral_valuation"`
		MonthlyNetIncome       decimal.Decimal  `json:"monthly_net_income"`
		ExistingLoanRepayments decimal.Decimal  `json:"existing_loan_repayments"`
		OtherHouseholdExpenses decimal.Decimal  `json:"other_household_expenses"`
		TotalDisposableIncome  decimal.Decimal  `json:"total_disposable_income"`
		DebtToIncomeRatio      decimal.Decimal  `json:"debt_to_income_ratio"`
		DebtServiceRatio       decimal.Decimal  `json:"debt_service_ratio"`
		LoanToValueRatio       decimal.Decimal  `json:"loan_to_value_ratio"`
	}{
		plain:                  (*plain)(a),
		State:                  a.state,
		RequestedAmount:        a.requestedAmount,
		CollateralValuation:    a.collateralValuation,
		MonthlyNetIncome:       a.monthlyNetIncome,
		ExistingLoanRepayments: a.existingLoanRepayments,
		OtherHouseholdExpenses: a.otherHouseholdExpenses,
		TotalDisposableIncome:  a.TotalDisposableIncome().Value,
		DebtToIncomeRatio:      a.DebtToIncomeRatio(),
		DebtServiceRatio:       a.DebtServiceRatio(),
		LoanToValueRatio:       a.LoanToValueRatio(),
	})
}
