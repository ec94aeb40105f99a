package models

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleApplication() *LoanApplication {
	app := NewLoanApplication("LA00001", uuid.New(), "ETB")
	app.LoanType = LoanRetail
	app.LoanProduct = "personal"
	app.Tenure = 24
	app.SetRequestedAmount(dec("10000"))
	app.SetMonthlyNetIncome(dec("3000"))
	app.SetExistingLoanRepayments(dec("400"))
	app.SetOtherHouseholdExpenses(dec("600"))
	app.SetCollateralValuation(dec("40000"))
	return app
}

func TestLoanApplication_DerivedRatios(t *testing.T) {
	app := sampleApplication()

	if got := app.TotalDisposableIncome(); !got.Value.Equal(dec("2000")) {
		t.Errorf("expected disposable income 2000, got %s", got)
	}
	if got := app.DebtToIncomeRatio(); !got.Equal(dec("16.6667")) {
		t.Errorf("expected DTI 16.6667, got %s", got)
	}
	if got := app.DebtServiceRatio(); !got.Equal(dec("25")) {
		t.Errorf("expected DSR 25, got %s", got)
	}
	if got := app.LoanToValueRatio(); !got.Equal(dec("25")) {
		t.Errorf("expected LTV 25, got %s", got)
	}
}

func TestLoanApplication_ReadYourWrites(t *testing.T) {
	app := sampleApplication()
	before := app.DebtToIncomeRatio()

	app.SetMonthlyNetIncome(dec("6000"))

	got := app.DebtToIncomeRatio()
	if got.Equal(before) {
		t.Fatalf("expected DTI to change after income update, still %s", got)
	}
	// (400 + 100) / 6000
	if !got.Equal(dec("8.3333")) {
		t.Errorf("expected DTI 8.3333, got %s", got)
	}
}

func TestLoanApplication_HouseholdExpensesReachDSR(t *testing.T) {
	app := sampleApplication()
	app.DebtServiceRatio()

	app.SetOtherHouseholdExpenses(dec("1600"))

	// disposable 1000, (400 + 100) / 1000
	if got := app.DebtServiceRatio(); !got.Equal(dec("50")) {
		t.Errorf("expected DSR 50, got %s", got)
	}
}

func TestLoanApplication_PrincipalAndTerm(t *testing.T) {
	app := sampleApplication()
	if got := app.Principal(); !got.Value.Equal(dec("10000")) {
		t.Errorf("expected requested amount as principal, got %s", got)
	}
	if app.Term() != 24 {
		t.Errorf("expected tenure 24, got %d", app.Term())
	}

	app.ApprovedLoanAmount = dec("8000")
	app.ApprovedTenure = 12
	if got := app.Principal(); !got.Value.Equal(dec("8000")) {
		t.Errorf("expected approved amount as principal, got %s", got)
	}
	if app.Term() != 12 {
		t.Errorf("expected approved tenure 12, got %d", app.Term())
	}
}

func TestLoanApplication_CheckConditions(t *testing.T) {
	app := sampleApplication()
	if err := app.CheckConditions(); err != nil {
		t.Fatalf("expected no error without conditions, got %v", err)
	}

	app.Conditions = []ConditionPrecedent{
		{ID: uuid.New(), Description: "insurance", IsMet: true},
		{ID: uuid.New(), Description: "title deed", IsMet: false},
	}
	err := app.CheckConditions()
	if !errors.Is(err, ErrPreconditionNotMet) {
		t.Fatalf("expected ErrPreconditionNotMet, got %v", err)
	}

	app.Conditions[1].IsMet = true
	if err := app.CheckConditions(); err != nil {
		t.Errorf("expected conditions to pass, got %v", err)
	}
}

func TestLoanApplication_NewLoan(t *testing.T) {
	app := sampleApplication()
	app.ApprovedLoanAmount = dec("9000")
	app.InterestRate = dec("12")
	app.ProposedCollateralType = "vehicle"
	app.LoanAccountNumber = "LN-1"

	loan := app.NewLoan()

	if loan.Status != LoanActive {
		t.Errorf("expected active loan, got %s", loan.Status)
	}
	if loan.Type != "personal" || loan.OwnerID != app.ApplicantID {
		t.Errorf("unexpected type or owner: %s %s", loan.Type, loan.OwnerID)
	}
	if !loan.Principal().Value.Equal(dec("9000")) || loan.TermMonths() != 24 {
		t.Errorf("unexpected terms: %s over %d", loan.Principal(), loan.TermMonths())
	}
	if loan.OriginatingApplicationID == nil || *loan.OriginatingApplicationID != app.ID {
		t.Error("expected loan to reference the application")
	}
	if loan.CollateralType != "vehicle" || !loan.CollateralValue.Value.Equal(dec("40000")) {
		t.Errorf("expected collateral copied, got %s %s", loan.CollateralType, loan.CollateralValue)
	}
}

func TestLoanApplication_CheckStage(t *testing.T) {
	submit, _ := LookupTransition(TransitionSubmit)
	screen, _ := LookupTransition(TransitionScreenInitially)
	sanction, _ := LookupTransition(TransitionSanction)

	app := sampleApplication()
	if err := app.CheckStage(submit); err != nil {
		t.Errorf("expected complete draft to pass, got %v", err)
	}
	if err := app.CheckStage(screen); !errors.Is(err, ErrValidation) {
		t.Errorf("expected missing documents to fail, got %v", err)
	}
	if err := app.CheckStage(sanction); !errors.Is(err, ErrValidation) {
		t.Errorf("expected missing interest rate to fail, got %v", err)
	}

	app.Documents = append(app.Documents, Document{ID: uuid.New(), Name: "passport", Type: DocIDProof})
	if err := app.CheckStage(screen); err != nil {
		t.Errorf("expected documents to satisfy screening, got %v", err)
	}
}

func TestLookupTransition_Unknown(t *testing.T) {
	if _, err := LookupTransition("teleport"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestTransitions_FormChain(t *testing.T) {
	state := StateDraft
	for _, tr := range Transitions {
		if tr.IsSideExit() {
			continue
		}
		if tr.From != state {
			t.Fatalf("transition %s starts at %s, expected %s", tr.Name, tr.From, state)
		}
		state = tr.To
	}
	if state != StateDisbursed {
		t.Errorf("expected chain to end in disbursed, got %s", state)
	}
}
