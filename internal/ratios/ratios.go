// Package ratios computes the affordability figures of a loan application.
// Every function is total: a zero or negative denominator yields zero.
package ratios

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)

	// NewLoanPaymentRate is the flat share of the requested amount used as the
	// estimated monthly payment of the new loan. It is an estimate, not an amortization.
	NewLoanPaymentRate = decimal.RequireFromString("0.01")
)

// Inputs are the application fields the ratios are derived from
type Inputs struct {
	MonthlyNetIncome       decimal.Decimal
	ExistingLoanRepayments decimal.Decimal
	OtherHouseholdExpenses decimal.Decimal
	RequestedAmount        decimal.Decimal
	CollateralValuation    decimal.Decimal
}

// Result holds all derived figures; ratios are percentages
type Result struct {
	DisposableIncome decimal.Decimal
	NewLoanPayment   decimal.Decimal
	DebtToIncome     decimal.Decimal
	DebtService      decimal.Decimal
	LoanToValue      decimal.Decimal
}

// Compute derives every figure from in
func Compute(in Inputs) Result {
	disposable := DisposableIncome(in.MonthlyNetIncome, in.ExistingLoanRepayments, in.OtherHouseholdExpenses)
	return Result{
		DisposableIncome: disposable,
		NewLoanPayment:   NewLoanPayment(in.RequestedAmount),
		DebtToIncome:     DebtToIncome(in.MonthlyNetIncome, in.ExistingLoanRepayments, in.RequestedAmount),
		DebtService:      DebtServiceRatio(in.ExistingLoanRepayments, in.RequestedAmount, disposable),
		LoanToValue:      LoanToValue(in.RequestedAmount, in.CollateralValuation),
	}
}

// DisposableIncome is income minus existing repayments and household expenses
func DisposableIncome(income, repayments, expenses decimal.Decimal) decimal.Decimal {
	return income.Sub(repayments).Sub(expenses)
}

// NewLoanPayment estimates the monthly payment of the requested loan
func NewLoanPayment(requested decimal.Decimal) decimal.Decimal {
	return requested.Mul(NewLoanPaymentRate)
}

// DebtToIncome is (repayments + new payment) / income in percent
func DebtToIncome(income, repayments, requested decimal.Decimal) decimal.Decimal {
	return percent(repayments.Add(NewLoanPayment(requested)), income)
}

// DebtServiceRatio is (repayments + new payment) / disposable income in percent
func DebtServiceRatio(repayments, requested, disposable decimal.Decimal) decimal.Decimal {
	return percent(repayments.Add(NewLoanPayment(requested)), disposable)
}

// LoanToValue is requested / collateral valuation in percent
func LoanToValue(requested, collateral decimal.Decimal) decimal.Decimal {
	return percent(requested, collateral)
}

func percent(numerator, denominator decimal.Decimal) decimal.Decimal {
	if !denominator.IsPositive() {
		return decimal.Zero
	}
	return numerator.Mul(hundred).DivRound(denominator, 4)
}
