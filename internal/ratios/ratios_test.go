package ratios

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLoanToValue(t *testing.T) {
	tests := []struct {
		name       string
		requested  string
		collateral string
		expected   string
	}{
		{name: "half covered", requested: "5000", collateral: "10000", expected: "50"},
		{name: "no collateral", requested: "5000", collateral: "0", expected: "0"},
		{name: "negative collateral", requested: "5000", collateral: "-10", expected: "0"},
		{name: "over covered", requested: "12000", collateral: "8000", expected: "150"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LoanToValue(d(tt.requested), d(tt.collateral))
			if !got.Equal(d(tt.expected)) {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestDebtToIncome(t *testing.T) {
	// (500 + 1% of 20000) / 2000 = 35%
	got := DebtToIncome(d("2000"), d("500"), d("20000"))
	if !got.Equal(d("35")) {
		t.Errorf("expected 35, got %s", got)
	}
	if got := DebtToIncome(decimal.Zero, d("500"), d("20000")); !got.IsZero() {
		t.Errorf("expected 0 for zero income, got %s", got)
	}
}

func TestCompute(t *testing.T) {
	res := Compute(Inputs{
		MonthlyNetIncome:       d("3000"),
		ExistingLoanRepayments: d("400"),
		OtherHouseholdExpenses: d("600"),
		RequestedAmount:        d("10000"),
		CollateralValuation:    d("40000"),
	})

	checks := map[string]struct {
		got, expected decimal.Decimal
	}{
		"disposable income": {res.DisposableIncome, d("2000")},
		"new loan payment":  {res.NewLoanPayment, d("100")},
		"debt to income":    {res.DebtToIncome, d("16.6667")},
		"debt service":      {res.DebtService, d("25")},
		"loan to value":     {res.LoanToValue, d("25")},
	}
	for name, c := range checks {
		if !c.got.Equal(c.expected) {
			t.Errorf("%s: expected %s, got %s", name, c.expected, c.got)
		}
	}
}

func TestCompute_NegativeDisposableIncome(t *testing.T) {
	res := Compute(Inputs{
		MonthlyNetIncome:       d("1000"),
		ExistingLoanRepayments: d("800"),
		OtherHouseholdExpenses: d("400"),
		RequestedAmount:        d("1000"),
	})
	if !res.DisposableIncome.Equal(d("-200")) {
		t.Errorf("expected disposable income -200, got %s", res.DisposableIncome)
	}
	if !res.DebtService.IsZero() {
		t.Errorf("expected debt service 0 for negative disposable income, got %s", res.DebtService)
	}
	if !res.LoanToValue.IsZero() {
		t.Errorf("expected loan to value 0 without collateral, got %s", res.LoanToValue)
	}
}
