package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dan9191/retail-banking/internal/derived"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanStatus is the lifecycle status of a loan
type LoanStatus string

const (
	LoanApplied  LoanStatus = "application"
	LoanApproved LoanStatus = "approved"
	LoanActive   LoanStatus = "active"
	LoanPaidOff  LoanStatus = "paid_off"
	LoanRejected LoanStatus = "rejected"
)

// IsValid reports whether s is a known loan status
func (s LoanStatus) IsValid() bool {
	switch s {
	case LoanApplied, LoanApproved, LoanActive, LoanPaidOff, LoanRejected:
		return true
	}
	return false
}

const (
	FieldPrincipal         derived.Field = "principal"
	FieldInterestRate      derived.Field = "interest_rate"
	FieldTermMonths        derived.Field = "term_months"
	FieldRepaymentSchedule derived.Field = "repayment_schedule"
)

var (
	twelveHundred = decimal.NewFromInt(1200)

	loanGraph = derived.MustGraph(
		derived.Rule[Loan]{
			Target:    FieldRepaymentSchedule,
			DependsOn: []derived.Field{FieldPrincipal, FieldInterestRate, FieldTermMonths},
			Compute: func(l *Loan) {
				l.schedule = computeSchedule(l.principal, l.interestRate, l.termMonths)
			},
		},
	)
)

// RepaymentSummary is the simple-interest repayment plan of a loan
type RepaymentSummary struct {
	Interest Money `json:"interest"`
	Total    Money `json:"total"`
	Monthly  Money `json:"monthly"`
	Months   int   `json:"months"`
}

// IsEmpty reports whether no plan could be computed
func (r RepaymentSummary) IsEmpty() bool {
	return r.Months == 0
}

func (r RepaymentSummary) String() string {
	if r.IsEmpty() {
		return ""
	}
	return fmt.Sprintf("Total: %s, Interest: %s, Monthly: %s over %d months", r.Total, r.Interest, r.Monthly, r.Months)
}

// computeSchedule returns an empty summary unless principal, rate and term are all set.
// Interest = P * rate * months / 1200 with rate in percent per year.
func computeSchedule(principal Money, rate decimal.Decimal, months int) RepaymentSummary {
	if principal.IsZero() || rate.IsZero() || months <= 0 {
		return RepaymentSummary{}
	}
	term := decimal.NewFromInt(int64(months))
	interest := principal.Value.Mul(rate).Mul(term).Div(twelveHundred).Round(2)
	total := principal.Value.Add(interest)
	return RepaymentSummary{
		Interest: NewMoney(interest, principal.Currency),
		Total:    NewMoney(total, principal.Currency),
		Monthly:  NewMoney(total.DivRound(term, 2), principal.Currency),
		Months:   months,
	}
}

// Loan is an active credit facility materialised by disbursing an application
type Loan struct {
	ID      uuid.UUID  `json:"id"`
	Type    string     `json:"loan_type"`
	Status  LoanStatus `json:"status"`
	OwnerID uuid.UUID  `json:"owner_id"`

	CollateralType  string `json:"collateral_type,omitempty"`
	CollateralValue Money  `json:"collateral_value"`

	DisbursementDate         *time.Time `json:"disbursement_date,omitempty"`
	OriginatingApplicationID *uuid.UUID `json:"originating_application_id,omitempty"`
	LoanAccountNumber        string     `json:"loan_account_number,omitempty"`
	EMIInstallmentAmount     Money      `json:"emi_installment_amount"`
	RepaymentStartDate       *time.Time `json:"repayment_start_date,omitempty"`
	NextDueDate              *time.Time `json:"next_due_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	principal    Money
	interestRate decimal.Decimal
	termMonths   int
	schedule     RepaymentSummary
	dirty        derived.Dirty
}

// SetTerms writes the inputs of the repayment schedule
func (l *Loan) SetTerms(principal Money, rate decimal.Decimal, months int) {
	l.principal = principal
	l.interestRate = rate
	l.termMonths = months
	loanGraph.Touch(&l.dirty, FieldPrincipal, FieldInterestRate, FieldTermMonths)
}

func (l *Loan) Principal() Money {
	return l.principal
}

func (l *Loan) InterestRate() decimal.Decimal {
	return l.interestRate
}

func (l *Loan) TermMonths() int {
	return l.termMonths
}

// Schedule is the repayment plan for the current terms
func (l *Loan) Schedule() RepaymentSummary {
	loanGraph.Resolve(&l.dirty, l, FieldRepaymentSchedule)
	return l.schedule
}

func (l *Loan) MarshalJSON() ([]byte, error) {
	type plain Loan
	return json.Marshal(struct {
		*plain
		Principal         Money            `json:"principal"`
		InterestRate      decimal.Decimal  `json:"interest_rate"`
		TermMonths        int              `json:"term_months"`
		RepaymentSchedule RepaymentSummary `json:"repayment_schedule"`
	}{
		plain:             (*plain)(l),
		Principal:         l.principal,
		InterestRate:      l.interestRate,
		TermMonths:        l.termMonths,
		RepaymentSchedule: l.Schedule(),
	})
}
