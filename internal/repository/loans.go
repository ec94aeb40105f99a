package repository

import (
	"context"
	"database/sql"

	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const loanColumns = `id, loan_type, status, owner_id, principal, currency, interest_rate, term_months,
	collateral_type, collateral_value, disbursement_date, originating_application_id, loan_account_number,
	emi_installment_amount, repayment_start_date, next_due_date, created_at`

var loanFilterColumns = map[string]bool{
	"owner_id":                   true,
	"status":                     true,
	"currency":                   true,
	"originating_application_id": true,
	"next_due_date":              true,
}

// CreateLoan inserts a loan. A second loan for the same application fails with ErrUniquenessConflict.
func (r *Repository) CreateLoan(ctx context.Context, l *models.Loan) error {
	var origin uuid.NullUUID
	if l.OriginatingApplicationID != nil {
		origin = uuid.NullUUID{UUID: *l.OriginatingApplicationID, Valid: true}
	}
	principal := l.Principal()
	_, err := r.exec(ctx, `
		INSERT INTO loans (`+loanColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Type, string(l.Status), l.OwnerID, principal.Value, principal.Currency, l.InterestRate(), l.TermMonths(),
		l.CollateralType, l.CollateralValue.Value, timeArg(l.DisbursementDate), origin, l.LoanAccountNumber,
		l.EMIInstallmentAmount.Value, timeArg(l.RepaymentStartDate), timeArg(l.NextDueDate), l.CreatedAt.UTC())
	if err != nil {
		return wrap("create loan", err)
	}
	return nil
}

// GetLoan retrieves a loan by id
func (r *Repository) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	row := r.queryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, id)
	l, err := scanLoan(row)
	if err != nil {
		return nil, wrap("loan "+id.String(), err)
	}
	return l, nil
}

// SearchLoans returns the loans matching every filter
func (r *Repository) SearchLoans(ctx context.Context, filters ...Filter) ([]*models.Loan, error) {
	where, args, err := buildWhere(loanFilterColumns, filters)
	if err != nil {
		return nil, err
	}
	rows, err := r.query(ctx, `SELECT `+loanColumns+` FROM loans`+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, wrap("search loans", err)
	}
	defer rows.Close()

	var loans []*models.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, wrap("scan loan", err)
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

// CountLoans counts the loans matching every filter
func (r *Repository) CountLoans(ctx context.Context, filters ...Filter) (int, error) {
	return r.count(ctx, "loans", loanFilterColumns, filters)
}

func scanLoan(s rowScanner) (*models.Loan, error) {
	var (
		l                                  models.Loan
		principal, rate, collateral, emi   decimal.Decimal
		currency                           string
		term                               int
		disbursed, repaymentStart, nextDue sql.NullTime
		origin                             uuid.NullUUID
	)
	err := s.Scan(&l.ID, &l.Type, &l.Status, &l.OwnerID, &principal, &currency, &rate, &term,
		&l.CollateralType, &collateral, &disbursed, &origin, &l.LoanAccountNumber,
		&emi, &repaymentStart, &nextDue, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	if origin.Valid {
		id := origin.UUID
		l.OriginatingApplicationID = &id
	}
	l.CollateralValue = models.NewMoney(collateral, currency)
	l.EMIInstallmentAmount = models.NewMoney(emi, currency)
	l.DisbursementDate = nullTime(disbursed)
	l.RepaymentStartDate = nullTime(repaymentStart)
	l.NextDueDate = nullTime(nextDue)
	l.CreatedAt = l.CreatedAt.UTC()
	l.SetTerms(models.NewMoney(principal, currency), rate, term)
	return &l, nil
}
