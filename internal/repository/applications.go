package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const applicationColumns = `id, application_number, applicant_id, state, version, currency, loan_type, loan_product,
	tenure, repayment_frequency, proposed_collateral_type, repayment_source, requested_amount,
	monthly_net_income, existing_loan_repayments, other_household_expenses, collateral_valuation,
	recommended_eligible_amount, approved_loan_amount, approved_tenure, interest_rate, interest_type,
	loan_account_number, disbursement_date, disbursement_amount, repayment_start_date,
	emi_installment_amount, next_due_date, created_at, updated_at`

var applicationFilterColumns = map[string]bool{
	"applicant_id": true,
	"state":        true,
	"loan_type":    true,
	"currency":     true,
}

// CreateApplication inserts an application with its guarantors, conditions and documents
func (r *Repository) CreateApplication(ctx context.Context, a *models.LoanApplication) error {
	_, err := r.exec(ctx, `
		INSERT INTO loan_applications (`+applicationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Number, a.ApplicantID, string(a.State()), a.Version, a.Currency, string(a.LoanType), a.LoanProduct,
		a.Tenure, a.RepaymentFrequency, a.ProposedCollateralType, a.RepaymentSource, a.RequestedAmount().Value,
		a.MonthlyNetIncome().Value, a.ExistingLoanRepayments().Value, a.OtherHouseholdExpenses().Value, a.CollateralValuation().Value,
		a.RecommendedEligibleAmount, a.ApprovedLoanAmount, a.ApprovedTenure, a.InterestRate, a.InterestType,
		a.LoanAccountNumber, timeArg(a.DisbursementDate), a.DisbursementAmount, timeArg(a.RepaymentStartDate),
		a.EMIInstallmentAmount, timeArg(a.NextDueDate), a.CreatedAt.UTC(), a.UpdatedAt.UTC())
	if err != nil {
		return wrap("create application", err)
	}
	for i := range a.Guarantors {
		if err := r.AddGuarantor(ctx, &a.Guarantors[i]); err != nil {
			return err
		}
	}
	for i := range a.Conditions {
		if err := r.AddCondition(ctx, &a.Conditions[i]); err != nil {
			return err
		}
	}
	for i := range a.Documents {
		if err := r.AddDocument(ctx, &a.Documents[i]); err != nil {
			return err
		}
	}
	return nil
}

// GetApplication retrieves an application with its child records
func (r *Repository) GetApplication(ctx context.Context, id uuid.UUID) (*models.LoanApplication, error) {
	return r.getApplication(ctx, id, "")
}

// LockApplication is GetApplication holding a row lock until the transaction in ctx ends
func (r *Repository) LockApplication(ctx context.Context, id uuid.UUID) (*models.LoanApplication, error) {
	return r.getApplication(ctx, id, r.dialect.forUpdate)
}

func (r *Repository) getApplication(ctx context.Context, id uuid.UUID, suffix string) (*models.LoanApplication, error) {
	row := r.queryRow(ctx, `SELECT `+applicationColumns+` FROM loan_applications WHERE id = ?`+suffix, id)
	a, err := scanApplication(row)
	if err != nil {
		return nil, wrap("application "+id.String(), err)
	}
	if err := r.loadApplicationChildren(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// SearchApplications returns the applications matching every filter with their child records
func (r *Repository) SearchApplications(ctx context.Context, filters ...Filter) ([]*models.LoanApplication, error) {
	where, args, err := buildWhere(applicationFilterColumns, filters)
	if err != nil {
		return nil, err
	}
	rows, err := r.query(ctx, `SELECT `+applicationColumns+` FROM loan_applications`+where+` ORDER BY created_at, application_number`, args...)
	if err != nil {
		return nil, wrap("search applications", err)
	}
	defer rows.Close()

	var apps []*models.LoanApplication
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, wrap("scan application", err)
		}
		apps = append(apps, a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("search applications", err)
	}
	rows.Close()

	for _, a := range apps {
		if err := r.loadApplicationChildren(ctx, a); err != nil {
			return nil, err
		}
	}
	return apps, nil
}

// CountApplications counts the applications matching every filter
func (r *Repository) CountApplications(ctx context.Context, filters ...Filter) (int, error) {
	return r.count(ctx, "loan_applications", applicationFilterColumns, filters)
}

// UpdateApplication writes the data fields of a, not its state, if nobody changed it
// since it was read. The version is bumped on success.
func (r *Repository) UpdateApplication(ctx context.Context, a *models.LoanApplication) error {
	res, err := r.exec(ctx, `
		UPDATE loan_applications SET
			version = version + 1, loan_type = ?, loan_product = ?, tenure = ?, repayment_frequency = ?,
			proposed_collateral_type = ?, repayment_source = ?, requested_amount = ?, monthly_net_income = ?,
			existing_loan_repayments = ?, other_household_expenses = ?, collateral_valuation = ?,
			recommended_eligible_amount = ?, approved_loan_amount = ?, approved_tenure = ?, interest_rate = ?,
			interest_type = ?, loan_account_number = ?, disbursement_date = ?, disbursement_amount = ?,
			repayment_start_date = ?, emi_installment_amount = ?, next_due_date = ?, updated_at = ?
		WHERE id = ? AND version = ?`,
		string(a.LoanType), a.LoanProduct, a.Tenure, a.RepaymentFrequency,
		a.ProposedCollateralType, a.RepaymentSource, a.RequestedAmount().Value, a.MonthlyNetIncome().Value,
		a.ExistingLoanRepayments().Value, a.OtherHouseholdExpenses().Value, a.CollateralValuation().Value,
		a.RecommendedEligibleAmount, a.ApprovedLoanAmount, a.ApprovedTenure, a.InterestRate,
		a.InterestType, a.LoanAccountNumber, timeArg(a.DisbursementDate), a.DisbursementAmount,
		timeArg(a.RepaymentStartDate), a.EMIInstallmentAmount, timeArg(a.NextDueDate), a.UpdatedAt.UTC(),
		a.ID, a.Version)
	if err != nil {
		return wrap("update application", err)
	}
	if err := r.checkApplicationCAS(ctx, res, a.ID); err != nil {
		return err
	}
	a.Version++
	return nil
}

// UpdateApplicationState moves an application from one state to another. The
// write only happens when the stored state and version still equal from and
// version; otherwise ErrConcurrentStateConflict is returned.
func (r *Repository) UpdateApplicationState(ctx context.Context, id uuid.UUID, from models.ApplicationState, version int64, to models.ApplicationState) error {
	res, err := r.exec(ctx, `
		UPDATE loan_applications
		SET state = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND state = ? AND version = ?`,
		string(to), time.Now().UTC(), id, string(from), version)
	if err != nil {
		return wrap("update application state", err)
	}
	return r.checkApplicationCAS(ctx, res, id)
}

// checkApplicationCAS tells a stale write apart from a missing application
func (r *Repository) checkApplicationCAS(ctx context.Context, res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}
	var exists int
	err = r.queryRow(ctx, `SELECT 1 FROM loan_applications WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return wrap("application "+id.String(), err)
	}
	return fmt.Errorf("application %s was modified concurrently: %w", id, models.ErrConcurrentStateConflict)
}

// AddGuarantor inserts a guarantor of an application
func (r *Repository) AddGuarantor(ctx context.Context, g *models.Guarantor) error {
	_, err := r.exec(ctx, `
		INSERT INTO guarantors (id, application_id, name, identification_number, income_source, relationship)
		VALUES (?, ?, ?, ?, ?, ?)`,
		g.ID, g.ApplicationID, g.Name, g.IdentificationNumber, g.IncomeSource, g.Relationship)
	if err != nil {
		return wrap("add guarantor", err)
	}
	return nil
}

// AddCondition inserts a condition precedent of an application
func (r *Repository) AddCondition(ctx context.Context, c *models.ConditionPrecedent) error {
	_, err := r.exec(ctx, `
		INSERT INTO conditions_precedent (id, application_id, description, is_met)
		VALUES (?, ?, ?, ?)`,
		c.ID, c.ApplicationID, c.Description, c.IsMet)
	if err != nil {
		return wrap("add condition", err)
	}
	return nil
}

// SetConditionMet marks a condition of an application as met or unmet
func (r *Repository) SetConditionMet(ctx context.Context, applicationID, conditionID uuid.UUID, met bool) error {
	res, err := r.exec(ctx, `UPDATE conditions_precedent SET is_met = ? WHERE id = ? AND application_id = ?`,
		met, conditionID, applicationID)
	if err != nil {
		return wrap("update condition", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("condition %s: %w", conditionID, models.ErrNotFound)
	}
	return nil
}

// AddDocument inserts the reference to a supporting document
func (r *Repository) AddDocument(ctx context.Context, d *models.Document) error {
	_, err := r.exec(ctx, `
		INSERT INTO application_documents (id, application_id, name, document_type, storage_ref)
		VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.ApplicationID, d.Name, string(d.Type), d.StorageRef)
	if err != nil {
		return wrap("add document", err)
	}
	return nil
}

func (r *Repository) loadApplicationChildren(ctx context.Context, a *models.LoanApplication) error {
	rows, err := r.query(ctx, `
		SELECT id, application_id, name, identification_number, income_source, relationship
		FROM guarantors WHERE application_id = ? ORDER BY name, id`, a.ID)
	if err != nil {
		return wrap("list guarantors", err)
	}
	a.Guarantors = nil
	for rows.Next() {
		var g models.Guarantor
		if err := rows.Scan(&g.ID, &g.ApplicationID, &g.Name, &g.IdentificationNumber, &g.IncomeSource, &g.Relationship); err != nil {
			rows.Close()
			return wrap("scan guarantor", err)
		}
		a.Guarantors = append(a.Guarantors, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return wrap("list guarantors", err)
	}

	rows, err = r.query(ctx, `
		SELECT id, application_id, description, is_met
		FROM conditions_precedent WHERE application_id = ? ORDER BY description, id`, a.ID)
	if err != nil {
		return wrap("list conditions", err)
	}
	a.Conditions = nil
	for rows.Next() {
		var c models.ConditionPrecedent
		if err := rows.Scan(&c.ID, &c.ApplicationID, &c.Description, &c.IsMet); err != nil {
			rows.Close()
			return wrap("scan condition", err)
		}
		a.Conditions = append(a.Conditions, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return wrap("list conditions", err)
	}

	rows, err = r.query(ctx, `
		SELECT id, application_id, name, document_type, storage_ref
		FROM application_documents WHERE application_id = ? ORDER BY name, id`, a.ID)
	if err != nil {
		return wrap("list documents", err)
	}
	defer rows.Close()
	a.Documents = nil
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.ApplicationID, &d.Name, &d.Type, &d.StorageRef); err != nil {
			return wrap("scan document", err)
		}
		a.Documents = append(a.Documents, d)
	}
	return rows.Err()
}

func scanApplication(s rowScanner) (*models.LoanApplication, error) {
	var (
		a                                                   models.LoanApplication
		state                                               models.ApplicationState
		version                                             int64
		requested, income, repayments, expenses, collateral decimal.Decimal
		disbursed, repaymentStart, nextDue                  sql.NullTime
	)
	err := s.Scan(&a.ID, &a.Number, &a.ApplicantID, &state, &version, &a.Currency, &a.LoanType, &a.LoanProduct,
		&a.Tenure, &a.RepaymentFrequency, &a.ProposedCollateralType, &a.RepaymentSource, &requested,
		&income, &repayments, &expenses, &collateral,
		&a.RecommendedEligibleAmount, &a.ApprovedLoanAmount, &a.ApprovedTenure, &a.InterestRate, &a.InterestType,
		&a.LoanAccountNumber, &disbursed, &a.DisbursementAmount, &repaymentStart,
		&a.EMIInstallmentAmount, &nextDue, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.SetRequestedAmount(requested)
	a.SetMonthlyNetIncome(income)
	a.SetExistingLoanRepayments(repayments)
	a.SetOtherHouseholdExpenses(expenses)
	a.SetCollateralValuation(collateral)
	a.DisbursementDate = nullTime(disbursed)
	a.RepaymentStartDate = nullTime(repaymentStart)
	a.NextDueDate = nullTime(nextDue)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	a.RestoreState(state, version)
	return &a, nil
}
