package repository

import (
	"context"
	"fmt"
	"strings"
)

const schema = `
CREATE TABLE IF NOT EXISTS partners (
	id {uuid} PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	cif_number TEXT NOT NULL UNIQUE,
	kyc_status TEXT NOT NULL,
	credit_score INTEGER NOT NULL DEFAULT 0,
	date_of_birth {time},
	taxpayer_id TEXT NOT NULL DEFAULT '',
	occupation TEXT NOT NULL DEFAULT '',
	employer_name TEXT NOT NULL DEFAULT '',
	source_of_income TEXT NOT NULL DEFAULT '',
	created_at {time} NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	id {uuid} PRIMARY KEY,
	account_number TEXT NOT NULL UNIQUE,
	account_type TEXT NOT NULL,
	currency TEXT NOT NULL,
	status TEXT NOT NULL,
	owner_id {uuid} NOT NULL REFERENCES partners(id),
	created_at {time} NOT NULL,
	updated_at {time} NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_accounts_owner ON accounts(owner_id);

CREATE TABLE IF NOT EXISTS transactions (
	id {uuid} PRIMARY KEY,
	account_id {uuid} NOT NULL REFERENCES accounts(id),
	date {time} NOT NULL,
	amount {decimal} NOT NULL,
	currency TEXT NOT NULL,
	type TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id);

CREATE TABLE IF NOT EXISTS cards (
	id {uuid} PRIMARY KEY,
	number_hmac TEXT NOT NULL UNIQUE,
	number_cipher TEXT NOT NULL,
	masked_number TEXT NOT NULL,
	cvv_hash TEXT NOT NULL,
	card_type TEXT NOT NULL,
	expiration_date {time} NOT NULL,
	account_id {uuid} NOT NULL REFERENCES accounts(id),
	holder_id {uuid} NOT NULL REFERENCES partners(id),
	holder_name TEXT NOT NULL,
	is_active BOOLEAN NOT NULL,
	created_at {time} NOT NULL
);

CREATE TABLE IF NOT EXISTS loan_applications (
	id {uuid} PRIMARY KEY,
	application_number TEXT NOT NULL UNIQUE,
	applicant_id {uuid} NOT NULL REFERENCES partners(id),
	state TEXT NOT NULL,
	version INTEGER NOT NULL,
	currency TEXT NOT NULL,
	loan_type TEXT NOT NULL,
	loan_product TEXT NOT NULL,
	tenure INTEGER NOT NULL,
	repayment_frequency TEXT NOT NULL DEFAULT '',
	proposed_collateral_type TEXT NOT NULL DEFAULT '',
	repayment_source TEXT NOT NULL DEFAULT '',
	requested_amount {decimal} NOT NULL,
	monthly_net_income {decimal} NOT NULL,
	existing_loan_repayments {decimal} NOT NULL,
	other_household_expenses {decimal} NOT NULL,
	collateral_valuation {decimal} NOT NULL,
	recommended_eligible_amount {decimal} NOT NULL,
	approved_loan_amount {decimal} NOT NULL,
	approved_tenure INTEGER NOT NULL,
	interest_rate {decimal} NOT NULL,
	interest_type TEXT NOT NULL DEFAULT '',
	loan_account_number TEXT NOT NULL DEFAULT '',
	disbursement_date {time},
	disbursement_amount {decimal} NOT NULL,
	repayment_start_date {time},
	emi_installment_amount {decimal} NOT NULL,
	next_due_date {time},
	created_at {time} NOT NULL,
	updated_at {time} NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_loan_applications_state ON loan_applications(state);

CREATE TABLE IF NOT EXISTS guarantors (
	id {uuid} PRIMARY KEY,
	application_id {uuid} NOT NULL REFERENCES loan_applications(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	identification_number TEXT NOT NULL DEFAULT '',
	income_source TEXT NOT NULL DEFAULT '',
	relationship TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS conditions_precedent (
	id {uuid} PRIMARY KEY,
	application_id {uuid} NOT NULL REFERENCES loan_applications(id) ON DELETE CASCADE,
	description TEXT NOT NULL,
	is_met BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS application_documents (
	id {uuid} PRIMARY KEY,
	application_id {uuid} NOT NULL REFERENCES loan_applications(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	document_type TEXT NOT NULL,
	storage_ref TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS loans (
	id {uuid} PRIMARY KEY,
	loan_type TEXT NOT NULL,
	status TEXT NOT NULL,
	owner_id {uuid} NOT NULL REFERENCES partners(id),
	principal {decimal} NOT NULL,
	currency TEXT NOT NULL,
	interest_rate {decimal} NOT NULL,
	term_months INTEGER NOT NULL,
	collateral_type TEXT NOT NULL DEFAULT '',
	collateral_value {decimal} NOT NULL,
	disbursement_date {time},
	originating_application_id {uuid} UNIQUE REFERENCES loan_applications(id),
	loan_account_number TEXT NOT NULL DEFAULT '',
	emi_installment_amount {decimal} NOT NULL,
	repayment_start_date {time},
	next_due_date {time},
	created_at {time} NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_loans_owner ON loans(owner_id);

CREATE TABLE IF NOT EXISTS tickets (
	id {uuid} PRIMARY KEY,
	subject TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	partner_id {uuid} NOT NULL REFERENCES partners(id),
	state TEXT NOT NULL,
	priority INTEGER NOT NULL,
	assignee_id TEXT NOT NULL DEFAULT '',
	created_at {time} NOT NULL,
	updated_at {time} NOT NULL
);

CREATE TABLE IF NOT EXISTS sequences (
	code TEXT PRIMARY KEY,
	prefix TEXT NOT NULL,
	padding INTEGER NOT NULL,
	next_value INTEGER NOT NULL
);
`

// defaultSequences are created by Migrate when missing
var defaultSequences = []struct {
	code    string
	prefix  string
	padding int
}{
	{SequenceAccount, "ACC", 8},
	{SequenceApplication, "LA", 6},
	{SequencePartner, "CIF", 8},
}

// Migrate creates the tables and the default sequences if they don't already exist
func (r *Repository) Migrate(ctx context.Context) error {
	ddl := strings.NewReplacer(
		"{uuid}", r.dialect.uuidType,
		"{decimal}", r.dialect.decimalType,
		"{time}", r.dialect.timeType,
	).Replace(schema)

	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	for _, seq := range defaultSequences {
		_, err := r.exec(ctx, `
			INSERT INTO sequences (code, prefix, padding, next_value)
			VALUES (?, ?, ?, 1)
			ON CONFLICT (code) DO NOTHING`,
			seq.code, seq.prefix, seq.padding)
		if err != nil {
			return fmt.Errorf("failed to seed sequence %s: %w", seq.code, err)
		}
	}
	return nil
}
