package repository

import (
	"context"
	"fmt"

	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const accountColumns = `id, account_number, account_type, currency, status, owner_id, created_at, updated_at`

var accountFilterColumns = map[string]bool{
	"owner_id":       true,
	"status":         true,
	"currency":       true,
	"account_type":   true,
	"account_number": true,
}

// CreateAccount inserts a new account without its transactions
func (r *Repository) CreateAccount(ctx context.Context, a *models.Account) error {
	_, err := r.exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Number, string(a.Type), a.Currency, string(a.Status), a.OwnerID, a.CreatedAt.UTC(), a.UpdatedAt.UTC())
	if err != nil {
		return wrap("create account", err)
	}
	return nil
}

// GetAccount retrieves an account with its transactions
func (r *Repository) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return r.getAccount(ctx, id, "")
}

// LockAccount is GetAccount holding a row lock until the transaction in ctx ends
func (r *Repository) LockAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return r.getAccount(ctx, id, r.dialect.forUpdate)
}

func (r *Repository) getAccount(ctx context.Context, id uuid.UUID, suffix string) (*models.Account, error) {
	row := r.queryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`+suffix, id)
	a, err := scanAccount(row)
	if err != nil {
		return nil, wrap("account "+id.String(), err)
	}
	txns, err := r.ListTransactions(ctx, id)
	if err != nil {
		return nil, err
	}
	a.LoadTransactions(txns)
	return a, nil
}

// SearchAccounts returns the accounts matching every filter, without transactions
func (r *Repository) SearchAccounts(ctx context.Context, filters ...Filter) ([]*models.Account, error) {
	where, args, err := buildWhere(accountFilterColumns, filters)
	if err != nil {
		return nil, err
	}
	rows, err := r.query(ctx, `SELECT `+accountColumns+` FROM accounts`+where+` ORDER BY created_at, account_number`, args...)
	if err != nil {
		return nil, wrap("search accounts", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, wrap("scan account", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// CountAccounts counts the accounts matching every filter
func (r *Repository) CountAccounts(ctx context.Context, filters ...Filter) (int, error) {
	return r.count(ctx, "accounts", accountFilterColumns, filters)
}

// UpdateAccountStatus changes the status of an account
func (r *Repository) UpdateAccountStatus(ctx context.Context, a *models.Account) error {
	res, err := r.exec(ctx, `UPDATE accounts SET status = ?, updated_at = ? WHERE id = ?`,
		string(a.Status), a.UpdatedAt.UTC(), a.ID)
	if err != nil {
		return wrap("update account", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("account %s: %w", a.ID, models.ErrNotFound)
	}
	return nil
}

// CreateTransaction appends a posting to its account
func (r *Repository) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	_, err := r.exec(ctx, `
		INSERT INTO transactions (id, account_id, date, amount, currency, type, description)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AccountID, t.Date.UTC(), t.Amount.Value, t.Amount.Currency, string(t.Type), t.Description)
	if err != nil {
		return wrap("create transaction", err)
	}
	return nil
}

// ListTransactions returns the postings of an account in date order
func (r *Repository) ListTransactions(ctx context.Context, accountID uuid.UUID) ([]models.Transaction, error) {
	rows, err := r.query(ctx, `
		SELECT id, account_id, date, amount, currency, type, description
		FROM transactions
		WHERE account_id = ?
		ORDER BY date, id`, accountID)
	if err != nil {
		return nil, wrap("list transactions", err)
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		var (
			t      models.Transaction
			amount decimal.Decimal
		)
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Date, &amount, &t.Amount.Currency, &t.Type, &t.Description); err != nil {
			return nil, wrap("scan transaction", err)
		}
		t.Amount.Value = amount
		t.Date = t.Date.UTC()
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func scanAccount(s rowScanner) (*models.Account, error) {
	var a models.Account
	err := s.Scan(&a.ID, &a.Number, &a.Type, &a.Currency, &a.Status, &a.OwnerID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}
