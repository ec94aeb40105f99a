package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dan9191/retail-banking/internal/derived"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType is the product of a bank account
type AccountType string

const (
	AccountSavings      AccountType = "savings"
	AccountChecking     AccountType = "checking"
	AccountCurrent      AccountType = "current"
	AccountFixedDeposit AccountType = "fixed_deposit"
)

// IsValid reports whether t is a known account type
func (t AccountType) IsValid() bool {
	switch t {
	case AccountSavings, AccountChecking, AccountCurrent, AccountFixedDeposit:
		return true
	}
	return false
}

// AccountStatus is the lifecycle status of a bank account
type AccountStatus string

const (
	AccountActive  AccountStatus = "active"
	AccountDormant AccountStatus = "dormant"
	AccountClosed  AccountStatus = "closed"
)

// IsValid reports whether s is a known status
func (s AccountStatus) IsValid() bool {
	return s == AccountActive || s == AccountDormant || s == AccountClosed
}

const (
	fieldTransactions derived.Field = "transactions"
	fieldBalance      derived.Field = "balance"
)

var accountGraph = derived.MustGraph(
	derived.Rule[Account]{
		Target:    fieldBalance,
		DependsOn: []derived.Field{fieldTransactions},
		Compute: func(a *Account) {
			a.balance = ComputeBalance(a.Currency, a.transactions).Value
		},
	},
)

// Account is a customer bank account. Its balance is derived from its transactions.
type Account struct {
	ID        uuid.UUID     `json:"id"`
	Number    string        `json:"account_number"`
	Type      AccountType   `json:"account_type"`
	Currency  string        `json:"currency"`
	Status    AccountStatus `json:"status"`
	OwnerID   uuid.UUID     `json:"owner_id"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`

	transactions []Transaction
	balance      decimal.Decimal
	dirty        derived.Dirty
}

// NewAccount creates an active account without transactions
func NewAccount(number string, accountType AccountType, currency string, ownerID uuid.UUID) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:        uuid.New(),
		Number:    number,
		Type:      accountType,
		Currency:  currency,
		Status:    AccountActive,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
		balance:   decimal.Zero,
	}
}

// Validate checks the account's own fields
func (a *Account) Validate() error {
	if !a.Type.IsValid() {
		return NewValidationError("account_type", fmt.Sprintf("unknown account type %q", a.Type))
	}
	if !a.Status.IsValid() {
		return NewValidationError("status", fmt.Sprintf("unknown status %q", a.Status))
	}
	if len(a.Currency) != 3 {
		return NewValidationError("currency", "must be a 3 letter ISO 4217 code")
	}
	if a.OwnerID == uuid.Nil {
		return NewValidationError("owner_id", "is required")
	}
	return nil
}

// Transactions returns the postings in insertion order
func (a *Account) Transactions() []Transaction {
	out := make([]Transaction, len(a.transactions))
	copy(out, a.transactions)
	return out
}

// LoadTransactions replaces the postings, used when reading from storage
func (a *Account) LoadTransactions(txns []Transaction) {
	a.transactions = append([]Transaction(nil), txns...)
	accountGraph.Touch(&a.dirty, fieldTransactions)
}

// Post appends a transaction after validating it against the account
func (a *Account) Post(t Transaction) error {
	if a.Status == AccountClosed {
		return NewValidationError("account_id", "account is closed")
	}
	if !t.Type.IsValid() {
		return NewValidationError("type", fmt.Sprintf("unknown transaction type %q", t.Type))
	}
	if !t.Amount.IsPositive() {
		return NewValidationError("amount", "must be positive")
	}
	if t.Amount.Currency != a.Currency {
		return fmt.Errorf("%w: account is %s, transaction is %s", ErrCurrencyMismatch, a.Currency, t.Amount.Currency)
	}
	t.AccountID = a.ID
	a.transactions = append(a.transactions, t)
	a.UpdatedAt = time.Now().UTC()
	accountGraph.Touch(&a.dirty, fieldTransactions)
	return nil
}

// Balance is credits minus debits over all transactions
func (a *Account) Balance() Money {
	accountGraph.Resolve(&a.dirty, a, fieldBalance)
	return NewMoney(a.balance, a.Currency)
}

// MarshalJSON includes the derived balance and the transactions
func (a *Account) MarshalJSON() ([]byte, error) {
	type plain Account
	return json.Marshal(struct {
		*plain
		Balance      Money         `json:"balance"`
		Transactions []Transaction `json:"transactions"`
	}{(*plain)(a), a.Balance(), a.Transactions()})
}
