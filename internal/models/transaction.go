package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a posting
type TransactionType string

const (
	TransactionDebit  TransactionType = "debit"
	TransactionCredit TransactionType = "credit"
)

// IsValid reports whether t is debit or credit
func (t TransactionType) IsValid() bool {
	return t == TransactionDebit || t == TransactionCredit
}

// Transaction is an append-only posting on an account. Amount is a positive magnitude.
type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	AccountID   uuid.UUID       `json:"account_id"`
	Date        time.Time       `json:"date"`
	Amount      Money           `json:"amount"`
	Type        TransactionType `json:"type"`
	Description string          `json:"description"`
}

// Signed is the amount as it affects the balance: credits add, debits subtract
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == TransactionDebit {
		return t.Amount.Value.Neg()
	}
	return t.Amount.Value
}

// ComputeBalance sums the signed amounts of txns in currency
func ComputeBalance(currency string, txns []Transaction) Money {
	total := decimal.Zero
	for _, t := range txns {
		total = total.Add(t.Signed())
	}
	return NewMoney(total, currency)
}
