package models

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func txn(kind TransactionType, amount, currency string) Transaction {
	return Transaction{
		ID:     uuid.New(),
		Date:   time.Now(),
		Amount: NewMoney(decimal.RequireFromString(amount), currency),
		Type:   kind,
	}
}

func TestAccount_BalanceFollowsPostings(t *testing.T) {
	acc := NewAccount("ACC00001", AccountSavings, "ETB", uuid.New())

	for _, tr := range []Transaction{
		txn(TransactionCredit, "100", "ETB"),
		txn(TransactionCredit, "100", "ETB"),
		txn(TransactionDebit, "30", "ETB"),
	} {
		if err := acc.Post(tr); err != nil {
			t.Fatalf("failed to post: %v", err)
		}
	}

	if got := acc.Balance(); !got.Value.Equal(decimal.NewFromInt(170)) || got.Currency != "ETB" {
		t.Errorf("expected 170.00 ETB, got %s", got)
	}

	if err := acc.Post(txn(TransactionDebit, "70", "ETB")); err != nil {
		t.Fatalf("failed to post: %v", err)
	}
	if got := acc.Balance(); !got.Value.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected balance to follow the new posting, got %s", got)
	}
}

func TestAccount_EmptyBalanceIsZero(t *testing.T) {
	acc := NewAccount("ACC00002", AccountChecking, "USD", uuid.New())
	if got := acc.Balance(); !got.IsZero() || got.Currency != "USD" {
		t.Errorf("expected 0.00 USD, got %s", got)
	}
}

func TestAccount_PostRejects(t *testing.T) {
	closed := NewAccount("ACC00003", AccountSavings, "ETB", uuid.New())
	closed.Status = AccountClosed

	tests := []struct {
		name    string
		account *Account
		txn     Transaction
		want    error
	}{
		{
			name:    "zero amount",
			account: NewAccount("ACC00004", AccountSavings, "ETB", uuid.New()),
			txn:     txn(TransactionCredit, "0", "ETB"),
			want:    ErrValidation,
		},
		{
			name:    "unknown type",
			account: NewAccount("ACC00005", AccountSavings, "ETB", uuid.New()),
			txn:     txn("refund", "10", "ETB"),
			want:    ErrValidation,
		},
		{
			name:    "other currency",
			account: NewAccount("ACC00006", AccountSavings, "ETB", uuid.New()),
			txn:     txn(TransactionCredit, "10", "USD"),
			want:    ErrCurrencyMismatch,
		},
		{
			name:    "closed account",
			account: closed,
			txn:     txn(TransactionCredit, "10", "ETB"),
			want:    ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.account.Post(tt.txn)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if len(tt.account.Transactions()) != 0 {
				t.Error("rejected posting must not be recorded")
			}
		})
	}
}

func TestAccount_LoadTransactions(t *testing.T) {
	acc := NewAccount("ACC00007", AccountSavings, "ETB", uuid.New())
	acc.Balance()
	acc.LoadTransactions([]Transaction{txn(TransactionCredit, "42.50", "ETB")})
	if got := acc.Balance(); got.String() != "42.50 ETB" {
		t.Errorf("expected 42.50 ETB, got %s", got)
	}
}

func TestMoney_CurrencyMismatch(t *testing.T) {
	a := NewMoney(decimal.NewFromInt(1), "ETB")
	b := NewMoney(decimal.NewFromInt(1), "USD")
	if _, err := a.Add(b); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("expected currency mismatch, got %v", err)
	}
	sum, err := a.Add(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.String() != "2.00 ETB" {
		t.Errorf("expected 2.00 ETB, got %s", sum)
	}
}
