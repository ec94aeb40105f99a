package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is a decimal amount tagged with an ISO 4217 currency code.
// Amounts of different currencies are never combined without conversion.
type Money struct {
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency"`
}

// NewMoney builds an amount in the given currency
func NewMoney(value decimal.Decimal, currency string) Money {
	return Money{Value: value, Currency: currency}
}

// ZeroMoney is a zero amount in the given currency
func ZeroMoney(currency string) Money {
	return Money{Value: decimal.Zero, Currency: currency}
}

// Add returns m + o
func (m Money) Add(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{Value: m.Value.Add(o.Value), Currency: m.Currency}, nil
}

// Sub returns m - o
func (m Money) Sub(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{Value: m.Value.Sub(o.Value), Currency: m.Currency}, nil
}

// Cmp compares two amounts of the same currency
func (m Money) Cmp(o Money) (int, error) {
	if err := m.sameCurrency(o); err != nil {
		return 0, err
	}
	return m.Value.Cmp(o.Value), nil
}

// Neg returns -m
func (m Money) Neg() Money {
	return Money{Value: m.Value.Neg(), Currency: m.Currency}
}

// MulDecimal scales m by f
func (m Money) MulDecimal(f decimal.Decimal) Money {
	return Money{Value: m.Value.Mul(f), Currency: m.Currency}
}

func (m Money) IsZero() bool     { return m.Value.IsZero() }
func (m Money) IsPositive() bool { return m.Value.IsPositive() }

// String formats the amount with two decimals, e.g. "1234.50 ETB"
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Value.StringFixed(2), m.Currency)
}

func (m Money) sameCurrency(o Money) error {
	if m.Currency != o.Currency {
		return fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, m.Currency, o.Currency)
	}
	return nil
}
