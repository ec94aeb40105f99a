package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Sequence codes used by the service
const (
	SequenceAccount     = "bank.account"
	SequenceApplication = "loan.application"
	SequencePartner     = "partner.cif"
)

// SequencePlaceholder is returned when no sequence is configured for a code
const SequencePlaceholder = "New"

// NextSequence returns the next formatted number for code, e.g. ACC00000042.
// The increment joins the transaction in ctx, if any.
func (r *Repository) NextSequence(ctx context.Context, code string) (string, error) {
	var (
		prefix  string
		padding int
		value   int64
	)
	err := r.queryRow(ctx, `
		UPDATE sequences SET next_value = next_value + 1
		WHERE code = ?
		RETURNING prefix, padding, next_value - 1`, code).Scan(&prefix, &padding, &value)
	if errors.Is(err, sql.ErrNoRows) {
		return SequencePlaceholder, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to advance sequence %s: %w", code, err)
	}
	return fmt.Sprintf("%s%0*d", prefix, padding, value), nil
}

// ConfigureSequence creates or replaces the sequence for code
func (r *Repository) ConfigureSequence(ctx context.Context, code, prefix string, padding int, next int64) error {
	_, err := r.exec(ctx, `
		INSERT INTO sequences (code, prefix, padding, next_value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (code) DO UPDATE SET prefix = excluded.prefix, padding = excluded.padding, next_value = excluded.next_value`,
		code, prefix, padding, next)
	if err != nil {
		return fmt.Errorf("failed to configure sequence %s: %w", code, err)
	}
	return nil
}
