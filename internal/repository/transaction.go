package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// txKey is the key type for storing transaction in context.
type txKey struct{}

// TxManager runs functions inside a database transaction
type TxManager struct {
	db     *sql.DB
	logger *logrus.Logger
}

// NewTxManager creates a new TxManager
func NewTxManager(db *sql.DB, logger *logrus.Logger) *TxManager {
	return &TxManager{db: db, logger: logger}
}

// WithTransaction executes fn within a database transaction.
// If fn returns an error, the transaction is rolled back, otherwise it is committed.
// The transaction is stored in the context passed to fn; repository calls made
// with that context join it. A context already carrying a transaction is reused.
func (tm *TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if getTx(ctx) != nil {
		return fn(ctx)
	}

	tx, err := tm.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			tm.logger.Errorf("failed to rollback transaction: %v", err)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapError(err))
	}
	return nil
}

// getTx retrieves the transaction from context, nil when there is none
func getTx(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return nil
}
