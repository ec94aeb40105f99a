package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// mapError translates driver constraint errors into the domain error kinds
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return fmt.Errorf("%w: %s", models.ErrUniquenessConflict, pqErr.Constraint)
		case pqForeignKeyViolation:
			return fmt.Errorf("%w: %s", models.ErrReferentialRestriction, pqErr.Constraint)
		}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %s", models.ErrUniquenessConflict, liteErr.Error())
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %s", models.ErrReferentialRestriction, liteErr.Error())
		}
	}
	return err
}

// wrap maps err and adds the operation that failed
func wrap(op string, err error) error {
	mapped := mapError(err)
	if errors.Is(mapped, models.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, mapped)
	}
	return fmt.Errorf("failed to %s: %w", op, mapped)
}
