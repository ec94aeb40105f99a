package models

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned when a required field is missing or malformed
	ErrValidation = errors.New("validation failed")

	// ErrPreconditionNotMet is returned when a loan is disbursed with unmet conditions precedent
	ErrPreconditionNotMet = errors.New("conditions precedent not met")

	// ErrUniquenessConflict is returned for a duplicate account, application or card number
	ErrUniquenessConflict = errors.New("uniqueness conflict")

	// ErrReferentialRestriction is returned when deleting an entity that is still referenced
	ErrReferentialRestriction = errors.New("entity is still referenced")

	// ErrConcurrentStateConflict is returned when another transaction changed the state first
	ErrConcurrentStateConflict = errors.New("concurrent state conflict")

	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("not found")

	// ErrCurrencyMismatch is returned when amounts of different currencies are combined
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrAlreadyDisbursed is the conflict observed by the losing disbursement
	ErrAlreadyDisbursed = fmt.Errorf("application already disbursed: %w", ErrConcurrentStateConflict)
)

// ValidationError describes the offending field
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError builds a ValidationError for field
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) hold for every ValidationError
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
