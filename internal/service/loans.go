package service

import (
	"context"
	"time"

	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/Dan9191/retail-banking/internal/repository"
	"github.com/google/uuid"
)

// GetLoan returns a loan with its repayment schedule
func (s *Service) GetLoan(ctx context.Context, sess models.Session, id uuid.UUID) (*models.Loan, error) {
	return s.store.GetLoan(ctx, id)
}

// ListLoans returns the loans of a partner, or of the session's default partner
func (s *Service) ListLoans(ctx context.Context, sess models.Session, ownerID uuid.UUID) ([]*models.Loan, error) {
	ownerID, ok := partnerOrDefault(sess, ownerID)
	if !ok {
		return nil, models.NewValidationError("owner_id", "is required")
	}
	return s.store.SearchLoans(ctx, repository.Eq("owner_id", ownerID))
}

// LoansDue returns the active loans whose next due date falls in [from, to]
func (s *Service) LoansDue(ctx context.Context, from, to time.Time) ([]*models.Loan, error) {
	return s.store.SearchLoans(ctx,
		repository.Eq("status", string(models.LoanActive)),
		repository.Filter{Column: "next_due_date", Op: repository.OpGte, Value: from.UTC()},
		repository.Filter{Column: "next_due_date", Op: repository.OpLte, Value: to.UTC()},
	)
}
