package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/google/uuid"
)

// CreateTicketRequest opens a support ticket. PartnerID falls back to the
// session's default partner.
type CreateTicketRequest struct {
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	PartnerID   uuid.UUID `json:"partner_id"`
	Priority    int       `json:"priority"`
}

// CreateTicket opens a ticket assigned to the acting user
func (s *Service) CreateTicket(ctx context.Context, sess models.Session, req CreateTicketRequest) (*models.Ticket, error) {
	partnerID, ok := partnerOrDefault(sess, req.PartnerID)
	if !ok {
		return nil, models.NewValidationError("partner_id", "is required")
	}
	now := s.now()
	t := &models.Ticket{
		ID:          uuid.New(),
		Subject:     strings.TrimSpace(req.Subject),
		Description: req.Description,
		PartnerID:   partnerID,
		State:       models.TicketNew,
		Priority:    req.Priority,
		AssigneeID:  sess.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.requirePartner(ctx, "partner_id", partnerID); err != nil {
			return err
		}
		return s.store.CreateTicket(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("ticket_id", t.ID).Infof("Ticket opened for partner %s: %s", partnerID, t.Subject)
	return t, nil
}

// UpdateTicketState moves a ticket to another state. Closed tickets can only be reopened as new.
func (s *Service) UpdateTicketState(ctx context.Context, sess models.Session, id uuid.UUID, state models.TicketState) (*models.Ticket, error) {
	if !state.IsValid() {
		return nil, models.NewValidationError("state", fmt.Sprintf("unknown state %q", state))
	}

	var t *models.Ticket
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		t, err = s.store.GetTicket(ctx, id)
		if err != nil {
			return err
		}
		if t.State == state {
			return nil
		}
		if !t.State.IsOpen() && state != models.TicketNew {
			return models.NewValidationError("state", fmt.Sprintf("ticket is %s", t.State))
		}
		t.State = state
		if sess.UserID != "" {
			t.AssigneeID = sess.UserID
		}
		t.UpdatedAt = s.now()
		return s.store.UpdateTicket(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("ticket_id", t.ID).Infof("Ticket %s", t.State)
	return t, nil
}

// GetTicket returns a ticket
func (s *Service) GetTicket(ctx context.Context, sess models.Session, id uuid.UUID) (*models.Ticket, error) {
	return s.store.GetTicket(ctx, id)
}
