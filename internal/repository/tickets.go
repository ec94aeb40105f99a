package repository

import (
	"context"
	"fmt"

	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/google/uuid"
)

const ticketColumns = `id, subject, description, partner_id, state, priority, assignee_id, created_at, updated_at`

var ticketFilterColumns = map[string]bool{
	"partner_id":  true,
	"state":       true,
	"assignee_id": true,
	"priority":    true,
}

// CreateTicket inserts a support ticket
func (r *Repository) CreateTicket(ctx context.Context, t *models.Ticket) error {
	_, err := r.exec(ctx, `
		INSERT INTO tickets (`+ticketColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Subject, t.Description, t.PartnerID, string(t.State), t.Priority, t.AssigneeID,
		t.CreatedAt.UTC(), t.UpdatedAt.UTC())
	if err != nil {
		return wrap("create ticket", err)
	}
	return nil
}

// GetTicket retrieves a ticket by id
func (r *Repository) GetTicket(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	var t models.Ticket
	err := r.queryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id).
		Scan(&t.ID, &t.Subject, &t.Description, &t.PartnerID, &t.State, &t.Priority, &t.AssigneeID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, wrap("ticket "+id.String(), err)
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

// UpdateTicket writes the state, priority and assignee of a ticket
func (r *Repository) UpdateTicket(ctx context.Context, t *models.Ticket) error {
	res, err := r.exec(ctx, `
		UPDATE tickets SET state = ?, priority = ?, assignee_id = ?, updated_at = ?
		WHERE id = ?`,
		string(t.State), t.Priority, t.AssigneeID, t.UpdatedAt.UTC(), t.ID)
	if err != nil {
		return wrap("update ticket", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("ticket %s: %w", t.ID, models.ErrNotFound)
	}
	return nil
}

// CountTickets counts the tickets matching every filter
func (r *Repository) CountTickets(ctx context.Context, filters ...Filter) (int, error) {
	return r.count(ctx, "tickets", ticketFilterColumns, filters)
}
