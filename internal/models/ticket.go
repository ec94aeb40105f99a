package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TicketState is the stage of a support ticket
type TicketState string

const (
	TicketNew        TicketState = "new"
	TicketInProgress TicketState = "in_progress"
	TicketDone       TicketState = "done"
	TicketCancelled  TicketState = "cancelled"
)

func (s TicketState) IsValid() bool {
	switch s {
	case TicketNew, TicketInProgress, TicketDone, TicketCancelled:
		return true
	}
	return false
}

// IsOpen reports whether the ticket still needs work
func (s TicketState) IsOpen() bool {
	return s == TicketNew || s == TicketInProgress
}

// Ticket priorities, from lowest to highest
const (
	PriorityLow = iota
	PriorityMedium
	PriorityHigh
	PriorityUrgent
)

// Ticket is a customer support request
type Ticket struct {
	ID          uuid.UUID   `json:"id"`
	Subject     string      `json:"subject"`
	Description string      `json:"description,omitempty"`
	PartnerID   uuid.UUID   `json:"partner_id"`
	State       TicketState `json:"state"`
	Priority    int         `json:"priority"`
	AssigneeID  string      `json:"assignee_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (t *Ticket) Validate() error {
	if strings.TrimSpace(t.Subject) == "" {
		return NewValidationError("subject", "is required")
	}
	if t.PartnerID == uuid.Nil {
		return NewValidationError("partner_id", "is required")
	}
	if !t.State.IsValid() {
		return NewValidationError("state", fmt.Sprintf("unknown state %q", t.State))
	}
	if t.Priority < PriorityLow || t.Priority > PriorityUrgent {
		return NewValidationError("priority", "must be between 0 and 3")
	}
	return nil
}
