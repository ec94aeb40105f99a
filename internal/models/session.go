package models

import "github.com/google/uuid"

// Session is the acting user and the defaults supplied by the caller's context.
// It is passed explicitly to every service entry point.
type Session struct {
	UserID           string    `json:"user_id"`
	DefaultPartnerID uuid.UUID `json:"default_partner_id,omitempty"`
}

// DefaultPartner returns the default partner, if any
func (s Session) DefaultPartner() (uuid.UUID, bool) {
	return s.DefaultPartnerID, s.DefaultPartnerID != uuid.Nil
}
