package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dan9191/retail-banking/internal/derived"
	"github.com/google/uuid"
)

// CardType is the product of a payment card
type CardType string

const (
	CardCredit  CardType = "credit"
	CardDebit   CardType = "debit"
	CardPrepaid CardType = "prepaid"
)

// IsValid reports whether t is a known card type
func (t CardType) IsValid() bool {
	return t == CardCredit || t == CardDebit || t == CardPrepaid
}

const (
	fieldHolder         derived.Field = "holder"
	fieldCardholderName derived.Field = "cardholder_name"
)

var cardGraph = derived.MustGraph(
	derived.Rule[Card]{
		Target:    fieldCardholderName,
		DependsOn: []derived.Field{fieldHolder},
		Compute:   func(c *Card) { c.cardholderName = c.holderName },
	},
)

// Card represents a bank card linked to an account and a holder
type Card struct {
	ID             uuid.UUID `json:"id"`
	Number         string    `json:"-"`            // Plaintext, never serialized
	MaskedNumber   string    `json:"number"`       // Display form
	NumberHMAC     string    `json:"-"`            // Uniqueness key
	NumberCipher   string    `json:"-"`            // Encrypted at rest
	CVVHash        string    `json:"-"`            // bcrypt
	Type           CardType  `json:"card_type"`
	ExpirationDate time.Time `json:"expiration_date"`
	AccountID      uuid.UUID `json:"account_id"`
	HolderID       uuid.UUID `json:"holder_id"`
	Active         bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`

	holderName     string
	cardholderName string
	dirty          derived.Dirty
}

// SetHolder links the card to p; the cardholder name follows the holder
func (c *Card) SetHolder(p *Partner) {
	c.HolderID = p.ID
	c.holderName = p.DisplayName()
	cardGraph.Touch(&c.dirty, fieldHolder)
}

// RestoreHolder sets the holder from stored values
func (c *Card) RestoreHolder(id uuid.UUID, name string) {
	c.HolderID = id
	c.holderName = name
	cardGraph.Touch(&c.dirty, fieldHolder)
}

// CardholderName mirrors the holder's display name
func (c *Card) CardholderName() string {
	cardGraph.Resolve(&c.dirty, c, fieldCardholderName)
	return c.cardholderName
}

// Validate checks the fields required to persist the card
func (c *Card) Validate(today time.Time) error {
	if !c.Type.IsValid() {
		return NewValidationError("card_type", fmt.Sprintf("unknown card type %q", c.Type))
	}
	if c.HolderID == uuid.Nil {
		return NewValidationError("holder_id", "is required")
	}
	if c.AccountID == uuid.Nil {
		return NewValidationError("account_id", "is required")
	}
	if c.ExpirationDate.IsZero() || c.ExpirationDate.Before(today) {
		return NewValidationError("expiration_date", "must be in the future")
	}
	return nil
}

// MarshalJSON includes the derived cardholder name
func (c *Card) MarshalJSON() ([]byte, error) {
	type plain Card
	return json.Marshal(struct {
		*plain
		CardholderName string `json:"cardholder_name"`
	}{(*plain)(c), c.CardholderName()})
}
