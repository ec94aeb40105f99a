package repository

import (
	"context"

	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/google/uuid"
)

const cardColumns = `id, number_hmac, number_cipher, masked_number, cvv_hash, card_type, expiration_date,
	account_id, holder_id, holder_name, is_active, created_at`

var cardFilterColumns = map[string]bool{
	"holder_id":  true,
	"account_id": true,
	"is_active":  true,
}

// CreateCard inserts a card. A duplicate number fails with ErrUniquenessConflict.
func (r *Repository) CreateCard(ctx context.Context, c *models.Card) error {
	_, err := r.exec(ctx, `
		INSERT INTO cards (`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.NumberHMAC, c.NumberCipher, c.MaskedNumber, c.CVVHash, string(c.Type), c.ExpirationDate.UTC(),
		c.AccountID, c.HolderID, c.CardholderName(), c.Active, c.CreatedAt.UTC())
	if err != nil {
		return wrap("create card", err)
	}
	return nil
}

// GetCard retrieves a card by id
func (r *Repository) GetCard(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	row := r.queryRow(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)
	c, err := scanCard(row)
	if err != nil {
		return nil, wrap("card "+id.String(), err)
	}
	return c, nil
}

// CountCards counts the cards matching every filter
func (r *Repository) CountCards(ctx context.Context, filters ...Filter) (int, error) {
	return r.count(ctx, "cards", cardFilterColumns, filters)
}

func scanCard(s rowScanner) (*models.Card, error) {
	var (
		c        models.Card
		holderID uuid.UUID
		name     string
	)
	err := s.Scan(&c.ID, &c.NumberHMAC, &c.NumberCipher, &c.MaskedNumber, &c.CVVHash, &c.Type, &c.ExpirationDate,
		&c.AccountID, &holderID, &name, &c.Active, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.ExpirationDate = c.ExpirationDate.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	c.RestoreHolder(holderID, name)
	return &c, nil
}
