package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/Dan9191/retail-banking/internal/repository"
	"github.com/Dan9191/retail-banking/internal/utils"
	"github.com/google/uuid"
)

// CreateCardRequest issues a card. HolderID falls back to the session's default
// partner; AccountID is linked automatically when the holder owns exactly one
// account. A missing Number is generated and a missing ExpirationDate defaults
// to utils.CardValidityYears ahead.
type CreateCardRequest struct {
	Number         string          `json:"number"`
	Type           models.CardType `json:"card_type"`
	ExpirationDate *time.Time      `json:"expiration_date"`
	AccountID      uuid.UUID       `json:"account_id"`
	HolderID       uuid.UUID       `json:"holder_id"`
	Active         *bool           `json:"is_active"`
}

// IssuedCard is a new card together with the secrets shown to the caller once
type IssuedCard struct {
	Card   *models.Card `json:"card"`
	Number string       `json:"full_number"`
	CVV    string       `json:"cvv"`
}

// CreateCard issues a card for a holder and links it to an account
func (s *Service) CreateCard(ctx context.Context, sess models.Session, req CreateCardRequest) (*IssuedCard, error) {
	holderID, ok := partnerOrDefault(sess, req.HolderID)
	if !ok {
		return nil, models.NewValidationError("holder_id", "is required")
	}
	cardType := req.Type
	if cardType == "" {
		cardType = models.CardDebit
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	number := strings.ReplaceAll(strings.TrimSpace(req.Number), " ", "")
	if number != "" && !utils.LuhnValid(number) {
		return nil, models.NewValidationError("number", "is not a valid card number")
	}

	var issued *IssuedCard
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		holder, err := s.requirePartner(ctx, "holder_id", holderID)
		if err != nil {
			return err
		}
		accountID, err := s.resolveCardAccount(ctx, holder.ID, req.AccountID)
		if err != nil {
			return err
		}

		now := s.now()
		card := &models.Card{
			ID:        uuid.New(),
			Type:      cardType,
			AccountID: accountID,
			Active:    active,
			CreatedAt: now,
		}
		card.SetHolder(holder)
		if req.ExpirationDate != nil {
			card.ExpirationDate = req.ExpirationDate.UTC()
		} else {
			card.ExpirationDate = utils.DefaultExpiry(now)
		}
		if err := card.Validate(s.today()); err != nil {
			return err
		}

		if number == "" {
			if number, err = utils.GenerateCardNumber(utils.DefaultCardPrefix, utils.DefaultCardLength); err != nil {
				return fmt.Errorf("failed to generate card number: %w", err)
			}
		}
		cvv, err := utils.GenerateCVV()
		if err != nil {
			return err
		}
		if card.CVVHash, err = utils.HashCVV(cvv); err != nil {
			return err
		}
		if card.NumberCipher, err = utils.Encrypt(number, s.config.EncryptionKey); err != nil {
			return fmt.Errorf("failed to encrypt card number: %w", err)
		}
		card.Number = number
		card.NumberHMAC = utils.GenerateHMAC(number, s.config.HMACSecret)
		card.MaskedNumber = utils.MaskCardNumber(number)

		if err := s.store.CreateCard(ctx, card); err != nil {
			return err
		}
		issued = &IssuedCard{Card: card, Number: number, CVV: cvv}
		return nil
	})
	if err != nil {
		return nil, err
	}

	card := issued.Card
	s.log.WithField("card_id", card.ID).Infof("Card %s issued to %s on account %s", card.MaskedNumber, card.CardholderName(), card.AccountID)
	return issued, nil
}

// resolveCardAccount returns the explicit account after checking it belongs to
// the holder, or the holder's only account. Zero or several accounts leave it unset.
func (s *Service) resolveCardAccount(ctx context.Context, holderID, accountID uuid.UUID) (uuid.UUID, error) {
	if accountID != uuid.Nil {
		account, err := s.store.GetAccount(ctx, accountID)
		if errors.Is(err, models.ErrNotFound) {
			return uuid.Nil, models.NewValidationError("account_id", fmt.Sprintf("account %s does not exist", accountID))
		}
		if err != nil {
			return uuid.Nil, err
		}
		if account.OwnerID != holderID {
			return uuid.Nil, models.NewValidationError("account_id", "account does not belong to the card holder")
		}
		return account.ID, nil
	}

	accounts, err := s.store.SearchAccounts(ctx, repository.Eq("owner_id", holderID))
	if err != nil {
		return uuid.Nil, err
	}
	if len(accounts) != 1 {
		s.log.Debugf("Partner %s owns %d accounts, card account not linked", holderID, len(accounts))
		return uuid.Nil, nil
	}
	return accounts[0].ID, nil
}

// GetCard returns a card without its secrets
func (s *Service) GetCard(ctx context.Context, sess models.Session, id uuid.UUID) (*models.Card, error) {
	return s.store.GetCard(ctx, id)
}
