package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/Dan9191/retail-banking/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateAccountRequest opens an account. OwnerID falls back to the session's
// default partner and Currency to the configured default currency.
type CreateAccountRequest struct {
	OwnerID  uuid.UUID          `json:"owner_id"`
	Type     models.AccountType `json:"account_type"`
	Currency string             `json:"currency"`
}

// PostTransactionRequest appends a posting to an account. Amounts in another
// currency are converted at the rate of Date.
type PostTransactionRequest struct {
	Amount      decimal.Decimal        `json:"amount"`
	Currency    string                 `json:"currency"`
	Type        models.TransactionType `json:"type"`
	Date        time.Time              `json:"date"`
	Description string                 `json:"description"`
}

// CreateAccount opens an account numbered from the bank.account sequence
func (s *Service) CreateAccount(ctx context.Context, sess models.Session, req CreateAccountRequest) (*models.Account, error) {
	ownerID, ok := partnerOrDefault(sess, req.OwnerID)
	if !ok {
		return nil, models.NewValidationError("owner_id", "is required")
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.config.DefaultCurrency
	}
	accountType := req.Type
	if accountType == "" {
		accountType = models.AccountSavings
	}

	var account *models.Account
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.requirePartner(ctx, "owner_id", ownerID); err != nil {
			return err
		}
		number, err := s.store.NextSequence(ctx, repository.SequenceAccount)
		if err != nil {
			return err
		}
		account = models.NewAccount(number, accountType, currency, ownerID)
		if err := account.Validate(); err != nil {
			return err
		}
		return s.store.CreateAccount(ctx, account)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("account_id", account.ID).Infof("Account %s created for partner %s: %s", account.Number, ownerID, account.Currency)
	return account, nil
}

// GetAccount returns an account with its transactions and balance
func (s *Service) GetAccount(ctx context.Context, sess models.Session, id uuid.UUID) (*models.Account, error) {
	return s.store.GetAccount(ctx, id)
}

// ListAccounts returns the accounts of a partner, or of the session's default partner
func (s *Service) ListAccounts(ctx context.Context, sess models.Session, ownerID uuid.UUID) ([]*models.Account, error) {
	ownerID, ok := partnerOrDefault(sess, ownerID)
	if !ok {
		return nil, models.NewValidationError("owner_id", "is required")
	}
	return s.store.SearchAccounts(ctx, repository.Eq("owner_id", ownerID))
}

// PostTransaction appends a transaction to an account and returns the account
// with its recomputed balance
func (s *Service) PostTransaction(ctx context.Context, sess models.Session, accountID uuid.UUID, req PostTransactionRequest) (*models.Account, error) {
	date := req.Date
	if date.IsZero() {
		date = s.now()
	}

	var account *models.Account
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		account, err = s.store.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}

		currency := strings.ToUpper(strings.TrimSpace(req.Currency))
		if currency == "" {
			currency = account.Currency
		}
		amount := models.NewMoney(req.Amount, currency)
		description := req.Description
		if currency != account.Currency && req.Amount.IsPositive() {
			if s.converter == nil {
				return fmt.Errorf("%w: account is %s, transaction is %s", models.ErrCurrencyMismatch, account.Currency, currency)
			}
			converted, err := s.converter.Convert(ctx, amount, account.Currency, date)
			if err != nil {
				return fmt.Errorf("failed to convert amount: %w", err)
			}
			description = strings.TrimSpace(fmt.Sprintf("%s (%s)", description, amount))
			amount = converted
		}

		txn := models.Transaction{
			ID:          uuid.New(),
			AccountID:   account.ID,
			Date:        date.UTC(),
			Amount:      amount,
			Type:        req.Type,
			Description: description,
		}
		if err := account.Post(txn); err != nil {
			return err
		}
		return s.store.CreateTransaction(ctx, &txn)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("account_id", account.ID).Infof("Posted %s on %s, balance %s", req.Type, account.Number, account.Balance())
	return account, nil
}

// UpdateAccountStatus moves an account to active, dormant or closed. Closed accounts stay closed.
func (s *Service) UpdateAccountStatus(ctx context.Context, sess models.Session, id uuid.UUID, status models.AccountStatus) (*models.Account, error) {
	if !status.IsValid() {
		return nil, models.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}

	var account *models.Account
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		account, err = s.store.LockAccount(ctx, id)
		if err != nil {
			return err
		}
		if account.Status == status {
			return nil
		}
		if account.Status == models.AccountClosed {
			return models.NewValidationError("status", "account is closed")
		}
		account.Status = status
		account.UpdatedAt = s.now()
		return s.store.UpdateAccountStatus(ctx, account)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("account_id", account.ID).Infof("Account %s is %s", account.Number, account.Status)
	return account, nil
}
