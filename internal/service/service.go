package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/retail-banking/internal/config"
	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/Dan9191/retail-banking/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Store is the record store the service works against
type Store interface {
	NextSequence(ctx context.Context, code string) (string, error)

	CreatePartner(ctx context.Context, p *models.Partner) error
	GetPartner(ctx context.Context, id uuid.UUID) (*models.Partner, error)
	DeletePartner(ctx context.Context, id uuid.UUID) error

	CreateAccount(ctx context.Context, a *models.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	LockAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	SearchAccounts(ctx context.Context, filters ...repository.Filter) ([]*models.Account, error)
	CountAccounts(ctx context.Context, filters ...repository.Filter) (int, error)
	UpdateAccountStatus(ctx context.Context, a *models.Account) error
	CreateTransaction(ctx context.Context, t *models.Transaction) error

	CreateCard(ctx context.Context, c *models.Card) error
	GetCard(ctx context.Context, id uuid.UUID) (*models.Card, error)
	CountCards(ctx context.Context, filters ...repository.Filter) (int, error)

	CreateApplication(ctx context.Context, a *models.LoanApplication) error
	GetApplication(ctx context.Context, id uuid.UUID) (*models.LoanApplication, error)
	LockApplication(ctx context.Context, id uuid.UUID) (*models.LoanApplication, error)
	SearchApplications(ctx context.Context, filters ...repository.Filter) ([]*models.LoanApplication, error)
	CountApplications(ctx context.Context, filters ...repository.Filter) (int, error)
	UpdateApplication(ctx context.Context, a *models.LoanApplication) error
	UpdateApplicationState(ctx context.Context, id uuid.UUID, from models.ApplicationState, version int64, to models.ApplicationState) error
	AddGuarantor(ctx context.Context, g *models.Guarantor) error
	AddCondition(ctx context.Context, c *models.ConditionPrecedent) error
	SetConditionMet(ctx context.Context, applicationID, conditionID uuid.UUID, met bool) error
	AddDocument(ctx context.Context, d *models.Document) error

	CreateLoan(ctx context.Context, l *models.Loan) error
	GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	SearchLoans(ctx context.Context, filters ...repository.Filter) ([]*models.Loan, error)
	CountLoans(ctx context.Context, filters ...repository.Filter) (int, error)

	CreateTicket(ctx context.Context, t *models.Ticket) error
	GetTicket(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	UpdateTicket(ctx context.Context, t *models.Ticket) error
	CountTickets(ctx context.Context, filters ...repository.Filter) (int, error)
}

// TxManager runs fn inside one store transaction carried by ctx
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Converter converts an amount into another currency at the rate of date
type Converter interface {
	Convert(ctx context.Context, amount models.Money, to string, date time.Time) (models.Money, error)
}

// Notifier sends customer notifications
type Notifier interface {
	SendDisbursementNotice(to, name string, loan *models.Loan) error
}

// EventPublisher publishes domain events to external systems
type EventPublisher interface {
	PublishLoanDisbursed(ctx context.Context, app *models.LoanApplication, loan *models.Loan) error
}

// Service handles business logic
type Service struct {
	store  Store
	tx     TxManager
	log    *logrus.Logger
	config *config.Config

	converter Converter
	notifier  Notifier
	events    EventPublisher
	now       func() time.Time
}

// Option configures optional collaborators of the service
type Option func(*Service)

// WithConverter enables postings in a currency other than the account's
func WithConverter(c Converter) Option {
	return func(s *Service) { s.converter = c }
}

// WithNotifier enables customer emails
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithEventPublisher enables domain events
func WithEventPublisher(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

// NewService initializes a new service
func NewService(store Store, tx TxManager, log *logrus.Logger, cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		store:  store,
		tx:     tx,
		log:    log,
		config: cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// strictGuards reports whether workflow transitions check their predecessor and stage data
func (s *Service) strictGuards() bool {
	return s.config.WorkflowGuards == config.GuardsStrict
}

// today is the current date at midnight UTC
func (s *Service) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// partnerOrDefault resolves an explicit partner id, falling back to the session default
func partnerOrDefault(sess models.Session, id uuid.UUID) (uuid.UUID, bool) {
	if id != uuid.Nil {
		return id, true
	}
	return sess.DefaultPartner()
}

// requirePartner loads a partner referenced by field, reporting a missing one as invalid input
func (s *Service) requirePartner(ctx context.Context, field string, id uuid.UUID) (*models.Partner, error) {
	p, err := s.store.GetPartner(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.NewValidationError(field, fmt.Sprintf("partner %s does not exist", id))
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
