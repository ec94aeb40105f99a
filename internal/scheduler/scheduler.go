// Package scheduler runs the periodic jobs of the bank: repayment reminders
// for active loans whose next instalment is due soon.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/Dan9191/retail-banking/internal/config"
	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Session used by the scheduler's own reads
var systemSession = models.Session{UserID: "scheduler"}

// LoanService is the part of the service the reminder job reads from
type LoanService interface {
	LoansDue(ctx context.Context, from, to time.Time) ([]*models.Loan, error)
	GetPartner(ctx context.Context, sess models.Session, id uuid.UUID) (*models.Partner, error)
}

// Reminder delivers a payment reminder to a loan owner
type Reminder interface {
	SendPaymentReminder(to, name string, loan *models.Loan) error
}

type Scheduler struct {
	cron      *cron.Cron
	loans     LoanService
	reminders Reminder
	window    int
	log       *logrus.Logger
	now       func() time.Time
}

// New registers the reminder job on cfg.ReminderCron
func New(loans LoanService, reminders Reminder, cfg *config.Config, log *logrus.Logger) (*Scheduler, error) {
	cronLog := cron.PrintfLogger(log)
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		loans:     loans,
		reminders: reminders,
		window:    cfg.ReminderWindowDays,
		log:       log,
		now:       time.Now,
	}
	if _, err := s.cron.AddFunc(cfg.ReminderCron, s.runReminders); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", cfg.ReminderCron, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.log.Infof("Scheduler started with %d job(s)", len(s.cron.Entries()))
	s.cron.Start()
}

// Stop stops scheduling and returns a context done when running jobs finish
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runReminders() {
	sent, err := s.SendReminders(context.Background())
	if err != nil {
		s.log.Errorf("Payment reminder job failed: %v", err)
		return
	}
	s.log.Infof("Payment reminder job sent %d reminder(s)", sent)
}

// SendReminders emails the owners of active loans due within the reminder
// window, today included. A failed reminder is logged and does not stop the run.
func (s *Scheduler) SendReminders(ctx context.Context) (int, error) {
	now := s.now().UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, s.window)

	loans, err := s.loans.LoansDue(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to list due loans: %w", err)
	}

	sent := 0
	for _, loan := range loans {
		log := s.log.WithField("loan_id", loan.ID)
		owner, err := s.loans.GetPartner(ctx, systemSession, loan.OwnerID)
		if err != nil {
			log.Warnf("Failed to load loan owner: %v", err)
			continue
		}
		if owner.Email == "" {
			log.Debugf("Owner %s has no email, reminder skipped", owner.ID)
			continue
		}
		if err := s.reminders.SendPaymentReminder(owner.Email, owner.DisplayName(), loan); err != nil {
			log.Warnf("Failed to send payment reminder: %v", err)
			continue
		}
		sent++
	}
	return sent, nil
}
