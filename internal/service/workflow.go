package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Submit moves a draft application to submitted
func (s *Service) Submit(ctx context.Context, sess models.Session, id uuid.UUID) (*models.LoanApplication, error) {
	return s.Transition(ctx, sess, id, models.TransitionSubmit)
}

// ScreenInitially moves an application to initial screening
func (s *Service) ScreenInitially(ctx context.Context, sess models.Session, id uuid.UUID) (*models.LoanApplication, error) {
	return s.Transition(ctx, sess, id, models.TransitionScreenInitially)
}

// AssessFinancials moves an application to financial assessment
func (s *Service) AssessFinancials(ctx context.Context, sess models.Session, id uuid.UUID) (*models.LoanApplication, error) {
	return s.Transition(ctx, sess, id, models.TransitionAssessFinancials)
}

// AssessCollateral moves an application to collateral assessment
func (s *Service) AssessCollateral(ctx context.Context, sess models.Session, id uuid.UUID) (*models.LoanApplication, error) {
	return s.Transition(ctx, sess, id, models.TransitionAssessCollateral)
}

// ScoreCredit moves an application to credit scoring
func (s *Service) ScoreCredit(ctx context.Context, sess models.Session, id uuid.UUID) (*models.LoanApplication, error) {
	return s.Transition(ctx, sess, id, models.TransitionScoreCredit)
}

// ApproveInternally moves an application to internal approvals
func (s *Service) ApproveInternally(ctx context.Context, sess models.Session, id uuid.UUID) (*models.LoanApplication, error) {
	return s.Transition(ctx, sess, id, models.TransitionApproveInternally)
}

// Approve moves an application to approved
func (s *Service) Approve(ctx context.Context, sess models.Session, id uuid.UUID) (*models.LoanApplication, error) {
	return s.Transition(ctx, sess, id, models.TransitionApprove)
}

// Sanction moves an application to sanctioned
func (s *Service) Sanction(ctx context.Context, sess models.Session, id uuid.UUID) (*models.LoanApplication, error) {
	return s.Transition(ctx, sess, id, models.TransitionSanction)
}

// Reject moves an application to rejected from any state
func (s *Service) Reject(ctx context.Context, sess models.Session, id uuid.UUID) (*models.LoanApplication, error) {
	return s.Transition(ctx, sess, id, models.TransitionReject)
}

// Cancel moves an application to cancelled from any state
func (s *Service) Cancel(ctx context.Context, sess models.Session, id uuid.UUID) (*models.LoanApplication, error) {
	return s.Transition(ctx, sess, id, models.TransitionCancel)
}

// Transition applies the named workflow action. Disbursement goes through
// Disburse; the created loan is dropped from the result.
func (s *Service) Transition(ctx context.Context, sess models.Session, id uuid.UUID, name models.TransitionName) (*models.LoanApplication, error) {
	t, err := models.LookupTransition(name)
	if err != nil {
		return nil, err
	}
	if t.Name == models.TransitionDisburse {
		app, _, err := s.Disburse(ctx, sess, id)
		return app, err
	}

	var (
		app  *models.LoanApplication
		from models.ApplicationState
	)
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		app, err = s.store.LockApplication(ctx, id)
		if err != nil {
			return err
		}
		from = app.State()
		if t.IsSideExit() && from == t.To {
			return nil
		}
		if err := s.checkGuards(app, t); err != nil {
			return err
		}
		return s.applyTransition(ctx, app, t)
	})
	if err != nil {
		return nil, err
	}

	s.workflowLog(app, sess).Infof("Loan application %s: %s (%s -> %s)", app.Number, t.Name, from, app.State())
	return app, nil
}

// Disburse materialises the loan of an application and marks it disbursed.
// Both writes commit together; a concurrent second call fails with
// models.ErrAlreadyDisbursed.
func (s *Service) Disburse(ctx context.Context, sess models.Session, id uuid.UUID) (*models.LoanApplication, *models.Loan, error) {
	t, err := models.LookupTransition(models.TransitionDisburse)
	if err != nil {
		return nil, nil, err
	}

	var (
		app  *models.LoanApplication
		loan *models.Loan
	)
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		app, err = s.store.LockApplication(ctx, id)
		if err != nil {
			return err
		}
		if app.State() == models.StateDisbursed {
			return fmt.Errorf("application %s: %w", app.Number, models.ErrAlreadyDisbursed)
		}
		if err := s.checkGuards(app, t); err != nil {
			return err
		}
		if err := app.CheckConditions(); err != nil {
			return err
		}

		loan = app.NewLoan()
		if err := s.store.CreateLoan(ctx, loan); err != nil {
			if errors.Is(err, models.ErrUniquenessConflict) {
				return fmt.Errorf("application %s: %w", app.Number, models.ErrAlreadyDisbursed)
			}
			return err
		}
		return s.applyTransition(ctx, app, t)
	})
	if err != nil {
		return nil, nil, err
	}

	s.workflowLog(app, sess).Infof("Loan application %s disbursed as loan %s: %s", app.Number, loan.ID, loan.Principal())
	s.afterDisbursement(ctx, app, loan)
	return app, loan, nil
}

// checkGuards enforces the predecessor state and stage data of t when strict
// guards are configured. Reject and cancel are never guarded. In permissive
// mode a disbursed application is the only state a forward action is refused from.
func (s *Service) checkGuards(app *models.LoanApplication, t models.Transition) error {
	if t.IsSideExit() {
		return nil
	}
	if app.State() == models.StateDisbursed {
		return fmt.Errorf("application %s: %w", app.Number, models.ErrAlreadyDisbursed)
	}
	if !s.strictGuards() {
		return nil
	}
	if app.State() != t.From {
		return models.NewValidationError("state", fmt.Sprintf("%s requires state %s, application is %s", t.Name, t.From, app.State()))
	}
	return app.CheckStage(t)
}

// applyTransition writes the new state with a compare-and-set on state and version
func (s *Service) applyTransition(ctx context.Context, app *models.LoanApplication, t models.Transition) error {
	version := app.Version
	from := app.Apply(t)
	if err := s.store.UpdateApplicationState(ctx, app.ID, from, version, t.To); err != nil {
		return err
	}
	app.Version = version + 1
	return nil
}

// afterDisbursement publishes the event and emails the applicant. Failures are
// logged; the disbursement is already committed.
func (s *Service) afterDisbursement(ctx context.Context, app *models.LoanApplication, loan *models.Loan) {
	log := s.log.WithField("application_id", app.ID)

	if s.events != nil {
		if err := s.events.PublishLoanDisbursed(context.WithoutCancel(ctx), app, loan); err != nil {
			log.Warnf("Failed to publish loan disbursed event: %v", err)
		}
	}

	if s.notifier == nil {
		return
	}
	partner, err := s.store.GetPartner(ctx, app.ApplicantID)
	if err != nil {
		log.Warnf("Failed to load applicant for disbursement notice: %v", err)
		return
	}
	if partner.Email == "" {
		log.Debugf("Applicant %s has no email, disbursement notice skipped", partner.ID)
		return
	}
	if err := s.notifier.SendDisbursementNotice(partner.Email, partner.DisplayName(), loan); err != nil {
		log.Warnf("Failed to send disbursement notice: %v", err)
	}
}

func (s *Service) workflowLog(app *models.LoanApplication, sess models.Session) *logrus.Entry {
	return s.log.WithFields(logrus.Fields{
		"application_id": app.ID,
		"user_id":        sess.UserID,
	})
}
