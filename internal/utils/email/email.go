package email

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/Dan9191/retail-banking/internal/config"
	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   func(e *email.Email) error
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	s := &Sender{
		cfg:    cfg,
		logger: logger,
	}
	s.send = s.sendSMTP
	return s
}

func (s *Sender) sendSMTP(e *email.Email) error {
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}
	return e.Send(addr, auth)
}

func (s *Sender) deliver(to, subject, body string) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body + "\nBest regards,\nBank Service")

	if err := s.send(e); err != nil {
		s.logger.Errorf("Failed to send email to %s: %v", to, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", to, subject)
	return nil
}

// SendDisbursementNotice tells the applicant that the loan has been disbursed
func (s *Sender) SendDisbursementNotice(to, name string, loan *models.Loan) error {
	return s.deliver(to, "Loan Disbursement Notification", disbursementBody(name, loan))
}

// SendPaymentReminder sends a reminder for the next installment of a loan
func (s *Sender) SendPaymentReminder(to, name string, loan *models.Loan) error {
	return s.deliver(to, "Upcoming Loan Payment Reminder", reminderBody(name, loan))
}

func disbursementBody(name string, loan *models.Loan) string {
	body := fmt.Sprintf("Dear %s,\n\n", name)
	body += fmt.Sprintf(
		"Your loan %s of %s has been disbursed.\n"+
			"Interest rate: %s%%\n"+
			"Term: %d months\n",
		loan.LoanAccountNumber, loan.Principal(), loan.InterestRate().StringFixed(2), loan.TermMonths(),
	)
	if schedule := loan.Schedule(); !schedule.IsEmpty() {
		body += fmt.Sprintf("Monthly payment: %s\nTotal repayable: %s\n", schedule.Monthly, schedule.Total)
	}
	if loan.RepaymentStartDate != nil {
		body += fmt.Sprintf("First payment date: %s\n", loan.RepaymentStartDate.Format(time.DateOnly))
	}
	return body
}

func reminderBody(name string, loan *models.Loan) string {
	amount := loan.EMIInstallmentAmount
	if amount.IsZero() {
		amount = loan.Schedule().Monthly
	}
	due := "soon"
	if loan.NextDueDate != nil {
		due = "on " + loan.NextDueDate.Format(time.DateOnly)
	}
	return fmt.Sprintf(
		"Dear %s,\n\n"+
			"This is a reminder that your payment of %s for loan %s is due %s.\n"+
			"Please ensure sufficient funds are available in your account.\n",
		name, amount, loan.LoanAccountNumber, due,
	)
}
