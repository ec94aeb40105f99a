package email

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Dan9191/retail-banking/internal/config"
	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func newTestSender(send func(e *email.Email) error) *Sender {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	s := NewSender(&config.Config{SenderEmail: "noreply@bank.local"}, logger)
	s.send = send
	return s
}

func testLoan() *models.Loan {
	start := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	loan := &models.Loan{
		LoanAccountNumber:  "LN-0001",
		RepaymentStartDate: &start,
		NextDueDate:        &start,
	}
	loan.SetTerms(models.NewMoney(decimal.NewFromInt(12000), "RUB"), decimal.NewFromInt(10), 12)
	return loan
}

func TestSendDisbursementNotice(t *testing.T) {
	var sent *email.Email
	s := newTestSender(func(e *email.Email) error {
		sent = e
		return nil
	})

	if err := s.SendDisbursementNotice("anna@example.com", "Anna", testLoan()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent == nil {
		t.Fatal("expected an email to be sent")
	}
	if sent.From != "noreply@bank.local" || len(sent.To) != 1 || sent.To[0] != "anna@example.com" {
		t.Errorf("unexpected envelope from=%s to=%v", sent.From, sent.To)
	}

	body := string(sent.Text)
	for _, want := range []string{
		"Dear Anna,",
		"Your loan LN-0001 of 12000.00 RUB has been disbursed.",
		"Interest rate: 10.00%",
		"Term: 12 months",
		"Monthly payment: 1100.00 RUB",
		"Total repayable: 13200.00 RUB",
		"First payment date: 2026-11-01",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected body to contain %q, got:\n%s", want, body)
		}
	}
}

func TestSendPaymentReminder(t *testing.T) {
	tests := []struct {
		name string
		emi  models.Money
		want string
	}{
		{"schedule installment", models.Money{}, "your payment of 1100.00 RUB for loan LN-0001 is due on 2026-11-01"},
		{"explicit installment", models.NewMoney(decimal.NewFromInt(1150), "RUB"), "your payment of 1150.00 RUB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body string
			s := newTestSender(func(e *email.Email) error {
				body = string(e.Text)
				return nil
			})
			loan := testLoan()
			loan.EMIInstallmentAmount = tt.emi
			if err := s.SendPaymentReminder("anna@example.com", "Anna", loan); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(body, tt.want) {
				t.Errorf("expected body to contain %q, got:\n%s", tt.want, body)
			}
		})
	}
}

func TestSend_Failure(t *testing.T) {
	s := newTestSender(func(e *email.Email) error {
		return errors.New("connection refused")
	})
	if err := s.SendPaymentReminder("anna@example.com", "Anna", testLoan()); err == nil {
		t.Error("expected error when SMTP delivery fails")
	}
}
