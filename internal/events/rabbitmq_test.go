package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func disbursedApplication() (*models.LoanApplication, *models.Loan) {
	app := models.NewLoanApplication("LA000042", uuid.New(), "RUB")
	app.SetRequestedAmount(decimal.NewFromInt(12000))
	app.InterestRate = decimal.RequireFromString("10.5")
	app.Tenure = 12
	app.LoanAccountNumber = "LN-0042"
	return app, app.NewLoan()
}

func TestNewLoanDisbursedEvent(t *testing.T) {
	app, loan := disbursedApplication()
	event := NewLoanDisbursedEvent(app, loan)

	if _, err := uuid.Parse(event.EventID); err != nil {
		t.Errorf("expected a uuid event id, got %q", event.EventID)
	}
	if event.ApplicationID != app.ID.String() || event.LoanID != loan.ID.String() {
		t.Errorf("unexpected ids %s / %s", event.ApplicationID, event.LoanID)
	}
	if event.OwnerID != app.ApplicantID.String() {
		t.Errorf("expected owner %s, got %s", app.ApplicantID, event.OwnerID)
	}
	if event.Principal.Value != "12000.00" || event.Principal.CurrencyCode != "RUB" {
		t.Errorf("unexpected principal %+v", event.Principal)
	}
	if event.InterestRate != "10.5" || event.TermMonths != 12 {
		t.Errorf("unexpected terms %s / %d", event.InterestRate, event.TermMonths)
	}
	if _, err := time.Parse(time.RFC3339, event.Timestamp); err != nil {
		t.Errorf("expected an RFC3339 timestamp, got %q", event.Timestamp)
	}

	body, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	var wire map[string]interface{}
	if err := json.Unmarshal(body, &wire); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	for _, key := range []string{"eventId", "loanId", "applicationId", "applicationNumber", "ownerId", "loanAccountNumber", "principal", "timestamp"} {
		if _, ok := wire[key]; !ok {
			t.Errorf("expected key %q in %s", key, body)
		}
	}
}
