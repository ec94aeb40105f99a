package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Dan9191/retail-banking/internal/config"
	"github.com/Dan9191/retail-banking/internal/middleware"
	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/Dan9191/retail-banking/internal/repository"
	"github.com/Dan9191/retail-banking/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const testSecret = "handler-test-secret"

type fakeRates struct {
	rate decimal.Decimal
	err  error
}

func (f fakeRates) GetKeyRate(ctx context.Context) (decimal.Decimal, error) {
	return f.rate, f.err
}

type testAPI struct {
	t      *testing.T
	server *httptest.Server
	token  string
}

func newTestAPI(t *testing.T, rates KeyRateSource) *testAPI {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "bank.db") +
		"?_txlock=immediate&_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL"
	db, dialect, err := repository.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	repo := repository.NewRepository(db, dialect)
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg := &config.Config{
		JWTSecret:       testSecret,
		DefaultCurrency: "RUB",
		WorkflowGuards:  config.GuardsPermissive,
		HMACSecret:      "test-hmac",
		EncryptionKey:   []byte("0123456789abcdef"),
	}
	svc := service.NewService(repo, repository.NewTxManager(db, logger), logger, cfg)
	router := NewRouter(NewHandler(svc, rates, logger), middleware.AuthMiddleware(cfg))

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	token, err := middleware.NewToken(testSecret, "clerk-1", uuid.Nil, time.Hour)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return &testAPI{t: t, server: server, token: token}
}

// do sends body as JSON and decodes the response into out when it is not nil
func (a *testAPI) do(method, path string, body, out any) int {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			a.t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	if err != nil {
		a.t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		a.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			a.t.Fatalf("failed to decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

type idResponse struct {
	ID uuid.UUID `json:"id"`
}

func (a *testAPI) createPartner(name string) uuid.UUID {
	a.t.Helper()
	var p idResponse
	if code := a.do("POST", "/partners", map[string]any{"name": name}, &p); code != http.StatusCreated {
		a.t.Fatalf("expected 201 creating partner, got %d", code)
	}
	return p.ID
}

func (a *testAPI) createApplication(applicant uuid.UUID) uuid.UUID {
	a.t.Helper()
	var app idResponse
	code := a.do("POST", "/applications", map[string]any{
		"applicant_id":     applicant,
		"loan_type":        "retail",
		"loan_product":     "personal loan",
		"requested_amount": "12000",
		"tenure":           12,
	}, &app)
	if code != http.StatusCreated {
		a.t.Fatalf("expected 201 creating application, got %d", code)
	}
	return app.ID
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t, fakeRates{})

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api.token = tt.token
			if code := api.do("GET", "/accounts", nil, nil); code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", code)
			}
		})
	}
}

func TestKeyRate(t *testing.T) {
	api := newTestAPI(t, fakeRates{rate: decimal.RequireFromString("21.5")})
	api.token = ""

	var body struct {
		KeyRate decimal.Decimal `json:"key_rate"`
	}
	if code := api.do("GET", "/key-rate", nil, &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !body.KeyRate.Equal(decimal.RequireFromString("21.5")) {
		t.Errorf("expected 21.5, got %s", body.KeyRate)
	}

	failing := newTestAPI(t, fakeRates{err: errors.New("cbr unavailable")})
	if code := failing.do("GET", "/key-rate", nil, nil); code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", code)
	}
}

func TestAccountLedger(t *testing.T) {
	api := newTestAPI(t, fakeRates{})
	owner := api.createPartner("Abebe")

	var account idResponse
	if code := api.do("POST", "/accounts", map[string]any{"owner_id": owner}, &account); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}

	postings := []map[string]any{
		{"amount": "100", "type": "credit"},
		{"amount": "100", "type": "credit"},
		{"amount": "30", "type": "debit"},
	}
	for _, p := range postings {
		if code := api.do("POST", "/accounts/"+account.ID.String()+"/transactions", p, nil); code != http.StatusCreated {
			t.Fatalf("expected 201 posting, got %d", code)
		}
	}

	var got struct {
		Balance      models.Money         `json:"balance"`
		Transactions []models.Transaction `json:"transactions"`
	}
	if code := api.do("GET", "/accounts/"+account.ID.String(), nil, &got); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if got.Balance.String() != "170.00 RUB" || len(got.Transactions) != 3 {
		t.Errorf("expected 170.00 RUB over 3 transactions, got %s over %d", got.Balance, len(got.Transactions))
	}

	var list []idResponse
	if code := api.do("GET", "/accounts?owner_id="+owner.String(), nil, &list); code != http.StatusOK || len(list) != 1 {
		t.Errorf("expected one listed account, got %d (%d)", len(list), code)
	}
}

func TestErrorMapping(t *testing.T) {
	api := newTestAPI(t, fakeRates{})
	owner := api.createPartner("Abebe")
	if code := api.do("POST", "/accounts", map[string]any{"owner_id": owner}, nil); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	app := api.createApplication(owner)
	if code := api.do("POST", "/applications/"+app.String()+"/conditions", map[string]any{"description": "insured"}, nil); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}

	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		wantCode int
		wantErr  string
	}{
		{"validation", "POST", "/partners", map[string]any{"name": " "}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"malformed body", "POST", "/partners", "[", http.StatusBadRequest, "INVALID_REQUEST"},
		{"malformed id", "GET", "/partners/42", nil, http.StatusBadRequest, "INVALID_REQUEST"},
		{"not found", "GET", "/loans/" + uuid.NewString(), nil, http.StatusNotFound, "NOT_FOUND"},
		{"referenced", "DELETE", "/partners/" + owner.String(), nil, http.StatusConflict, "REFERENCED"},
		{"unknown action", "POST", "/applications/" + app.String() + "/actions/escalate", nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unmet condition", "POST", "/applications/" + app.String() + "/actions/disburse", nil, http.StatusPreconditionFailed, "PRECONDITION_NOT_MET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp ErrorResponse
			code := api.do(tt.method, tt.path, tt.body, &resp)
			if code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, code)
			}
			if resp.Code != tt.wantErr {
				t.Errorf("expected code %s, got %s", tt.wantErr, resp.Code)
			}
		})
	}
}

func TestApplicationActions(t *testing.T) {
	api := newTestAPI(t, fakeRates{})
	owner := api.createPartner("Abebe")
	app := api.createApplication(owner)
	base := "/applications/" + app.String()

	var state struct {
		State models.ApplicationState `json:"state"`
	}
	if code := api.do("POST", base+"/actions/submit", nil, &state); code != http.StatusOK || state.State != models.StateSubmitted {
		t.Fatalf("expected submitted, got %s (%d)", state.State, code)
	}

	var disbursed struct {
		Application struct {
			State models.ApplicationState `json:"state"`
		} `json:"application"`
		Loan struct {
			ID        uuid.UUID    `json:"id"`
			Principal models.Money `json:"principal"`
		} `json:"loan"`
	}
	if code := api.do("POST", base+"/actions/disburse", nil, &disbursed); code != http.StatusOK {
		t.Fatalf("expected 200 disbursing, got %d", code)
	}
	if disbursed.Application.State != models.StateDisbursed || disbursed.Loan.Principal.String() != "12000.00 RUB" {
		t.Errorf("unexpected disbursement %+v", disbursed)
	}

	var again ErrorResponse
	if code := api.do("POST", base+"/actions/disburse", nil, &again); code != http.StatusConflict || again.Code != "STATE_CONFLICT" {
		t.Errorf("expected 409 STATE_CONFLICT, got %d %s", code, again.Code)
	}

	for i := 0; i < 2; i++ {
		if code := api.do("POST", base+"/actions/cancel", nil, &state); code != http.StatusOK || state.State != models.StateCancelled {
			t.Errorf("cancel %d: expected cancelled, got %s (%d)", i+1, state.State, code)
		}
	}

	var loan idResponse
	if code := api.do("GET", "/loans/"+disbursed.Loan.ID.String(), nil, &loan); code != http.StatusOK || loan.ID != disbursed.Loan.ID {
		t.Errorf("expected the loan to be readable, got %d", code)
	}
}

func TestCardIssue(t *testing.T) {
	api := newTestAPI(t, fakeRates{})
	holder := api.createPartner("Abebe")
	if code := api.do("POST", "/accounts", map[string]any{"owner_id": holder}, nil); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}

	var issued struct {
		Card struct {
			ID     uuid.UUID `json:"id"`
			Number string    `json:"number"`
		} `json:"card"`
		FullNumber string `json:"full_number"`
		CVV        string `json:"cvv"`
	}
	if code := api.do("POST", "/cards", map[string]any{"holder_id": holder}, &issued); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if len(issued.FullNumber) != 16 || len(issued.CVV) != 3 {
		t.Errorf("expected full number and cvv once, got %q %q", issued.FullNumber, issued.CVV)
	}

	var raw map[string]any
	if code := api.do("GET", "/cards/"+issued.Card.ID.String(), nil, &raw); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if _, leaked := raw["cvv"]; leaked {
		t.Error("stored card must not expose the cvv")
	}
	if number, _ := raw["number"].(string); !strings.Contains(number, "*") {
		t.Errorf("expected a masked number, got %q", number)
	}
}

func TestTicketFlow(t *testing.T) {
	api := newTestAPI(t, fakeRates{})
	partner := api.createPartner("Abebe")

	var ticket struct {
		ID         uuid.UUID          `json:"id"`
		State      models.TicketState `json:"state"`
		AssigneeID string             `json:"assignee_id"`
	}
	if code := api.do("POST", "/tickets", map[string]any{"subject": "card blocked", "partner_id": partner}, &ticket); code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if ticket.State != models.TicketNew || ticket.AssigneeID != "clerk-1" {
		t.Errorf("unexpected ticket %+v", ticket)
	}

	path := "/tickets/" + ticket.ID.String()
	if code := api.do("PUT", path+"/state", map[string]any{"state": "done"}, &ticket); code != http.StatusOK || ticket.State != models.TicketDone {
		t.Errorf("expected done, got %s (%d)", ticket.State, code)
	}

	var summary models.PartnerSummary
	if code := api.do("GET", "/partners/"+partner.String()+"/summary", nil, &summary); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if summary.OpenTickets != 0 || len(summary.TotalAccountBalance) != 0 {
		t.Errorf("unexpected summary %+v", summary)
	}
}
