package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Dan9191/retail-banking/internal/config"
	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "test-secret"

func TestAuthMiddleware(t *testing.T) {
	partnerID := uuid.New()
	valid, err := NewToken(testSecret, "clerk-1", partnerID, time.Hour)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	noPartner, err := NewToken(testSecret, "clerk-2", uuid.Nil, time.Hour)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	expired, err := NewToken(testSecret, "clerk-1", partnerID, -time.Minute)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	foreign, err := NewToken("other-secret", "clerk-1", partnerID, time.Hour)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "clerk-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
		wantPartner uuid.UUID
	}{
		{"valid with default partner", "Bearer " + valid, http.StatusOK, "clerk-1", partnerID},
		{"valid without default partner", "Bearer " + noPartner, http.StatusOK, "clerk-2", uuid.Nil},
		{"missing header", "", http.StatusUnauthorized, "", uuid.Nil},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized, "", uuid.Nil},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, "", uuid.Nil},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized, "", uuid.Nil},
		{"unsigned", "Bearer " + noneAlg, http.StatusUnauthorized, "", uuid.Nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got models.Session
			var called bool
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, called = SessionFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})
			h := AuthMiddleware(&config.Config{JWTSecret: testSecret})(next)

			req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus != http.StatusOK {
				if called {
					t.Error("expected handler not to be called")
				}
				return
			}
			if got.UserID != tt.wantUser || got.DefaultPartnerID != tt.wantPartner {
				t.Errorf("unexpected session %+v", got)
			}
		})
	}
}

func TestSessionFromContext_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := SessionFromContext(req.Context()); ok {
		t.Error("expected no session in a bare context")
	}
}
