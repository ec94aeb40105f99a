package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Dan9191/retail-banking/internal/config"
	"github.com/Dan9191/retail-banking/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type sessionKey struct{}

// Claims are the JWT claims carried by a bearer token
type Claims struct {
	DefaultPartnerID string `json:"default_partner_id,omitempty"`
	jwt.RegisteredClaims
}

// NewToken signs an HS256 token for userID. defaultPartner may be uuid.Nil.
func NewToken(secret, userID string, defaultPartner uuid.UUID, ttl time.Duration) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	if defaultPartner != uuid.Nil {
		claims.DefaultPartnerID = defaultPartner.String()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return signed, nil
}

// ParseToken validates tokenString and returns the session it carries
func ParseToken(secret, tokenString string) (models.Session, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return models.Session{}, fmt.Errorf("invalid token: %w", err)
	}
	if claims.Subject == "" {
		return models.Session{}, fmt.Errorf("invalid token: subject is required")
	}

	session := models.Session{UserID: claims.Subject}
	if claims.DefaultPartnerID != "" {
		partnerID, err := uuid.Parse(claims.DefaultPartnerID)
		if err != nil {
			return models.Session{}, fmt.Errorf("invalid token: default_partner_id: %w", err)
		}
		session.DefaultPartnerID = partnerID
	}
	return session, nil
}

// AuthMiddleware rejects requests without a valid bearer token and stores
// the caller's session in the request context
func AuthMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenString == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			session, err := ParseToken(cfg.JWTSecret, tokenString)
			if err != nil {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// WithSession returns a copy of ctx carrying session
func WithSession(ctx context.Context, session models.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext returns the session stored by AuthMiddleware
func SessionFromContext(ctx context.Context) (models.Session, bool) {
	session, ok := ctx.Value(sessionKey{}).(models.Session)
	return session, ok
}
