// Package auth issues and verifies bearer tokens and carries the caller's
// identity through request contexts.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"trustscan/internal/domain"
)

// TokenTTL is how long an issued token stays valid.
const TokenTTL = 7 * 24 * time.Hour

// Identity is the verified caller behind a request.
type Identity struct {
	UserID string
	Email  string
	Role   domain.Role
}

func (i Identity) IsAdmin() bool { return i.Role == domain.RoleAdmin }

type claims struct {
	UserID string      `json:"userId"`
	Email  string      `json:"email"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Tokens signs HS256 tokens with a shared secret.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	clock  clockwork.Clock
}

func NewTokens(secret string, clock clockwork.Clock) *Tokens {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Tokens{secret: []byte(secret), ttl: TokenTTL, clock: clock}
}

func (t *Tokens) Issue(u *domain.User) (string, error) {
	now := t.clock.Now()
	c := claims{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// Verify parses a token and returns its identity. Any failure, including
// expiry, yields domain.ErrUnauthenticated.
func (t *Tokens) Verify(token string) (Identity, error) {
	var c claims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	parsed, err := parser.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, domain.ErrUnauthenticated
	}
	// jwt/v4 validates exp against time.Now; re-check against our clock
	if c.ExpiresAt == nil || !t.clock.Now().Before(c.ExpiresAt.Time) {
		return Identity{}, domain.ErrUnauthenticated
	}
	if c.UserID == "" {
		return Identity{}, domain.ErrUnauthenticated
	}
	return Identity{UserID: c.UserID, Email: c.Email, Role: c.Role}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(prefix):])
	return tok, tok != ""
}

type ctxKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity attached by the HTTP middleware, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
