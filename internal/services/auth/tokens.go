package auth

import (
	"fmt"
	"time"

	"github.com/benvon/restaurant-finder/internal/models"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// TokenIssuer signs and resolves stateless session tokens (HS256).
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a token issuer
func NewTokenIssuer(secret, issuer string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL returns the lifetime of issued tokens.
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// IssueToken produces a signed token for userID.
func (t *TokenIssuer) IssueToken(userID uuid.UUID) (string, error) {
	now := t.now()
	tok, err := jwt.NewBuilder().
		Subject(userID.String()).
		Issuer(t.issuer).
		IssuedAt(now).
		Expiration(now.Add(t.ttl)).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, t.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), nil
}

// ResolveToken verifies signature, issuer and expiry. Every failure is
// reported as models.ErrUnauthorized.
func (t *TokenIssuer) ResolveToken(token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, fmt.Errorf("missing token: %w", models.ErrUnauthorized)
	}

	parsed, err := jwt.Parse([]byte(token),
		jwt.WithKey(jwa.HS256, t.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(t.issuer),
		jwt.WithClock(jwt.ClockFunc(t.now)),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid token: %w", models.ErrUnauthorized)
	}

	userID, err := uuid.Parse(parsed.Subject())
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid token subject: %w", models.ErrUnauthorized)
	}
	return userID, nil
}
