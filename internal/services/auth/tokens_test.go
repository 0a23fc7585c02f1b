package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/benvon/restaurant-finder/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestTokenRoundTrip(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer("secret", "restaurant-finder", time.Hour)
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return base }

	userID := uuid.New()
	token, err := issuer.IssueToken(userID)
	require.NoError(t, err)

	got, err := issuer.ResolveToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	issuer.now = func() time.Time { return base.Add(59 * time.Minute) }
	_, err = issuer.ResolveToken(token)
	assert.NoError(t, err, "token must stay valid until expiry")

	issuer.now = func() time.Time { return base.Add(61 * time.Minute) }
	_, err = issuer.ResolveToken(token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestResolveToken_Invalid(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer("secret", "restaurant-finder", time.Hour)
	valid, err := issuer.IssueToken(uuid.New())
	require.NoError(t, err)

	otherSecret, err := NewTokenIssuer("other", "restaurant-finder", time.Hour).IssueToken(uuid.New())
	require.NoError(t, err)

	otherIssuer, err := NewTokenIssuer("secret", "someone-else", time.Hour).IssueToken(uuid.New())
	require.NoError(t, err)

	parts := strings.Split(valid, ".")
	require.Len(t, parts, 3)
	unsigned := parts[0] + "." + parts[1] + "."

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not-a-jwt"},
		{name: "wrong secret", token: otherSecret},
		{name: "wrong issuer", token: otherIssuer},
		{name: "stripped signature", token: unsigned},
		{name: "tampered payload", token: parts[0] + "." + parts[1] + "x." + parts[2]},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := issuer.ResolveToken(tt.token)
			assert.ErrorIs(t, err, models.ErrUnauthorized)
		})
	}
}

func TestPasswords(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("pw1", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "pw1", hash)
	assert.True(t, CheckPassword(hash, "pw1"))
	assert.False(t, CheckPassword(hash, "pw2"))

	again, err := HashPassword("pw1", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "hashes must be salted")

	_, err = HashPassword(strings.Repeat("x", 73), bcrypt.MinCost)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}
