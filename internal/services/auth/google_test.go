package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type googleFixture struct {
	signingKey jwk.Key
	jwksURL    string
	fetches    *atomic.Int32
}

func newGoogleFixture(t *testing.T) *googleFixture {
	t.Helper()

	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	key, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, "test-kid"))
	require.NoError(t, key.Set(jwk.AlgorithmKey, jwa.RS256))

	pub, err := jwk.PublicKeyOf(key)
	require.NoError(t, err)
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))

	body, err := json.Marshal(set)
	require.NoError(t, err)

	fetches := &atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	return &googleFixture{signingKey: key, jwksURL: srv.URL, fetches: fetches}
}

func (f *googleFixture) sign(t *testing.T, mutate func(jwt.Token)) string {
	t.Helper()

	now := time.Now()
	tok := jwt.New()
	require.NoError(t, tok.Set(jwt.IssuerKey, "https://accounts.google.com"))
	require.NoError(t, tok.Set(jwt.AudienceKey, "client-id"))
	require.NoError(t, tok.Set(jwt.SubjectKey, "g-123"))
	require.NoError(t, tok.Set(jwt.IssuedAtKey, now))
	require.NoError(t, tok.Set(jwt.ExpirationKey, now.Add(time.Hour)))
	require.NoError(t, tok.Set("email", "fan@gmail.com"))
	require.NoError(t, tok.Set("email_verified", true))
	require.NoError(t, tok.Set("name", "Fan"))
	if mutate != nil {
		mutate(tok)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, f.signingKey))
	require.NoError(t, err)
	return string(signed)
}

func TestGoogleVerifier(t *testing.T) {
	t.Parallel()

	fx := newGoogleFixture(t)

	tests := []struct {
		name    string
		mutate  func(jwt.Token)
		wantErr bool
	}{
		{name: "valid token"},
		{
			name:   "bare issuer accepted",
			mutate: func(tok jwt.Token) { _ = tok.Set(jwt.IssuerKey, "accounts.google.com") },
		},
		{
			name:    "wrong issuer",
			mutate:  func(tok jwt.Token) { _ = tok.Set(jwt.IssuerKey, "https://evil.example.com") },
			wantErr: true,
		},
		{
			name:    "wrong audience",
			mutate:  func(tok jwt.Token) { _ = tok.Set(jwt.AudienceKey, "someone-else") },
			wantErr: true,
		},
		{
			name:    "expired",
			mutate:  func(tok jwt.Token) { _ = tok.Set(jwt.ExpirationKey, time.Now().Add(-time.Hour)) },
			wantErr: true,
		},
		{
			name:    "missing email",
			mutate:  func(tok jwt.Token) { _ = tok.Remove("email") },
			wantErr: true,
		},
	}

	verifier := NewGoogleVerifier(NewKeySetCache(nil, time.Hour), fx.jwksURL, "client-id")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, err := verifier.Verify(context.Background(), fx.sign(t, tt.mutate))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "g-123", identity.Subject)
			assert.Equal(t, "fan@gmail.com", identity.Email)
			assert.Equal(t, "Fan", identity.Name)
			assert.True(t, identity.EmailVerified)
		})
	}

	assert.Equal(t, int32(1), fx.fetches.Load(), "key set must be cached")
}

func TestGoogleVerifier_ForeignSignature(t *testing.T) {
	t.Parallel()

	fx := newGoogleFixture(t)
	other := newGoogleFixture(t)

	verifier := NewGoogleVerifier(NewKeySetCache(nil, time.Hour), fx.jwksURL, "")
	_, err := verifier.Verify(context.Background(), other.sign(t, nil))
	assert.Error(t, err)
}

func TestGoogleVerifier_KeysUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	fx := newGoogleFixture(t)
	verifier := NewGoogleVerifier(NewKeySetCache(nil, time.Hour), srv.URL, "")
	_, err := verifier.Verify(context.Background(), fx.sign(t, nil))
	assert.ErrorIs(t, err, ErrKeysUnavailable)
}

func TestGoogleCodeExchanger(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !assert.Contains(t, string(body), "code=auth-code") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"at","token_type":"Bearer","expires_in":3600,"id_token":"the-id-token"}`)
	}))
	t.Cleanup(srv.Close)

	exchanger := newCodeExchanger(&oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "secret",
		RedirectURL:  "postmessage",
		Endpoint:     oauth2.Endpoint{TokenURL: srv.URL, AuthStyle: oauth2.AuthStyleInParams},
	})

	idToken, err := exchanger.ExchangeIDToken(context.Background(), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "the-id-token", idToken)
}
