package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/restaurant-finder/internal/models"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrKeysUnavailable means Google's signing keys could not be fetched, so no
// token can be judged either way.
var ErrKeysUnavailable = errors.New("google signing keys unavailable")

var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// GoogleVerifier verifies Google ID tokens against Google's published keys.
type GoogleVerifier struct {
	keys     *KeySetCache
	jwksURL  string
	clientID string
	now      func() time.Time
}

// NewGoogleVerifier creates a verifier. An empty clientID skips the audience check.
func NewGoogleVerifier(keys *KeySetCache, jwksURL, clientID string) *GoogleVerifier {
	if jwksURL == "" {
		jwksURL = GoogleJWKSURL
	}
	return &GoogleVerifier{
		keys:     keys,
		jwksURL:  jwksURL,
		clientID: clientID,
		now:      time.Now,
	}
}

// Verify checks signature, expiry, issuer and audience and returns the identity.
func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (*models.GoogleIdentity, error) {
	keys, err := v.keys.Get(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeysUnavailable, err)
	}

	opts := []jwt.ParseOption{
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(v.now)),
	}
	if v.clientID != "" {
		opts = append(opts, jwt.WithAudience(v.clientID))
	}

	token, err := jwt.Parse([]byte(idToken), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse/verify token: %w", err)
	}

	if !googleIssuers[token.Issuer()] {
		return nil, fmt.Errorf("wrong issuer %q", token.Issuer())
	}

	identity := &models.GoogleIdentity{Subject: token.Subject()}
	if email, ok := token.Get("email"); ok {
		identity.Email, _ = email.(string)
	}
	if identity.Email == "" {
		return nil, fmt.Errorf("token missing email claim")
	}
	if name, ok := token.Get("name"); ok {
		identity.Name, _ = name.(string)
	}
	if verified, ok := token.Get("email_verified"); ok {
		switch val := verified.(type) {
		case bool:
			identity.EmailVerified = val
		case string:
			identity.EmailVerified = val == "true"
		}
	}

	return identity, nil
}

// GoogleCodeExchanger trades an authorization code for a Google ID token.
type GoogleCodeExchanger struct {
	config *oauth2.Config
}

// NewGoogleCodeExchanger creates an exchanger against Google's token endpoint.
func NewGoogleCodeExchanger(clientID, clientSecret, redirectURL string) *GoogleCodeExchanger {
	return newCodeExchanger(&oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	})
}

func newCodeExchanger(cfg *oauth2.Config) *GoogleCodeExchanger {
	return &GoogleCodeExchanger{config: cfg}
}

// ExchangeIDToken exchanges code and returns the id_token from the token response.
func (e *GoogleCodeExchanger) ExchangeIDToken(ctx context.Context, code string) (string, error) {
	tok, err := e.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	idToken, _ := tok.Extra("id_token").(string)
	if strings.TrimSpace(idToken) == "" {
		return "", fmt.Errorf("token response carried no id_token")
	}
	return idToken, nil
}
