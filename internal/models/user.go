package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an account. Email is the identity key; PasswordHash is nil for
// accounts that only ever signed in through Google.
type User struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	PasswordHash  *string   `json:"-"`
	GoogleSubject *string   `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasPassword reports whether the account can sign in with email and password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// AuthResult is returned by every successful sign-in flow.
type AuthResult struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// GoogleIdentity holds the verified claims of a Google ID token.
type GoogleIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}
