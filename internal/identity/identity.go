// Package identity maintains the signed-in user session: it wraps an external
// auth provider's state-change stream into a single {User, Loading} observable
// and keeps the users/{uid} record up to date on every sign-in.
package identity

import (
	"context"
	"errors"
)

// ErrProvider wraps failures surfaced by the external auth provider
// (cancelled sign-in, network error, invalid token). Callers decide whether
// to retry or show a message; nothing here retries automatically.
var ErrProvider = errors.New("identity: auth provider error")

// ProviderUser is the identity the external auth provider reports for a
// signed-in user.
type ProviderUser struct {
	UID           string
	DisplayName   string
	Email         string
	PhotoURL      string
	EmailVerified bool
}

// AuthProvider is the external authentication collaborator. Watch delivers
// the current user immediately and then again on every auth-state change;
// a nil user means signed out.
type AuthProvider interface {
	Watch(fn func(*ProviderUser)) (stop func())
	SignIn(ctx context.Context) (*ProviderUser, error)
	SignOut(ctx context.Context) error
}

// User is the stored user record at users/{uid}. Timestamps are milliseconds
// since the Unix epoch, assigned by the store clock.
type User struct {
	UID           string `json:"uid"`
	DisplayName   string `json:"displayName"`
	Email         string `json:"email"`
	PhotoURL      string `json:"photoURL"`
	EmailVerified bool   `json:"emailVerified"`
	CreatedAt     int64  `json:"createdAt"`
	LastLoginAt   int64  `json:"lastLoginAt"`
}
