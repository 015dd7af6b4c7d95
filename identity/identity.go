// Package identity resolves who the session belongs to: the bearer-token
// actor and the remembered active profile.
package identity

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNoToken      = errors.New("identity: missing bearer token")
	ErrInvalidToken = errors.New("identity: invalid token")
)

// Actor is the authenticated user a session is bound to. Token is the raw
// bearer credential forwarded to the backend.
type Actor struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	ProfileID string `json:"profile_id,omitempty"`
	Token     string `json:"-"`
}

// Valid reports whether the actor carries an identity.
func (a Actor) Valid() bool { return strings.TrimSpace(a.ID) != "" }

// Verifier turns a raw bearer token into an Actor.
type Verifier interface {
	Verify(ctx context.Context, token string) (Actor, error)
}

// ProfileCache remembers the last active profile per actor, so a fresh
// session can fetch profile-scoped data before the workspace graph arrives.
type ProfileCache interface {
	Get(ctx context.Context, actorID string) (profileID string, ok bool, err error)
	Put(ctx context.Context, actorID, profileID string) error
	Del(ctx context.Context, actorID string) error
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	h := strings.TrimSpace(header)
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", ErrNoToken
	}
	tok := strings.TrimSpace(h[7:])
	if tok == "" {
		return "", ErrNoToken
	}
	return tok, nil
}
