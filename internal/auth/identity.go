// Package auth holds the token service, password hashing and the ownership
// policy shared by the HTTP layer and the services.
package auth

import (
	"context"
	"errors"

	"github.com/postboard/apiserver/types"
)

var (
	// ErrInvalidToken covers every token verification failure. Callers must
	// not be able to tell a bad signature from an expired or malformed token.
	ErrInvalidToken = errors.New("could not validate credentials")

	// ErrForbidden is returned when the policy denies an authenticated caller.
	ErrForbidden = errors.New("forbidden")
)

// Identity is the trusted view of the caller for the duration of a request.
type Identity struct {
	ID          int
	Username    string
	IsActive    bool
	IsSuperuser bool
}

// IdentityFromUser builds an identity from the current store record.
func IdentityFromUser(user types.User) Identity {
	return Identity{
		ID:          user.ID,
		Username:    user.Username,
		IsActive:    user.IsActive,
		IsSuperuser: user.IsSuperuser,
	}
}

type contextKey struct{}

// WithIdentity returns a child context carrying the caller identity.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

// IdentityFromContext returns the identity stored by WithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(contextKey{}).(Identity)
	if !ok || identity.ID < 1 {
		return Identity{}, false
	}
	return identity, true
}
