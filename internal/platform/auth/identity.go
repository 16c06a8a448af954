package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotAuthenticated is returned by every user-scoped operation called without an identity.
var ErrNotAuthenticated = errors.New("Not authenticated")

// Identity is the caller derived from the session for one request.
// It is never cached across requests.
type Identity struct {
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name,omitempty"`
}

// IsZero reports whether no user is attached.
func (i Identity) IsZero() bool {
	return i.UserID == uuid.Nil
}

// Require returns ErrNotAuthenticated for the zero identity.
func (i Identity) Require() error {
	if i.IsZero() {
		return ErrNotAuthenticated
	}
	return nil
}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns a copy of ctx carrying the identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity stored by the session middleware,
// or the zero Identity.
func IdentityFromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey).(Identity)
	return id
}
