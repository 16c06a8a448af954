package share

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound covers unknown, revoked and expired tokens alike.
var ErrNotFound = errors.New("share link not found")

type Repository interface {
	Create(ctx context.Context, l *Link) error
	// ListByUser returns the user's links, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Link, error)
	// GetActiveByToken returns the link with the token if it is active.
	// Expiry is checked by the caller.
	GetActiveByToken(ctx context.Context, token string) (*Link, error)
	// IncrementView atomically bumps the view counter and stamps viewed_at,
	// returning the new count.
	IncrementView(ctx context.Context, id uuid.UUID) (int, error)
	// Revoke deactivates the user's link. Unknown and foreign ids are a no-op.
	Revoke(ctx context.Context, userID, id uuid.UUID) error
}
