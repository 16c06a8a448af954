package brief

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, s *Summary) error
	// ListByUser returns the user's summaries, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Summary, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}
