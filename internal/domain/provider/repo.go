package provider

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("provider not found")

// Patch holds allow-listed columns to update. A nil value clears the column.
type Patch map[string]interface{}

type Repository interface {
	Create(ctx context.Context, p *Provider) error
	GetByID(ctx context.Context, userID, id uuid.UUID) (*Provider, error)
	Update(ctx context.Context, userID, id uuid.UUID, patch Patch) (*Provider, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	// ListByUser returns the user's providers, most recently added first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Provider, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
}
