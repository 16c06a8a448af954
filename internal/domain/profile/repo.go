package profile

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("profile not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	// Ensure inserts an empty profile unless one exists.
	Ensure(ctx context.Context, id uuid.UUID, email string, fullName *string) error
	// Update writes the settings fields of an existing profile.
	Update(ctx context.Context, p *Profile) error
	// CompleteOnboarding upserts the onboarding fields and sets the
	// onboarding flag. An existing full name is kept when p has none.
	CompleteOnboarding(ctx context.Context, p *Profile) error
}
