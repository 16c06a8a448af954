package record

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no record with the id belongs to the user.
var ErrNotFound = errors.New("record not found")

// Patch is a partial update. Set holds allow-listed columns, a nil value
// clears the column. A nil Metadata leaves the stored metadata unchanged.
type Patch struct {
	Set      map[string]interface{}
	Metadata Metadata
}

// Repository reads and writes health records. Every method is scoped to the
// owning user.
type Repository interface {
	Create(ctx context.Context, r *HealthRecord) error
	GetByID(ctx context.Context, userID, id uuid.UUID) (*HealthRecord, error)
	Update(ctx context.Context, userID, id uuid.UUID, p Patch) (*HealthRecord, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	// ListByUser returns the user's records, newest date first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*HealthRecord, error)
	ListByType(ctx context.Context, userID uuid.UUID, recordType, status string) ([]*HealthRecord, error)
	ListBySpecialties(ctx context.Context, userID uuid.UUID, specialties []string) ([]*HealthRecord, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
}
