package profile

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helix/phr/internal/platform/db"
)

type queryable interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type profileRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &profileRepoPG{pool: pool}
}

func (r *profileRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const profileCols = `id, email, full_name, date_of_birth, blood_type, allergies,
	emergency_contact_name, emergency_contact_phone, avatar_url, onboarding_completed,
	created_at, updated_at`

func (r *profileRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	var p Profile
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+profileCols+` FROM users WHERE id = $1`, id).Scan(
		&p.ID, &p.Email, &p.FullName, &p.DateOfBirth, &p.BloodType, &p.Allergies,
		&p.EmergencyContactName, &p.EmergencyContactPhone, &p.AvatarURL, &p.OnboardingCompleted,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.Allergies == nil {
		p.Allergies = []string{}
	}
	return &p, nil
}

func (r *profileRepoPG) Ensure(ctx context.Context, id uuid.UUID, email string, fullName *string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO users (id, email, full_name) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING`, id, email, fullName)
	return err
}

func (r *profileRepoPG) Update(ctx context.Context, p *Profile) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE users SET full_name = $2, date_of_birth = $3, blood_type = $4, allergies = $5,
			emergency_contact_name = $6, emergency_contact_phone = $7, updated_at = NOW()
		WHERE id = $1`,
		p.ID, p.FullName, p.DateOfBirth, p.BloodType, p.Allergies,
		p.EmergencyContactName, p.EmergencyContactPhone)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *profileRepoPG) CompleteOnboarding(ctx context.Context, p *Profile) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO users (id, email, full_name, date_of_birth, blood_type, allergies, onboarding_completed)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		ON CONFLICT (id) DO UPDATE SET
			full_name = COALESCE(EXCLUDED.full_name, users.full_name),
			date_of_birth = EXCLUDED.date_of_birth,
			blood_type = EXCLUDED.blood_type,
			allergies = EXCLUDED.allergies,
			onboarding_completed = TRUE,
			updated_at = NOW()`,
		p.ID, p.Email, p.FullName, p.DateOfBirth, p.BloodType, p.Allergies)
	return err
}
