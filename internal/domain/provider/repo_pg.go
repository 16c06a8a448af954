package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helix/phr/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type providerRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &providerRepoPG{pool: pool}
}

func (r *providerRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const providerCols = `id, user_id, name, specialty, clinic_name, email, phone,
	has_access, access_level, invited_at, accepted_at, created_at, updated_at`

var updatableCols = []string{
	"name", "specialty", "clinic_name", "email", "phone", "has_access", "access_level",
}

func (r *providerRepoPG) scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Specialty, &p.ClinicName, &p.Email, &p.Phone,
		&p.HasAccess, &p.AccessLevel, &p.InvitedAt, &p.AcceptedAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *providerRepoPG) Create(ctx context.Context, p *Provider) error {
	p.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO providers (id, user_id, name, specialty, clinic_name, email, phone, has_access, access_level)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		p.ID, p.UserID, p.Name, p.Specialty, p.ClinicName, p.Email, p.Phone,
		p.HasAccess, p.AccessLevel).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *providerRepoPG) GetByID(ctx context.Context, userID, id uuid.UUID) (*Provider, error) {
	return r.scanProvider(r.conn(ctx).QueryRow(ctx,
		`SELECT `+providerCols+` FROM providers WHERE id = $1 AND user_id = $2`, id, userID))
}

func (r *providerRepoPG) Update(ctx context.Context, userID, id uuid.UUID, patch Patch) (*Provider, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{id, userID}
	for _, col := range updatableCols {
		v, ok := patch[col]
		if !ok {
			continue
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	return r.scanProvider(r.conn(ctx).QueryRow(ctx, `
		UPDATE providers SET `+strings.Join(sets, ", ")+`
		WHERE id = $1 AND user_id = $2
		RETURNING `+providerCols, args...))
}

func (r *providerRepoPG) Delete(ctx context.Context, userID, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM providers WHERE id = $1 AND user_id = $2`, id, userID)
	return err
}

func (r *providerRepoPG) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Provider, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+providerCols+` FROM providers
		WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*Provider{}
	for rows.Next() {
		p, err := r.scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *providerRepoPG) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM providers WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}
