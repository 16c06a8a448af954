package share

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
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type linkRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &linkRepoPG{pool: pool}
}

func (r *linkRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const linkCols = `id, user_id, token, recipient_name, purpose, access_level, filter_specialties,
	expires_at, viewed_at, view_count, is_active, created_at`

func (r *linkRepoPG) scanLink(row pgx.Row) (*Link, error) {
	var l Link
	err := row.Scan(&l.ID, &l.UserID, &l.Token, &l.RecipientName, &l.Purpose, &l.AccessLevel, &l.FilterSpecialties,
		&l.ExpiresAt, &l.ViewedAt, &l.ViewCount, &l.IsActive, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if l.FilterSpecialties == nil {
		l.FilterSpecialties = []string{}
	}
	return &l, nil
}

func (r *linkRepoPG) Create(ctx context.Context, l *Link) error {
	l.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO share_links (id, user_id, token, recipient_name, purpose, access_level,
			filter_specialties, expires_at, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at`,
		l.ID, l.UserID, l.Token, l.RecipientName, l.Purpose, l.AccessLevel,
		l.FilterSpecialties, l.ExpiresAt, l.IsActive).Scan(&l.CreatedAt)
}

func (r *linkRepoPG) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Link, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+linkCols+` FROM share_links
		WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*Link{}
	for rows.Next() {
		l, err := r.scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *linkRepoPG) GetActiveByToken(ctx context.Context, token string) (*Link, error) {
	return r.scanLink(r.conn(ctx).QueryRow(ctx,
		`SELECT `+linkCols+` FROM share_links WHERE token = $1 AND is_active = TRUE`, token))
}

func (r *linkRepoPG) IncrementView(ctx context.Context, id uuid.UUID) (int, error) {
	var n *int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT increment_share_view($1)`, id).Scan(&n); err != nil {
		return 0, err
	}
	if n == nil {
		return 0, ErrNotFound
	}
	return *n, nil
}

func (r *linkRepoPG) Revoke(ctx context.Context, userID, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE share_links SET is_active = FALSE WHERE id = $1 AND user_id = $2`, id, userID)
	return err
}
