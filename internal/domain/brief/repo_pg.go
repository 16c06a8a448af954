package brief

import (
	"context"
	"fmt"

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

type summaryRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &summaryRepoPG{pool: pool}
}

func (r *summaryRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const summaryCols = `id, user_id, specialty, summary, key_conditions, current_medications,
	recent_visits, cautions, generated_at`

func (r *summaryRepoPG) Create(ctx context.Context, s *Summary) error {
	s.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO ai_summaries (id, user_id, specialty, summary, key_conditions,
			current_medications, recent_visits, cautions)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING generated_at`,
		s.ID, s.UserID, s.Specialty, s.Summary, nonNil(s.KeyConditions),
		nonNil(s.CurrentMedications), nonNil(s.RecentVisits), nonNil(s.Cautions),
	).Scan(&s.GeneratedAt)
}

func (r *summaryRepoPG) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Summary, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+summaryCols+` FROM ai_summaries WHERE user_id = $1 ORDER BY generated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*Summary{}
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.UserID, &s.Specialty, &s.Summary, &s.KeyConditions,
			&s.CurrentMedications, &s.RecentVisits, &s.Cautions, &s.GeneratedAt); err != nil {
			return nil, fmt.Errorf("scan ai summary: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *summaryRepoPG) Delete(ctx context.Context, userID, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM ai_summaries WHERE id = $1 AND user_id = $2`, id, userID)
	return err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
