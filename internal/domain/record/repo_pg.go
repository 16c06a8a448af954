package record

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

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &recordRepoPG{pool: pool}
}

func (r *recordRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const recordCols = `id, user_id, type, title, description, date, end_date, status,
	provider_name, specialty, notes, metadata, document_url, created_at, updated_at`

// updatableCols is the allow-list for Patch.Set, in statement order.
var updatableCols = []string{
	"type", "title", "description", "date", "end_date",
	"status", "provider_name", "specialty", "notes",
}

func (r *recordRepoPG) scanRecord(row pgx.Row) (*HealthRecord, error) {
	var (
		h   HealthRecord
		raw []byte
	)
	err := row.Scan(&h.ID, &h.UserID, &h.Type, &h.Title, &h.Description, &h.Date, &h.EndDate, &h.Status,
		&h.ProviderName, &h.Specialty, &h.Notes, &raw, &h.DocumentURL, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if h.Metadata, err = ParseMetadata(h.Type, raw); err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *recordRepoPG) Create(ctx context.Context, h *HealthRecord) error {
	h.ID = uuid.New()
	md, err := MarshalMetadata(h.Metadata)
	if err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO health_records (id, user_id, type, title, description, date, end_date, status,
			provider_name, specialty, notes, metadata, document_url)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at`,
		h.ID, h.UserID, h.Type, h.Title, h.Description, h.Date, h.EndDate, h.Status,
		h.ProviderName, h.Specialty, h.Notes, md, h.DocumentURL).Scan(&h.CreatedAt, &h.UpdatedAt)
}

func (r *recordRepoPG) GetByID(ctx context.Context, userID, id uuid.UUID) (*HealthRecord, error) {
	return r.scanRecord(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recordCols+` FROM health_records WHERE id = $1 AND user_id = $2`, id, userID))
}

func (r *recordRepoPG) Update(ctx context.Context, userID, id uuid.UUID, p Patch) (*HealthRecord, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{id, userID}
	for _, col := range updatableCols {
		v, ok := p.Set[col]
		if !ok {
			continue
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.Metadata != nil {
		md, err := MarshalMetadata(p.Metadata)
		if err != nil {
			return nil, err
		}
		args = append(args, md)
		sets = append(sets, fmt.Sprintf("metadata = $%d", len(args)))
	}

	return r.scanRecord(r.conn(ctx).QueryRow(ctx, `
		UPDATE health_records SET `+strings.Join(sets, ", ")+`
		WHERE id = $1 AND user_id = $2
		RETURNING `+recordCols, args...))
}

func (r *recordRepoPG) Delete(ctx context.Context, userID, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM health_records WHERE id = $1 AND user_id = $2`, id, userID)
	return err
}

func (r *recordRepoPG) ListByUser(ctx context.Context, userID uuid.UUID) ([]*HealthRecord, error) {
	return r.list(ctx, `SELECT `+recordCols+` FROM health_records
		WHERE user_id = $1 ORDER BY date DESC, created_at DESC`, userID)
}

func (r *recordRepoPG) ListByType(ctx context.Context, userID uuid.UUID, recordType, status string) ([]*HealthRecord, error) {
	if status == "" {
		return r.list(ctx, `SELECT `+recordCols+` FROM health_records
			WHERE user_id = $1 AND type = $2 ORDER BY date DESC, created_at DESC`, userID, recordType)
	}
	return r.list(ctx, `SELECT `+recordCols+` FROM health_records
		WHERE user_id = $1 AND type = $2 AND status = $3 ORDER BY date DESC, created_at DESC`,
		userID, recordType, status)
}

func (r *recordRepoPG) ListBySpecialties(ctx context.Context, userID uuid.UUID, specialties []string) ([]*HealthRecord, error) {
	if len(specialties) == 0 {
		return []*HealthRecord{}, nil
	}
	return r.list(ctx, `SELECT `+recordCols+` FROM health_records
		WHERE user_id = $1 AND specialty = ANY($2) ORDER BY date DESC, created_at DESC`, userID, specialties)
}

func (r *recordRepoPG) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM health_records WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

func (r *recordRepoPG) list(ctx context.Context, query string, args ...interface{}) ([]*HealthRecord, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*HealthRecord{}
	for rows.Next() {
		h, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
