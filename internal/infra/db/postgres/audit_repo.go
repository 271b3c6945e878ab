package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	domain "github.com/bryanwahyu/newslens/internal/domain/audit"
)

type ExternalErrorRepository struct {
	db *sql.DB
}

var _ domain.Repository = (*ExternalErrorRepository)(nil)

func NewExternalErrorRepository(db *sql.DB) *ExternalErrorRepository {
	return &ExternalErrorRepository{db: db}
}

// Save inserts one failure entry
func (r *ExternalErrorRepository) Save(ctx context.Context, e *domain.ExternalError) error {
	var details any
	if strings.TrimSpace(e.DetailsJSON) != "" {
		details = e.DetailsJSON
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	q, args, err := psql.Insert("external_errors").
		Columns("component", "operation", "subject", "message", "details_json", "created_at").
		Values(e.Component, e.Operation, e.Subject, e.Message, details, createdAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return err
	}
	return r.db.QueryRowContext(ctx, q, args...).Scan(&e.ID)
}

func (r *ExternalErrorRepository) ListByComponent(ctx context.Context, component string, limit int) ([]*domain.ExternalError, error) {
	if limit <= 0 {
		limit = 50
	}
	q, args, err := psql.Select("id", "component", "operation", "subject", "message",
		"COALESCE(details_json::text,'')", "created_at").
		From("external_errors").
		Where(sq.Eq{"component": component}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ExternalError
	for rows.Next() {
		var e domain.ExternalError
		if err := rows.Scan(&e.ID, &e.Component, &e.Operation, &e.Subject, &e.Message, &e.DetailsJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
