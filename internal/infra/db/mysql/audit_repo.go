package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"

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
	const q = `
INSERT INTO external_errors (component, operation, subject, message, details_json, created_at)
VALUES (?,?,?,?,?,?);`

	var details any
	if strings.TrimSpace(e.DetailsJSON) != "" {
		details = e.DetailsJSON
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := r.db.ExecContext(ctx, q,
		e.Component, e.Operation, e.Subject, e.Message, details, createdAt,
	)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

func (r *ExternalErrorRepository) ListByComponent(ctx context.Context, component string, limit int) ([]*domain.ExternalError, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, component, operation, subject, message, COALESCE(details_json,''), created_at
FROM external_errors
WHERE component = ?
ORDER BY created_at DESC
LIMIT ?;`

	rows, err := r.db.QueryContext(ctx, q, component, limit)
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
