package audit

import (
	"context"
)

// Repository defines persistence for external-dependency failures
type Repository interface {
	Save(ctx context.Context, e *ExternalError) error
	ListByComponent(ctx context.Context, component string, limit int) ([]*ExternalError, error)
}
