package analysis

import "context"

// Repository port for persisting and querying analyses
type Repository interface {
	Save(ctx context.Context, a *Analysis) error
	Get(ctx context.Context, id AnalysisID) (*Analysis, error)
	GetByUserArticle(ctx context.Context, userID, articleID string) (*Analysis, error)
	Paginate(ctx context.Context, userID string, f ListFilter, page, pageSize int) (PaginatedResult, error)
	ListForUser(ctx context.Context, userID string, limit int) ([]*Analysis, error)
}

// Client port: the external LLM. One structured-completion call per
// analysis; the prompt and model are fixed configuration.
type Client interface {
	AnalyzeArticle(ctx context.Context, title, description, content string) (*Result, []byte, error)
}
