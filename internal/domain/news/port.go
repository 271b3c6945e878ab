package news

import (
	"context"
	"time"
)

// Repository port (interface untuk persistence)
type Repository interface {
	SaveArticle(ctx context.Context, a *Article) error
	GetArticle(ctx context.Context, id ArticleID, forUser string) (*Article, error)
	URLExists(ctx context.Context, url string) (bool, error)
	List(ctx context.Context, f ListFilter, forUser string, page, pageSize int) (PaginatedResult, error)
	Trending(ctx context.Context, since time.Time, limit int) ([]*Article, error)

	GetOrCreateSource(ctx context.Context, name, description string) (*Source, error)
	GetOrCreateCategory(ctx context.Context, slug, name, description string) (*Category, error)
	ListSources(ctx context.Context) ([]*Source, error)
	ListCategories(ctx context.Context) ([]*Category, error)

	MarkRead(ctx context.Context, userID string, id ArticleID, at time.Time) (created bool, err error)
	RecentReads(ctx context.Context, userID string, limit int) ([]*ReadArticle, error)
	ClearReads(ctx context.Context, userID string) (int64, error)
}

// Provider port: the external news API. Two read-only endpoints, taken as
// given (rate limits included).
type Provider interface {
	TopHeadlines(ctx context.Context, category, country string, pageSize int) (*ProviderResponse, error)
	Everything(ctx context.Context, query string, from time.Time, sortBy string, pageSize int) (*ProviderResponse, error)
}

// ContentExtractor pulls readable article text from the canonical URL when
// the provider only returns a truncated snippet.
type ContentExtractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

// ArchiveStore port (penyimpanan payload mentah untuk audit)
type ArchiveStore interface {
	ArchivePayload(ctx context.Context, key string, payload []byte, contentType string) (string, error)
}
