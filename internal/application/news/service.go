package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/newslens/internal/application"
	audit "github.com/bryanwahyu/newslens/internal/domain/audit"
	domain "github.com/bryanwahyu/newslens/internal/domain/news"
)

// DefaultCategories is the fixed set seeded at startup. Articles whose
// provider category is unknown fall back to "general".
var DefaultCategories = []struct {
	Slug        string
	Name        string
	Description string
}{
	{"general", "General", "General news and current events"},
	{"business", "Business", "Business, finance and economy"},
	{"technology", "Technology", "Technology and innovation"},
	{"politics", "Politics", "Politics and government"},
	{"health", "Health", "Health and medicine"},
	{"science", "Science", "Science and research"},
	{"sports", "Sports", "Sports news"},
	{"entertainment", "Entertainment", "Entertainment and culture"},
}

const (
	maxFetchPerRequest = 100
	maxPageSize        = 100
	// snippet suffix the provider appends when it truncates content,
	// e.g. "... [+1234 chars]"
	truncationMarker = "[+"
)

// Service implements use-cases untuk ingestion dan pembacaan artikel.
// Safe for concurrent use.
type Service struct {
	Repo      domain.Repository
	Provider  domain.Provider
	Extractor domain.ContentExtractor
	Archive   domain.ArchiveStore // nil when archiving is disabled
	Errors    audit.Repository
	Clock     application.Clock
	Log       *zap.Logger

	Country  string
	PageSize int
}

// FetchLatestCommand narrows one ingestion run.
type FetchLatestCommand struct {
	Category string // empty = all default categories
	Country  string // empty = configured default
	Limit    int    // max new rows to create, capped at 100
}

// FetchLatestResult summarizes one ingestion run.
type FetchLatestResult struct {
	Fetched    int      `json:"fetched"`
	Created    int      `json:"created"`
	Skipped    int      `json:"skipped"`
	Categories []string `json:"categories"`
}

// EnsureDefaultCategories creates any missing default category rows.
// Idempotent; called at startup.
func (s *Service) EnsureDefaultCategories(ctx context.Context) error {
	for _, c := range DefaultCategories {
		if _, err := s.Repo.GetOrCreateCategory(ctx, c.Slug, c.Name, c.Description); err != nil {
			return fmt.Errorf("seed category %s: %w", c.Slug, err)
		}
	}
	return nil
}

// FetchLatest pulls top headlines from the provider and stores the articles
// that are new. Existing URLs are skipped; one bad article never aborts the
// run.
func (s *Service) FetchLatest(ctx context.Context, cmd FetchLatestCommand) (FetchLatestResult, error) {
	categories := []string{cmd.Category}
	if cmd.Category == "" {
		categories = make([]string, 0, len(DefaultCategories))
		for _, c := range DefaultCategories {
			categories = append(categories, c.Slug)
		}
	}
	country := cmd.Country
	if country == "" {
		country = s.Country
	}
	limit := cmd.Limit
	if limit <= 0 || limit > maxFetchPerRequest {
		limit = maxFetchPerRequest
	}
	pageSize := s.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	res := FetchLatestResult{Categories: categories}
	for _, cat := range categories {
		if res.Created >= limit {
			break
		}
		resp, err := s.Provider.TopHeadlines(ctx, cat, country, pageSize)
		if err != nil {
			s.recordFailure(ctx, "top-headlines", cat, err, nil)
			if errors.Is(err, domain.ErrInvalidKey) || errors.Is(err, domain.ErrRateLimited) {
				return res, err
			}
			continue
		}
		s.archiveRaw(ctx, "top-headlines", cat, resp.Raw)

		created, skipped := s.storeBatch(ctx, resp.Articles, cat, limit-res.Created)
		res.Fetched += len(resp.Articles)
		res.Created += created
		res.Skipped += skipped
	}

	s.Log.Info("ingestion run finished",
		zap.Int("fetched", res.Fetched),
		zap.Int("created", res.Created),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// Search queries the provider's archive endpoint and stores anything new
// under the general category.
func (s *Service) Search(ctx context.Context, query string, from time.Time, limit int) (FetchLatestResult, error) {
	if strings.TrimSpace(query) == "" {
		return FetchLatestResult{}, fmt.Errorf("search query is required")
	}
	if limit <= 0 || limit > maxFetchPerRequest {
		limit = maxFetchPerRequest
	}
	pageSize := s.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	resp, err := s.Provider.Everything(ctx, query, from, "publishedAt", pageSize)
	if err != nil {
		s.recordFailure(ctx, "everything", query, err, nil)
		return FetchLatestResult{}, err
	}
	s.archiveRaw(ctx, "everything", query, resp.Raw)

	created, skipped := s.storeBatch(ctx, resp.Articles, "general", limit)
	return FetchLatestResult{
		Fetched:    len(resp.Articles),
		Created:    created,
		Skipped:    skipped,
		Categories: []string{"general"},
	}, nil
}

func (s *Service) storeBatch(ctx context.Context, items []domain.ProviderArticle, categorySlug string, limit int) (created, skipped int) {
	catName := categorySlug
	for _, c := range DefaultCategories {
		if c.Slug == categorySlug {
			catName = c.Name
			break
		}
	}

	for _, item := range items {
		if created >= limit {
			break
		}
		if item.URL == "" || item.Title == "" {
			skipped++
			continue
		}
		exists, err := s.Repo.URLExists(ctx, item.URL)
		if err != nil {
			s.Log.Warn("url lookup failed", zap.String("url", item.URL), zap.Error(err))
			skipped++
			continue
		}
		if exists {
			skipped++
			continue
		}

		category, err := s.Repo.GetOrCreateCategory(ctx, categorySlug, catName, "")
		if err != nil {
			s.Log.Warn("category lookup failed", zap.String("category", categorySlug), zap.Error(err))
			skipped++
			continue
		}
		source, err := s.Repo.GetOrCreateSource(ctx, item.SourceName, "")
		if err != nil {
			s.Log.Warn("source lookup failed", zap.String("source", item.SourceName), zap.Error(err))
			skipped++
			continue
		}

		a := s.buildArticle(ctx, item, source, category)
		if err := s.Repo.SaveArticle(ctx, a); err != nil {
			if errors.Is(err, domain.ErrDuplicateURL) {
				// concurrent ingestion won the race, not an error
				skipped++
				continue
			}
			s.Log.Warn("article insert failed", zap.String("url", item.URL), zap.Error(err))
			skipped++
			continue
		}
		created++
	}
	return created, skipped
}

func (s *Service) buildArticle(ctx context.Context, item domain.ProviderArticle, source *domain.Source, category *domain.Category) *domain.Article {
	now := s.Clock.Now()

	published := now
	if item.PublishedAt != "" {
		if t, err := time.Parse(time.RFC3339, item.PublishedAt); err == nil {
			published = t
		}
	}

	content := item.Content
	if s.Extractor != nil && (content == "" || strings.Contains(content, truncationMarker)) {
		extracted, err := s.Extractor.Extract(ctx, item.URL)
		if err != nil {
			// extraction is best effort; keep the provider snippet
			s.Log.Debug("content extraction failed", zap.String("url", item.URL), zap.Error(err))
		} else if len(extracted) > len(content) {
			content = extracted
		}
	}

	return &domain.Article{
		ID:           domain.ArticleID(uuid.New().String()),
		Title:        item.Title,
		Description:  item.Description,
		Content:      content,
		URL:          item.URL,
		URLToImage:   item.URLToImage,
		Author:       item.Author,
		SourceID:     source.ID,
		SourceName:   source.Name,
		CategoryID:   category.ID,
		CategorySlug: category.Slug,
		PublishedAt:  published,
		Language:     "en",
		CreatedAt:    now,
	}
}

func (s *Service) archiveRaw(ctx context.Context, operation, subject string, payload []byte) {
	if s.Archive == nil || len(payload) == 0 {
		return
	}
	key := fmt.Sprintf("newsapi/%s/%s/%s.json",
		operation, s.Clock.Now().UTC().Format("2006/01/02"), uuid.New().String())
	if _, err := s.Archive.ArchivePayload(ctx, key, payload, "application/json"); err != nil {
		s.Log.Warn("payload archive failed",
			zap.String("operation", operation),
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}

func (s *Service) recordFailure(ctx context.Context, operation, subject string, cause error, details any) {
	s.Log.Error("provider call failed",
		zap.String("operation", operation),
		zap.String("subject", subject),
		zap.Error(cause),
	)
	if s.Errors == nil {
		return
	}
	var detailsJSON string
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			detailsJSON = string(b)
		}
	}
	entry := &audit.ExternalError{
		Component:   "newsapi",
		Operation:   operation,
		Subject:     subject,
		Message:     cause.Error(),
		DetailsJSON: detailsJSON,
		CreatedAt:   s.Clock.Now(),
	}
	if err := s.Errors.Save(ctx, entry); err != nil {
		s.Log.Warn("failure entry not persisted", zap.Error(err))
	}
}

//
// ==== READ SIDE ====
//

// List returns one page of articles with per-user has_analysis flags.
// Page size is capped at 100.
func (s *Service) List(ctx context.Context, f domain.ListFilter, forUser string, page, pageSize int) (domain.PaginatedResult, error) {
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return s.Repo.List(ctx, f, forUser, page, pageSize)
}

// Get returns one article by id.
func (s *Service) Get(ctx context.Context, id domain.ArticleID, forUser string) (*domain.Article, error) {
	return s.Repo.GetArticle(ctx, id, forUser)
}

// Trending returns the articles most analyzed in the last 24 hours.
func (s *Service) Trending(ctx context.Context, limit int) ([]*domain.Article, error) {
	since := s.Clock.Now().Add(-24 * time.Hour)
	return s.Repo.Trending(ctx, since, limit)
}

// Categories lists categories with their article counts.
func (s *Service) Categories(ctx context.Context) ([]*domain.Category, error) {
	return s.Repo.ListCategories(ctx)
}

// Sources lists sources that have at least one article.
func (s *Service) Sources(ctx context.Context) ([]*domain.Source, error) {
	return s.Repo.ListSources(ctx)
}

// MarkRead records that the user opened the article. Idempotent.
func (s *Service) MarkRead(ctx context.Context, userID string, id domain.ArticleID) (bool, error) {
	// article must exist first
	if _, err := s.Repo.GetArticle(ctx, id, userID); err != nil {
		return false, err
	}
	return s.Repo.MarkRead(ctx, userID, id, s.Clock.Now())
}

// RecentReads returns the user's recently opened articles, newest first.
func (s *Service) RecentReads(ctx context.Context, userID string, limit int) ([]*domain.ReadArticle, error) {
	return s.Repo.RecentReads(ctx, userID, limit)
}

// ClearReadHistory deletes the user's read history and returns how many
// entries were removed.
func (s *Service) ClearReadHistory(ctx context.Context, userID string) (int64, error) {
	n, err := s.Repo.ClearReads(ctx, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.Log.Info("read history cleared", zap.String("user", userID), zap.Int64("entries", n))
	}
	return n, nil
}
