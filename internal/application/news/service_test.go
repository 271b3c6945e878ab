package news

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/newslens/internal/application"
	domain "github.com/bryanwahyu/newslens/internal/domain/news"
)

type fakeRepo struct {
	mu         sync.Mutex
	articles   map[string]*domain.Article
	byURL      map[string]string
	sources    map[string]*domain.Source
	categories map[string]*domain.Category
	reads      map[string]time.Time
	nextID     int64
	catErr     error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		articles:   map[string]*domain.Article{},
		byURL:      map[string]string{},
		sources:    map[string]*domain.Source{},
		categories: map[string]*domain.Category{},
		reads:      map[string]time.Time{},
	}
}

func (f *fakeRepo) SaveArticle(_ context.Context, a *domain.Article) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, dup := f.byURL[a.URL]; dup {
		return domain.ErrDuplicateURL
	}
	f.articles[string(a.ID)] = a
	f.byURL[a.URL] = string(a.ID)
	return nil
}

func (f *fakeRepo) GetArticle(_ context.Context, id domain.ArticleID, _ string) (*domain.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.articles[string(id)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

func (f *fakeRepo) URLExists(_ context.Context, url string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byURL[url]
	return ok, nil
}

func (f *fakeRepo) List(_ context.Context, _ domain.ListFilter, _ string, page, pageSize int) (domain.PaginatedResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := domain.PaginatedResult{Page: page, PageSize: pageSize, Total: int64(len(f.articles))}
	for _, a := range f.articles {
		out.Data = append(out.Data, a)
	}
	return out, nil
}

func (f *fakeRepo) Trending(context.Context, time.Time, int) ([]*domain.Article, error) {
	return nil, nil
}

func (f *fakeRepo) GetOrCreateSource(_ context.Context, name, description string) (*domain.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sources[name]; ok {
		return s, nil
	}
	f.nextID++
	s := &domain.Source{ID: f.nextID, Name: name, Description: description}
	f.sources[name] = s
	return s, nil
}

func (f *fakeRepo) GetOrCreateCategory(_ context.Context, slug, name, description string) (*domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.catErr != nil {
		return nil, f.catErr
	}
	if c, ok := f.categories[slug]; ok {
		return c, nil
	}
	f.nextID++
	c := &domain.Category{ID: f.nextID, Slug: slug, Name: name, Description: description}
	f.categories[slug] = c
	return c, nil
}

func (f *fakeRepo) ListSources(context.Context) ([]*domain.Source, error) {
	return nil, nil
}

func (f *fakeRepo) ListCategories(context.Context) ([]*domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Category
	for _, c := range f.categories {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeRepo) MarkRead(_ context.Context, userID string, id domain.ArticleID, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := userID + "/" + string(id)
	if _, ok := f.reads[key]; ok {
		return false, nil
	}
	f.reads[key] = at
	return true, nil
}

func (f *fakeRepo) RecentReads(context.Context, string, int) ([]*domain.ReadArticle, error) {
	return nil, nil
}

func (f *fakeRepo) ClearReads(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for key := range f.reads {
		if strings.HasPrefix(key, userID+"/") {
			delete(f.reads, key)
			n++
		}
	}
	return n, nil
}

type fakeProvider struct {
	mu       sync.Mutex
	articles []domain.ProviderArticle
	calls    int
	err      error
}

func (p *fakeProvider) TopHeadlines(_ context.Context, category, country string, pageSize int) (*domain.ProviderResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &domain.ProviderResponse{
		TotalResults: len(p.articles),
		Articles:     p.articles,
		Raw:          []byte(`{"status":"ok"}`),
	}, nil
}

func (p *fakeProvider) Everything(ctx context.Context, query string, from time.Time, sortBy string, pageSize int) (*domain.ProviderResponse, error) {
	return p.TopHeadlines(ctx, "", "", pageSize)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var _ application.Clock = fixedClock{}

func providerArticles(n int) []domain.ProviderArticle {
	out := make([]domain.ProviderArticle, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.ProviderArticle{
			SourceName:  "Example Times",
			Title:       fmt.Sprintf("Story %d", i),
			Description: "desc",
			URL:         fmt.Sprintf("https://example.com/story-%d", i),
			PublishedAt: "2026-08-30T10:00:00Z",
			Content:     "full text",
		})
	}
	return out
}

func newService(repo *fakeRepo, provider *fakeProvider) *Service {
	return &Service{
		Repo:     repo,
		Provider: provider,
		Clock:    fixedClock{t: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)},
		Log:      zap.NewNop(),
		Country:  "us",
		PageSize: 50,
	}
}

func TestFetchLatestStoresNewArticles(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	provider := &fakeProvider{articles: providerArticles(3)}
	svc := newService(repo, provider)

	res, err := svc.FetchLatest(context.Background(), FetchLatestCommand{Category: "technology"})
	if err != nil {
		t.Fatalf("FetchLatest error: %v", err)
	}
	if res.Created != 3 || res.Skipped != 0 {
		t.Fatalf("created=%d skipped=%d", res.Created, res.Skipped)
	}

	a := repo.articles[repo.byURL["https://example.com/story-0"]]
	if a.SourceName != "Example Times" {
		t.Fatalf("source not resolved: %+v", a)
	}
	if a.CategorySlug != "technology" {
		t.Fatalf("category not attached: %+v", a)
	}
	if !a.PublishedAt.Equal(time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("published_at not parsed: %v", a.PublishedAt)
	}
}

func TestFetchLatestIsIdempotent(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	provider := &fakeProvider{articles: providerArticles(3)}
	svc := newService(repo, provider)

	if _, err := svc.FetchLatest(context.Background(), FetchLatestCommand{Category: "general"}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	res, err := svc.FetchLatest(context.Background(), FetchLatestCommand{Category: "general"})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Created != 0 {
		t.Fatalf("re-ingest created %d rows, want 0", res.Created)
	}
	if res.Skipped != 3 {
		t.Fatalf("re-ingest skipped %d, want 3", res.Skipped)
	}
	if len(repo.articles) != 3 {
		t.Fatalf("store holds %d articles, want 3", len(repo.articles))
	}
}

func TestFetchLatestSkipsIncompleteItems(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	provider := &fakeProvider{articles: []domain.ProviderArticle{
		{Title: "no url", SourceName: "X"},
		{URL: "https://example.com/no-title", SourceName: "X"},
		{Title: "ok", URL: "https://example.com/ok", SourceName: "X"},
	}}
	svc := newService(repo, provider)

	res, err := svc.FetchLatest(context.Background(), FetchLatestCommand{Category: "general"})
	if err != nil {
		t.Fatalf("FetchLatest error: %v", err)
	}
	if res.Created != 1 || res.Skipped != 2 {
		t.Fatalf("created=%d skipped=%d, want 1/2", res.Created, res.Skipped)
	}
}

func TestFetchLatestCategoryFailureSkipsItem(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.catErr = fmt.Errorf("db down")
	provider := &fakeProvider{articles: providerArticles(3)}
	svc := newService(repo, provider)

	res, err := svc.FetchLatest(context.Background(), FetchLatestCommand{Category: "general"})
	if err != nil {
		t.Fatalf("FetchLatest error: %v", err)
	}
	// every item is attempted and counted, not just the first
	if res.Created != 0 || res.Skipped != 3 {
		t.Fatalf("created=%d skipped=%d, want 0/3", res.Created, res.Skipped)
	}
}

func TestFetchLatestTimestampFallback(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	provider := &fakeProvider{articles: []domain.ProviderArticle{
		{Title: "bad ts", URL: "https://example.com/bad-ts", SourceName: "X", PublishedAt: "yesterday"},
	}}
	svc := newService(repo, provider)

	if _, err := svc.FetchLatest(context.Background(), FetchLatestCommand{Category: "general"}); err != nil {
		t.Fatalf("FetchLatest error: %v", err)
	}
	a := repo.articles[repo.byURL["https://example.com/bad-ts"]]
	if !a.PublishedAt.Equal(svc.Clock.Now()) {
		t.Fatalf("unparseable timestamp should fall back to now, got %v", a.PublishedAt)
	}
}

func TestFetchLatestAllCategories(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	provider := &fakeProvider{}
	svc := newService(repo, provider)

	res, err := svc.FetchLatest(context.Background(), FetchLatestCommand{})
	if err != nil {
		t.Fatalf("FetchLatest error: %v", err)
	}
	if len(res.Categories) != len(DefaultCategories) {
		t.Fatalf("queried %d categories, want %d", len(res.Categories), len(DefaultCategories))
	}
	if provider.calls != len(DefaultCategories) {
		t.Fatalf("provider called %d times, want %d", provider.calls, len(DefaultCategories))
	}
}

func TestFetchLatestStopsOnAuthError(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	provider := &fakeProvider{err: domain.ErrInvalidKey}
	svc := newService(repo, provider)

	_, err := svc.FetchLatest(context.Background(), FetchLatestCommand{})
	if err != domain.ErrInvalidKey {
		t.Fatalf("got %v, want ErrInvalidKey", err)
	}
	if provider.calls != 1 {
		t.Fatalf("provider called %d times after fatal error, want 1", provider.calls)
	}
}

func TestEnsureDefaultCategories(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	svc := newService(repo, &fakeProvider{})

	if err := svc.EnsureDefaultCategories(context.Background()); err != nil {
		t.Fatalf("seed error: %v", err)
	}
	// second call must not duplicate
	if err := svc.EnsureDefaultCategories(context.Background()); err != nil {
		t.Fatalf("re-seed error: %v", err)
	}
	cats, _ := repo.ListCategories(context.Background())
	if len(cats) != len(DefaultCategories) {
		t.Fatalf("got %d categories, want %d", len(cats), len(DefaultCategories))
	}
}

func TestMarkReadRequiresArticle(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	svc := newService(repo, &fakeProvider{})

	if _, err := svc.MarkRead(context.Background(), "u1", "missing"); err != domain.ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}

	a := &domain.Article{ID: "a1", Title: "t", URL: "https://example.com/a1"}
	if err := repo.SaveArticle(context.Background(), a); err != nil {
		t.Fatalf("seed article: %v", err)
	}
	created, err := svc.MarkRead(context.Background(), "u1", "a1")
	if err != nil || !created {
		t.Fatalf("first mark: created=%v err=%v", created, err)
	}
	created, err = svc.MarkRead(context.Background(), "u1", "a1")
	if err != nil || created {
		t.Fatalf("second mark should be idempotent: created=%v err=%v", created, err)
	}
}

func TestClearReadHistory(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	svc := newService(repo, &fakeProvider{})

	for _, id := range []string{"a1", "a2"} {
		a := &domain.Article{ID: domain.ArticleID(id), Title: "t", URL: "https://example.com/" + id}
		if err := repo.SaveArticle(context.Background(), a); err != nil {
			t.Fatalf("seed article: %v", err)
		}
		if _, err := svc.MarkRead(context.Background(), "u1", domain.ArticleID(id)); err != nil {
			t.Fatalf("mark %s: %v", id, err)
		}
	}
	if _, err := svc.MarkRead(context.Background(), "u2", "a1"); err != nil {
		t.Fatalf("mark for other user: %v", err)
	}

	n, err := svc.ClearReadHistory(context.Background(), "u1")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n != 2 {
		t.Fatalf("cleared %d entries, want 2", n)
	}
	// only u1's history is touched
	if len(repo.reads) != 1 {
		t.Fatalf("%d read rows left, want 1", len(repo.reads))
	}

	n, err = svc.ClearReadHistory(context.Background(), "u1")
	if err != nil || n != 0 {
		t.Fatalf("second clear: n=%d err=%v", n, err)
	}
}
