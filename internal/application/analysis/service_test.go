package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	domain "github.com/bryanwahyu/newslens/internal/domain/analysis"
	auth "github.com/bryanwahyu/newslens/internal/domain/auth"
	news "github.com/bryanwahyu/newslens/internal/domain/news"
)

type fakeAnalysisRepo struct {
	mu   sync.Mutex
	rows map[string]*domain.Analysis // keyed user/article
	byID map[domain.AnalysisID]*domain.Analysis
}

func newFakeAnalysisRepo() *fakeAnalysisRepo {
	return &fakeAnalysisRepo{
		rows: map[string]*domain.Analysis{},
		byID: map[domain.AnalysisID]*domain.Analysis{},
	}
}

func pairKey(userID, articleID string) string { return userID + "/" + articleID }

func (f *fakeAnalysisRepo) Save(_ context.Context, a *domain.Analysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := pairKey(a.UserID, a.ArticleID)
	if _, dup := f.rows[key]; dup {
		return domain.ErrDuplicateAnalysis
	}
	f.rows[key] = a
	f.byID[a.ID] = a
	return nil
}

func (f *fakeAnalysisRepo) Get(_ context.Context, id domain.AnalysisID) (*domain.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

func (f *fakeAnalysisRepo) GetByUserArticle(_ context.Context, userID, articleID string) (*domain.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[pairKey(userID, articleID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

func (f *fakeAnalysisRepo) Paginate(_ context.Context, userID string, _ domain.ListFilter, page, pageSize int) (domain.PaginatedResult, error) {
	list, _ := f.ListForUser(context.Background(), userID, 0)
	return domain.PaginatedResult{Data: list, Page: page, PageSize: pageSize, Total: int64(len(list))}, nil
}

func (f *fakeAnalysisRepo) ListForUser(_ context.Context, userID string, _ int) ([]*domain.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Analysis
	for _, a := range f.rows {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeArticles struct {
	articles map[string]*news.Article
}

func (f *fakeArticles) SaveArticle(context.Context, *news.Article) error { return nil }
func (f *fakeArticles) GetArticle(_ context.Context, id news.ArticleID, _ string) (*news.Article, error) {
	a, ok := f.articles[string(id)]
	if !ok {
		return nil, news.ErrNotFound
	}
	return a, nil
}
func (f *fakeArticles) URLExists(context.Context, string) (bool, error) { return false, nil }
func (f *fakeArticles) List(context.Context, news.ListFilter, string, int, int) (news.PaginatedResult, error) {
	return news.PaginatedResult{}, nil
}
func (f *fakeArticles) Trending(context.Context, time.Time, int) ([]*news.Article, error) {
	return nil, nil
}
func (f *fakeArticles) GetOrCreateSource(context.Context, string, string) (*news.Source, error) {
	return nil, nil
}
func (f *fakeArticles) GetOrCreateCategory(context.Context, string, string, string) (*news.Category, error) {
	return nil, nil
}
func (f *fakeArticles) ListSources(context.Context) ([]*news.Source, error)       { return nil, nil }
func (f *fakeArticles) ListCategories(context.Context) ([]*news.Category, error)  { return nil, nil }
func (f *fakeArticles) MarkRead(context.Context, string, news.ArticleID, time.Time) (bool, error) {
	return false, nil
}
func (f *fakeArticles) ClearReads(context.Context, string) (int64, error) { return 0, nil }

func (f *fakeArticles) RecentReads(context.Context, string, int) ([]*news.ReadArticle, error) {
	return nil, nil
}

type fakeUsers struct {
	auth.Repository
	mu    sync.Mutex
	bumps int
}

func (f *fakeUsers) BumpAnalysisStats(context.Context, string, time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bumps++
	return nil
}

type fakeClient struct {
	mu     sync.Mutex
	calls  int
	result *domain.Result
	err    error
}

func (c *fakeClient) AnalyzeArticle(context.Context, string, string, string) (*domain.Result, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, nil, c.err
	}
	r := *c.result
	return &r, []byte(`{"political_bias":{}}`), nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func testResult() *domain.Result {
	return &domain.Result{
		Bias:             domain.BiasLeft,
		BiasConfidence:   0.9,
		Positive:         0.1,
		Negative:         0.6,
		Neutral:          0.3,
		OverallSentiment: -0.5,
		EmotionalTone:    "critical",
		PrimaryTopics:    []string{"economy"},
		TopicWeights:     map[string]float64{"economy": 1},
		KeyThemes:        []string{"inflation"},
		Controversy:      0.7,
	}
}

func newTestService(repo *fakeAnalysisRepo, client *fakeClient, users *fakeUsers) *Service {
	articles := &fakeArticles{articles: map[string]*news.Article{
		"a1": {ID: "a1", Title: "Budget vote", Description: "d", Content: "c", CategorySlug: "politics"},
	}}
	return &Service{
		Repo:     repo,
		Articles: articles,
		Users:    users,
		Client:   client,
		Clock:    fixedClock{t: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)},
		Log:      zap.NewNop(),
	}
}

func TestListCapsPageSize(t *testing.T) {
	t.Parallel()

	repo := newFakeAnalysisRepo()
	svc := &Service{Repo: repo, Clock: fixedClock{t: time.Now()}, Log: zap.NewNop()}

	page, err := svc.List(context.Background(), "u1", domain.ListFilter{}, 1, 100000)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if page.PageSize != 100 {
		t.Fatalf("page size = %d, want capped at 100", page.PageSize)
	}
}

func TestAnalyzeArticleCreatesRow(t *testing.T) {
	t.Parallel()

	repo := newFakeAnalysisRepo()
	client := &fakeClient{result: testResult()}
	users := &fakeUsers{}
	svc := newTestService(repo, client, users)

	res, err := svc.AnalyzeArticle(context.Background(), "u1", "a1")
	if err != nil {
		t.Fatalf("AnalyzeArticle error: %v", err)
	}
	if res.Existing {
		t.Fatal("fresh analysis reported as existing")
	}
	a := res.Analysis
	if a.Bias != domain.BiasLeft || a.BiasScore != -0.66 {
		t.Fatalf("bias %s score %v", a.Bias, a.BiasScore)
	}
	if a.ArticleTitle != "Budget vote" || a.ArticleCategory != "politics" {
		t.Fatalf("denormalized fields wrong: %+v", a)
	}
	if len(a.RawResponse) == 0 {
		t.Fatal("raw response not kept")
	}
	if users.bumps != 1 {
		t.Fatalf("profile bumped %d times, want 1", users.bumps)
	}
}

func TestAnalyzeArticleDedupSkipsModel(t *testing.T) {
	t.Parallel()

	repo := newFakeAnalysisRepo()
	client := &fakeClient{result: testResult()}
	svc := newTestService(repo, client, &fakeUsers{})

	first, err := svc.AnalyzeArticle(context.Background(), "u1", "a1")
	if err != nil {
		t.Fatalf("first analyze: %v", err)
	}
	second, err := svc.AnalyzeArticle(context.Background(), "u1", "a1")
	if err != nil {
		t.Fatalf("second analyze: %v", err)
	}
	if !second.Existing {
		t.Fatal("second call should return the stored row")
	}
	if second.Analysis.ID != first.Analysis.ID {
		t.Fatal("second call returned a different row")
	}
	if client.calls != 1 {
		t.Fatalf("model called %d times, want 1", client.calls)
	}
}

func TestAnalyzeArticlePerUserRows(t *testing.T) {
	t.Parallel()

	repo := newFakeAnalysisRepo()
	client := &fakeClient{result: testResult()}
	svc := newTestService(repo, client, &fakeUsers{})

	r1, err := svc.AnalyzeArticle(context.Background(), "u1", "a1")
	if err != nil {
		t.Fatalf("u1 analyze: %v", err)
	}
	r2, err := svc.AnalyzeArticle(context.Background(), "u2", "a1")
	if err != nil {
		t.Fatalf("u2 analyze: %v", err)
	}
	if r2.Existing {
		t.Fatal("second user's analysis must be independent")
	}
	if r1.Analysis.ID == r2.Analysis.ID {
		t.Fatal("both users share one row")
	}
	if client.calls != 2 {
		t.Fatalf("model called %d times, want 2", client.calls)
	}
}

func TestAnalyzeArticleModelFailure(t *testing.T) {
	t.Parallel()

	repo := newFakeAnalysisRepo()
	client := &fakeClient{err: domain.ErrQuotaExceeded}
	svc := newTestService(repo, client, &fakeUsers{})

	_, err := svc.AnalyzeArticle(context.Background(), "u1", "a1")
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("got %v, want ErrQuotaExceeded", err)
	}
	if len(repo.rows) != 0 {
		t.Fatal("failed call must not persist a row")
	}
}

func TestGetEnforcesOwnership(t *testing.T) {
	t.Parallel()

	repo := newFakeAnalysisRepo()
	svc := newTestService(repo, &fakeClient{result: testResult()}, &fakeUsers{})

	res, err := svc.AnalyzeArticle(context.Background(), "u1", "a1")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	owner := &auth.User{ID: "u1"}
	stranger := &auth.User{ID: "u2"}
	admin := &auth.User{ID: "u3", IsAdmin: true}

	if _, err := svc.Get(context.Background(), owner, res.Analysis.ID); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	if _, err := svc.Get(context.Background(), stranger, res.Analysis.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("stranger read: got %v, want ErrForbidden", err)
	}
	if _, err := svc.Get(context.Background(), admin, res.Analysis.ID); err != nil {
		t.Fatalf("admin read: %v", err)
	}
}

func TestUserStats(t *testing.T) {
	t.Parallel()

	repo := newFakeAnalysisRepo()
	clock := fixedClock{t: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)}
	seed := []*domain.Analysis{
		{ID: "1", UserID: "u1", ArticleID: "a1", Bias: domain.BiasLeft, BiasScore: -0.66,
			BiasConfidence: 0.8, OverallSentiment: -0.4, Controversy: 0.7,
			PrimaryTopics: []string{"economy", "politics"}, CreatedAt: clock.t},
		{ID: "2", UserID: "u1", ArticleID: "a2", Bias: domain.BiasCenter, BiasScore: 0,
			BiasConfidence: 0.6, OverallSentiment: 0.2, Controversy: 0.1,
			PrimaryTopics: []string{"economy"}, CreatedAt: clock.t.AddDate(0, -1, 0)},
	}
	for _, a := range seed {
		if err := repo.Save(context.Background(), a); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	svc := &Service{Repo: repo, Clock: clock, Log: zap.NewNop()}

	st, err := svc.UserStats(context.Background(), "u1")
	if err != nil {
		t.Fatalf("UserStats error: %v", err)
	}
	if st.TotalAnalyses != 2 {
		t.Fatalf("total = %d", st.TotalAnalyses)
	}
	if st.BiasDistribution["left"] != 1 || st.BiasDistribution["center"] != 1 {
		t.Fatalf("distribution = %v", st.BiasDistribution)
	}
	if st.AvgBiasScore != -0.33 {
		t.Fatalf("avg bias = %v", st.AvgBiasScore)
	}
	if st.ControversialCount != 1 {
		t.Fatalf("controversial = %d", st.ControversialCount)
	}
	if len(st.TopTopics) == 0 || st.TopTopics[0].Topic != "economy" || st.TopTopics[0].Count != 2 {
		t.Fatalf("top topics = %v", st.TopTopics)
	}
	if len(st.AnalysesByMonth) != 2 {
		t.Fatalf("by month = %v", st.AnalysesByMonth)
	}

	empty, err := svc.UserStats(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("empty stats error: %v", err)
	}
	if empty.TotalAnalyses != 0 || empty.BiasDistribution == nil {
		t.Fatalf("empty stats malformed: %+v", empty)
	}
}

func TestControversialFilter(t *testing.T) {
	t.Parallel()

	repo := newFakeAnalysisRepo()
	clock := fixedClock{t: time.Now()}
	for i, c := range []float64{0.2, 0.6, 0.9} {
		a := &domain.Analysis{
			ID: domain.AnalysisID(string(rune('a' + i))), UserID: "u1",
			ArticleID: string(rune('x' + i)), Bias: domain.BiasCenter,
			Controversy: c, CreatedAt: clock.t,
		}
		if err := repo.Save(context.Background(), a); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	svc := &Service{Repo: repo, Clock: clock, Log: zap.NewNop()}

	list, err := svc.Controversial(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("Controversial error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d rows, want 2 at threshold %v", len(list), ControversyThreshold)
	}
	if list[0].Controversy != 0.9 {
		t.Fatalf("not sorted by controversy: %v", list[0].Controversy)
	}
}

func TestTrendingTopicsWindow(t *testing.T) {
	t.Parallel()

	clock := fixedClock{t: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)}
	repo := newFakeAnalysisRepo()
	recent := &domain.Analysis{ID: "r", UserID: "u1", ArticleID: "a1", Bias: domain.BiasCenter,
		PrimaryTopics: []string{"ai"}, Controversy: 0.5, CreatedAt: clock.t.AddDate(0, 0, -1)}
	old := &domain.Analysis{ID: "o", UserID: "u1", ArticleID: "a2", Bias: domain.BiasCenter,
		PrimaryTopics: []string{"crypto"}, Controversy: 0.5, CreatedAt: clock.t.AddDate(0, 0, -30)}
	for _, a := range []*domain.Analysis{recent, old} {
		if err := repo.Save(context.Background(), a); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	svc := &Service{Repo: repo, Clock: clock, Log: zap.NewNop()}

	topics, err := svc.TrendingTopics(context.Background(), "u1", 7, 10)
	if err != nil {
		t.Fatalf("TrendingTopics error: %v", err)
	}
	if len(topics) != 1 || topics[0].Topic != "ai" {
		t.Fatalf("topics = %v, want only the recent one", topics)
	}
	if topics[0].AvgControversy != 0.5 {
		t.Fatalf("avg controversy = %v", topics[0].AvgControversy)
	}
}
