package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	appnews "github.com/bryanwahyu/newslens/internal/application/news"
	domnews "github.com/bryanwahyu/newslens/internal/domain/news"
	"github.com/bryanwahyu/newslens/internal/middleware"
)

// GET /api/articles?category=&source=&search=&date_from=&date_to=&sort=&page=&page_size=
func (r *Router) handleListArticles(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()

	f := domnews.ListFilter{
		CategorySlug: q.Get("category"),
		Source:       middleware.SanitizeString(q.Get("source")),
		Search:       middleware.SanitizeString(q.Get("search")),
		SortBy:       q.Get("sort"),
	}
	if err := middleware.ValidateCategorySlug(f.CategorySlug); err != nil {
		return badRequest(err)
	}
	if err := middleware.ValidateSort(f.SortBy); err != nil {
		return badRequest(err)
	}
	var err error
	if f.FromDate, err = middleware.ParseDate(q.Get("date_from")); err != nil {
		return badRequest(err)
	}
	if f.ToDate, err = middleware.ParseDate(q.Get("date_to")); err != nil {
		return badRequest(err)
	}

	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))

	res, err := r.newsSvc.List(req.Context(), f, userID(req), page, size)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

// GET /api/articles/{id}
func (r *Router) handleGetArticle(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	a, err := r.newsSvc.Get(req.Context(), domnews.ArticleID(id), userID(req))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, a)
}

// GET /api/articles/trending?limit=
func (r *Router) handleTrendingArticles(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	list, err := r.newsSvc.Trending(req.Context(), limit)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*domnews.Article{}
	}
	return writeJSON(w, http.StatusOK, map[string]any{"data": list})
}

// GET /api/articles/categories
func (r *Router) handleCategories(w http.ResponseWriter, req *http.Request) error {
	list, err := r.newsSvc.Categories(req.Context())
	if err != nil {
		return err
	}
	if list == nil {
		list = []*domnews.Category{}
	}
	return writeJSON(w, http.StatusOK, map[string]any{"data": list})
}

// GET /api/articles/sources
func (r *Router) handleSources(w http.ResponseWriter, req *http.Request) error {
	list, err := r.newsSvc.Sources(req.Context())
	if err != nil {
		return err
	}
	if list == nil {
		list = []*domnews.Source{}
	}
	return writeJSON(w, http.StatusOK, map[string]any{"data": list})
}

// POST /api/articles/fetch_latest
// Body: {"category": "...", "country": "...", "limit": 50} (all optional)
func (r *Router) handleFetchLatest(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Category string `json:"category"`
		Country  string `json:"country"`
		Limit    int    `json:"limit"`
	}
	if req.Body != nil && req.ContentLength != 0 {
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			return badRequest(fmt.Errorf("invalid request body: %w", err))
		}
	}
	if err := middleware.ValidateCategorySlug(body.Category); err != nil {
		return badRequest(err)
	}

	res, err := r.newsSvc.FetchLatest(req.Context(), appnews.FetchLatestCommand{
		Category: body.Category,
		Country:  body.Country,
		Limit:    body.Limit,
	})
	if err != nil {
		return err
	}
	middleware.AddArticlesIngested(res.Created)
	return writeJSON(w, http.StatusOK, res)
}

// POST /api/articles/search
// Body: {"query": "...", "from": "2026-01-01", "limit": 50}
func (r *Router) handleSearchArticles(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Query string `json:"query"`
		From  string `json:"from"`
		Limit int    `json:"limit"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest(fmt.Errorf("invalid request body: %w", err))
	}
	if body.Query == "" {
		return badRequest(fmt.Errorf("query is required"))
	}
	from, err := middleware.ParseDate(body.From)
	if err != nil {
		return badRequest(err)
	}
	if from.IsZero() {
		from = time.Now().AddDate(0, 0, -7)
	}

	res, err := r.newsSvc.Search(req.Context(), body.Query, from, body.Limit)
	if err != nil {
		return err
	}
	middleware.AddArticlesIngested(res.Created)
	return writeJSON(w, http.StatusOK, res)
}

// POST /api/articles/{id}/mark_as_read
func (r *Router) handleMarkRead(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	created, err := r.newsSvc.MarkRead(req.Context(), userID(req), domnews.ArticleID(id))
	if err != nil {
		return err
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return writeJSON(w, status, map[string]any{"article_id": id, "read": true})
}

// GET /api/articles/read/recent?limit=
func (r *Router) handleRecentReads(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	reads, err := r.newsSvc.RecentReads(req.Context(), userID(req), limit)
	if err != nil {
		return err
	}
	if reads == nil {
		reads = []*domnews.ReadArticle{}
	}
	return writeJSON(w, http.StatusOK, map[string]any{"data": reads})
}

// DELETE /api/articles/read/history
func (r *Router) handleClearReadHistory(w http.ResponseWriter, req *http.Request) error {
	n, err := r.newsSvc.ClearReadHistory(req.Context(), userID(req))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"deleted_count": n})
}
