package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	domanalysis "github.com/bryanwahyu/newslens/internal/domain/analysis"
	"github.com/bryanwahyu/newslens/internal/domain/audit"
	"github.com/bryanwahyu/newslens/internal/middleware"
)

// GET /api/analyses?bias=&category=&min_controversy=&date_from=&date_to=&page=&page_size=
func (r *Router) handleListAnalyses(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()

	f := domanalysis.ListFilter{
		Bias:         domanalysis.Bias(q.Get("bias")),
		CategorySlug: q.Get("category"),
	}
	if f.Bias != "" && !f.Bias.Valid() {
		return badRequest(fmt.Errorf("invalid bias: %s", f.Bias))
	}
	if err := middleware.ValidateCategorySlug(f.CategorySlug); err != nil {
		return badRequest(err)
	}
	if raw := q.Get("min_controversy"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			return badRequest(fmt.Errorf("invalid min_controversy: %s", raw))
		}
		f.MinControversy = v
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

	res, err := r.analysisSvc.List(req.Context(), userID(req), f, page, size)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

// POST /api/analyses/analyze
// Body: {"article_id": "<id>"}
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		ArticleID string `json:"article_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest(fmt.Errorf("invalid request body: %w", err))
	}
	if body.ArticleID == "" {
		return badRequest(fmt.Errorf("article_id is required"))
	}

	res, err := r.analysisSvc.AnalyzeArticle(req.Context(), userID(req), body.ArticleID)
	if err != nil {
		middleware.IncrementAnalysesFailed()
		return err
	}
	status := http.StatusCreated
	if res.Existing {
		status = http.StatusOK
	} else {
		middleware.IncrementAnalyses()
	}
	return writeJSON(w, status, res)
}

// GET /api/analyses/{id}
func (r *Router) handleGetAnalysis(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	a, err := r.analysisSvc.Get(req.Context(), middleware.UserFromContext(req.Context()), domanalysis.AnalysisID(id))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, a)
}

// GET /api/analyses/stats
func (r *Router) handleAnalysisStats(w http.ResponseWriter, req *http.Request) error {
	st, err := r.analysisSvc.UserStats(req.Context(), userID(req))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, st)
}

// GET /api/analyses/trending_topics?days=&limit=
func (r *Router) handleTrendingTopics(w http.ResponseWriter, req *http.Request) error {
	days, _ := strconv.Atoi(req.URL.Query().Get("days"))
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	topics, err := r.analysisSvc.TrendingTopics(req.Context(), userID(req), days, limit)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"data": topics})
}

// GET /api/analyses/recent?limit=
func (r *Router) handleRecentAnalyses(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	list, err := r.analysisSvc.Recent(req.Context(), userID(req), limit)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*domanalysis.Analysis{}
	}
	return writeJSON(w, http.StatusOK, map[string]any{"data": list})
}

// GET /api/analyses/controversial?limit=
func (r *Router) handleControversial(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	list, err := r.analysisSvc.Controversial(req.Context(), userID(req), limit)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"data": list})
}

// GET /api/admin/errors?component=&limit=
func (r *Router) handleListErrors(w http.ResponseWriter, req *http.Request) error {
	u := middleware.UserFromContext(req.Context())
	if u == nil || !u.IsAdmin {
		return domanalysis.ErrForbidden
	}
	component := middleware.SanitizeString(req.URL.Query().Get("component"))
	if component == "" {
		return badRequest(fmt.Errorf("component is required"))
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	list, err := r.errors.ListByComponent(req.Context(), component, limit)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*audit.ExternalError{}
	}
	return writeJSON(w, http.StatusOK, map[string]any{"data": list})
}
