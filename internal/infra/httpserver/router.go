package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	appanalysis "github.com/bryanwahyu/newslens/internal/application/analysis"
	appauth "github.com/bryanwahyu/newslens/internal/application/auth"
	appnews "github.com/bryanwahyu/newslens/internal/application/news"
	domanalysis "github.com/bryanwahyu/newslens/internal/domain/analysis"
	"github.com/bryanwahyu/newslens/internal/domain/audit"
	domauth "github.com/bryanwahyu/newslens/internal/domain/auth"
	domnews "github.com/bryanwahyu/newslens/internal/domain/news"
	"github.com/bryanwahyu/newslens/internal/middleware"
)

type Router struct {
	newsSvc      *appnews.Service
	analysisSvc  *appanalysis.Service
	authSvc      *appauth.Service
	errors       audit.Repository
	log          *zap.Logger
	secureCookie bool
}

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins []string
	SecureCookie   bool
	DB             *sql.DB
	Errors         audit.Repository
}

func NewRouter(newsSvc *appnews.Service, analysisSvc *appanalysis.Service, authSvc *appauth.Service, log *zap.Logger, opts Options) http.Handler {
	r := &Router{
		newsSvc:      newsSvc,
		analysisSvc:  analysisSvc,
		authSvc:      authSvc,
		errors:       opts.Errors,
		log:          log,
		secureCookie: opts.SecureCookie,
	}
	mux := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	mux.Use(middleware.Session(authSvc))
	mux.Use(middleware.Logging(log))
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.CSRF)
	mux.Use(middleware.RateLimitMiddleware(60, 2))

	checkers := map[string]middleware.HealthChecker{}
	if opts.DB != nil {
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: opts.DB}
	}
	mux.Get("/health", middleware.HealthHandler(checkers))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(rt chi.Router) {
			rt.Post("/register", r.wrap(r.handleRegister))
			rt.Post("/login", r.wrap(r.handleLogin))
			rt.Post("/logout", r.wrap(r.handleLogout))
			rt.Get("/user", r.wrap(r.handleCurrentUser))

			rt.Group(func(priv chi.Router) {
				priv.Use(middleware.RequireUser)
				priv.Get("/dashboard", r.wrap(r.handleDashboard))
				priv.Get("/profile", r.wrap(r.handleGetProfile))
				priv.Put("/profile", r.wrap(r.handleUpdateProfile))
				priv.Get("/profile/stats", r.wrap(r.handleProfileStats))
				priv.Post("/change_password", r.wrap(r.handleChangePassword))
				priv.Get("/sessions", r.wrap(r.handleListSessions))
				priv.Post("/sessions/terminate_all", r.wrap(r.handleTerminateOtherSessions))
				priv.Post("/sessions/{id}/terminate", r.wrap(r.handleTerminateSession))
			})
		})

		api.Route("/articles", func(rt chi.Router) {
			rt.Get("/", r.wrap(r.handleListArticles))
			rt.Get("/trending", r.wrap(r.handleTrendingArticles))
			rt.Get("/categories", r.wrap(r.handleCategories))
			rt.Get("/sources", r.wrap(r.handleSources))
			rt.Get("/{id}", r.wrap(r.handleGetArticle))

			rt.Group(func(priv chi.Router) {
				priv.Use(middleware.RequireUser)
				priv.Post("/fetch_latest", r.wrap(r.handleFetchLatest))
				priv.Post("/search", r.wrap(r.handleSearchArticles))
				priv.Get("/read/recent", r.wrap(r.handleRecentReads))
				priv.Delete("/read/history", r.wrap(r.handleClearReadHistory))
				priv.Post("/{id}/mark_as_read", r.wrap(r.handleMarkRead))
			})
		})

		api.Route("/analyses", func(rt chi.Router) {
			rt.Use(middleware.RequireUser)
			rt.Get("/", r.wrap(r.handleListAnalyses))
			rt.Post("/analyze", r.wrap(r.handleAnalyze))
			rt.Get("/stats", r.wrap(r.handleAnalysisStats))
			rt.Get("/trending_topics", r.wrap(r.handleTrendingTopics))
			rt.Get("/recent", r.wrap(r.handleRecentAnalyses))
			rt.Get("/controversial", r.wrap(r.handleControversial))
			rt.Get("/{id}", r.wrap(r.handleGetAnalysis))
		})

		api.Route("/admin", func(rt chi.Router) {
			rt.Use(middleware.RequireUser)
			rt.Get("/errors", r.wrap(r.handleListErrors))
		})
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequestError marks caller mistakes that have no dedicated sentinel.
type badRequestError struct{ error }

func badRequest(err error) error { return badRequestError{err} }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		var ve *appauth.ValidationError
		var br badRequestError
		switch {
		case errors.As(err, &ve), errors.As(err, &br):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, domauth.ErrInvalidCredentials), errors.Is(err, domauth.ErrNoSession):
			http.Error(w, err.Error(), http.StatusUnauthorized)
		case errors.Is(err, domanalysis.ErrForbidden):
			http.Error(w, "forbidden", http.StatusForbidden)
		case errors.Is(err, domnews.ErrNotFound), errors.Is(err, domanalysis.ErrNotFound),
			errors.Is(err, domauth.ErrUserNotFound), errors.Is(err, domauth.ErrSessionNotFound),
			errors.Is(err, sql.ErrNoRows):
			http.Error(w, "not found", http.StatusNotFound)
		case errors.Is(err, domauth.ErrDuplicateUsername), errors.Is(err, domauth.ErrDuplicateEmail):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, domnews.ErrRateLimited), errors.Is(err, domanalysis.ErrQuotaExceeded):
			http.Error(w, err.Error(), http.StatusTooManyRequests)
		case errors.Is(err, domnews.ErrInvalidKey), errors.Is(err, domnews.ErrMissingAPIKey),
			errors.Is(err, domanalysis.ErrMalformedResponse):
			http.Error(w, err.Error(), http.StatusBadGateway)
		default:
			r.log.Error("unhandled request error",
				zap.String("path", req.URL.Path), zap.Error(err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// userID returns the requester's id, empty for anonymous reads.
func userID(req *http.Request) string {
	if u := middleware.UserFromContext(req.Context()); u != nil {
		return u.ID
	}
	return ""
}
