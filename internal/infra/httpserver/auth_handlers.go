package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	appauth "github.com/bryanwahyu/newslens/internal/application/auth"
	domanalysis "github.com/bryanwahyu/newslens/internal/domain/analysis"
	domauth "github.com/bryanwahyu/newslens/internal/domain/auth"
	"github.com/bryanwahyu/newslens/internal/middleware"
)

func (r *Router) setSessionCookies(w http.ResponseWriter, sess *domauth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   r.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	// readable by the frontend so it can echo X-CSRF-Token
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CSRFCookie,
		Value:    sess.CSRFToken,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		Secure:   r.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (r *Router) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{middleware.SessionCookie, middleware.CSRFCookie} {
		http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1})
	}
}

// POST /api/auth/register
func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) error {
	var cmd appauth.RegisterCommand
	if err := json.NewDecoder(req.Body).Decode(&cmd); err != nil {
		return badRequest(fmt.Errorf("invalid request body: %w", err))
	}
	res, err := r.authSvc.Register(req.Context(), cmd, middleware.ClientIP(req), req.UserAgent())
	if err != nil {
		return err
	}
	r.setSessionCookies(w, res.Session)
	return writeJSON(w, http.StatusCreated, map[string]any{
		"user":       res.User,
		"csrf_token": res.Session.CSRFToken,
	})
}

// POST /api/auth/login
// Body: {"username": "...", "password": "..."}
func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest(fmt.Errorf("invalid request body: %w", err))
	}
	if body.Username == "" || body.Password == "" {
		return badRequest(fmt.Errorf("username and password are required"))
	}
	res, err := r.authSvc.Login(req.Context(), body.Username, body.Password, middleware.ClientIP(req), req.UserAgent())
	if err != nil {
		return err
	}
	r.setSessionCookies(w, res.Session)
	return writeJSON(w, http.StatusOK, map[string]any{
		"user":       res.User,
		"csrf_token": res.Session.CSRFToken,
	})
}

// POST /api/auth/logout
func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) error {
	if c, err := req.Cookie(middleware.SessionCookie); err == nil {
		if err := r.authSvc.Logout(req.Context(), c.Value); err != nil {
			return err
		}
	}
	r.clearSessionCookies(w)
	return writeJSON(w, http.StatusOK, map[string]string{"detail": "logged out"})
}

// GET /api/auth/user
func (r *Router) handleCurrentUser(w http.ResponseWriter, req *http.Request) error {
	u := middleware.UserFromContext(req.Context())
	if u == nil {
		return domauth.ErrNoSession
	}
	return writeJSON(w, http.StatusOK, u)
}

// GET /api/auth/dashboard
func (r *Router) handleDashboard(w http.ResponseWriter, req *http.Request) error {
	d, err := r.authSvc.Dashboard(req.Context(), userID(req))
	if err != nil {
		return err
	}
	recent, err := r.analysisSvc.Recent(req.Context(), userID(req), 5)
	if err != nil {
		return err
	}
	if recent == nil {
		recent = []*domanalysis.Analysis{}
	}
	return writeJSON(w, http.StatusOK, struct {
		*appauth.Dashboard
		RecentAnalyses []*domanalysis.Analysis `json:"recent_analyses"`
	}{d, recent})
}

// GET /api/auth/profile
func (r *Router) handleGetProfile(w http.ResponseWriter, req *http.Request) error {
	p, err := r.authSvc.Profile(req.Context(), userID(req))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, p)
}

// PUT /api/auth/profile
func (r *Router) handleUpdateProfile(w http.ResponseWriter, req *http.Request) error {
	var cmd appauth.UpdateProfileCommand
	if err := json.NewDecoder(req.Body).Decode(&cmd); err != nil {
		return badRequest(fmt.Errorf("invalid request body: %w", err))
	}
	cmd.Bio = middleware.SanitizeString(cmd.Bio)
	cmd.Location = middleware.SanitizeString(cmd.Location)
	if cmd.Website != "" {
		if err := middleware.ValidateURL(cmd.Website); err != nil {
			return badRequest(err)
		}
	}
	p, err := r.authSvc.UpdateProfile(req.Context(), userID(req), cmd)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, p)
}

// GET /api/auth/profile/stats
func (r *Router) handleProfileStats(w http.ResponseWriter, req *http.Request) error {
	st, err := r.analysisSvc.UserStats(req.Context(), userID(req))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, st)
}

// POST /api/auth/change_password
func (r *Router) handleChangePassword(w http.ResponseWriter, req *http.Request) error {
	var cmd appauth.ChangePasswordCommand
	if err := json.NewDecoder(req.Body).Decode(&cmd); err != nil {
		return badRequest(fmt.Errorf("invalid request body: %w", err))
	}
	sess := middleware.SessionFromContext(req.Context())
	if err := r.authSvc.ChangePassword(req.Context(), userID(req), sess.Token, cmd); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]string{"detail": "password changed"})
}

// GET /api/auth/sessions
func (r *Router) handleListSessions(w http.ResponseWriter, req *http.Request) error {
	sess := middleware.SessionFromContext(req.Context())
	list, err := r.authSvc.Sessions(req.Context(), userID(req), sess.Token)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*domauth.Session{}
	}
	return writeJSON(w, http.StatusOK, map[string]any{"data": list})
}

// POST /api/auth/sessions/{id}/terminate
func (r *Router) handleTerminateSession(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := r.authSvc.TerminateSession(req.Context(), userID(req), id); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]string{"detail": "session terminated"})
}

// POST /api/auth/sessions/terminate_all
func (r *Router) handleTerminateOtherSessions(w http.ResponseWriter, req *http.Request) error {
	sess := middleware.SessionFromContext(req.Context())
	n, err := r.authSvc.TerminateOtherSessions(req.Context(), userID(req), sess.Token)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"terminated": n})
}
