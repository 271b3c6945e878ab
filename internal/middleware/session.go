package middleware

import (
	"context"
	"net"
	"net/http"

	appauth "github.com/bryanwahyu/newslens/internal/application/auth"
	domain "github.com/bryanwahyu/newslens/internal/domain/auth"
)

// SessionCookie is the opaque session token cookie.
const SessionCookie = "newslens_session"

// CSRFCookie carries the CSRF token that clients echo back in the
// X-CSRF-Token header on mutating requests. Readable by JS on purpose.
const CSRFCookie = "newslens_csrf"

type contextKey string

const (
	userKey    contextKey = "user"
	sessionKey contextKey = "session"
)

// UserFromContext returns the authenticated user, or nil for anonymous
// requests.
func UserFromContext(ctx context.Context) *domain.User {
	u, _ := ctx.Value(userKey).(*domain.User)
	return u
}

// SessionFromContext returns the active session, or nil.
func SessionFromContext(ctx context.Context) *domain.Session {
	s, _ := ctx.Value(sessionKey).(*domain.Session)
	return s
}

// Session resolves the session cookie and attaches the user to the request
// context. Requests without a valid session pass through anonymous; route
// handlers decide whether that is acceptable.
func Session(svc *appauth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(SessionCookie)
			if err != nil || c.Value == "" {
				next.ServeHTTP(w, r)
				return
			}
			user, sess, err := svc.ValidateSession(r.Context(), c.Value)
			if err != nil {
				// stale cookie, treat as anonymous
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), userKey, user)
			ctx = context.WithValue(ctx, sessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP extracts the remote IP without the port.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
