package auth

import "time"

// User identity. Password is stored as a bcrypt hash only.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// FullName returns first+last name with username as fallback.
func (u *User) FullName() string {
	if u.FirstName != "" && u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	return u.Username
}

// Profile is the one-to-one extension of a user, used for display stats.
type Profile struct {
	UserID                 string     `json:"-"`
	Bio                    string     `json:"bio,omitempty"`
	AvatarURL              string     `json:"avatar,omitempty"`
	Location               string     `json:"location,omitempty"`
	Website                string     `json:"website,omitempty"`
	EmailNotifications     bool       `json:"email_notifications"`
	NewsletterSubscription bool       `json:"newsletter_subscription"`
	TotalAnalyses          int64      `json:"total_analyses_created"`
	LastAnalysisAt         *time.Time `json:"last_analysis_date,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// Session is one authenticated browser session. Token is the opaque cookie
// value and never leaves the server; ID is the public handle used by the
// session view. CSRFToken is compared against the X-CSRF-Token header on
// mutations.
type Session struct {
	ID           string    `json:"id"`
	Token        string    `json:"-"`
	UserID       string    `json:"-"`
	CSRFToken    string    `json:"-"`
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"-"`
	Active       bool      `json:"is_active"`
	Current      bool      `json:"is_current,omitempty"`
}

// Expired reports whether the session is past its TTL at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
