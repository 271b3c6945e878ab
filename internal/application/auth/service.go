package auth

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/bryanwahyu/newslens/internal/application"
	domain "github.com/bryanwahyu/newslens/internal/domain/auth"
	news "github.com/bryanwahyu/newslens/internal/domain/news"
)

// Demo account credentials, seeded when demo mode is on.
const (
	DemoUsername = "demo_user"
	DemoPassword = "demo123"
)

// Service implements use-cases untuk account dan session.
// Safe for concurrent use.
type Service struct {
	Repo     domain.Repository
	Articles news.Repository
	Clock    application.Clock
	Log      *zap.Logger

	SessionTTL time.Duration
}

// RegisterCommand carries a signup request.
type RegisterCommand struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password_confirm"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// LoginResult is the response of a successful login or registration.
type LoginResult struct {
	User    *domain.User    `json:"user"`
	Session *domain.Session `json:"-"`
}

// ValidationError is a field-level rejection of user input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (c *RegisterCommand) validate() error {
	c.Username = strings.TrimSpace(c.Username)
	c.Email = strings.TrimSpace(strings.ToLower(c.Email))
	if len(c.Username) < 3 || len(c.Username) > 30 {
		return &ValidationError{Field: "username", Reason: "must be 3 to 30 characters"}
	}
	for _, r := range c.Username {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '.') {
			return &ValidationError{Field: "username", Reason: "letters, digits, underscore and dot only"}
		}
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return &ValidationError{Field: "email", Reason: "invalid email address"}
	}
	if len(c.Password) < 6 {
		return &ValidationError{Field: "password", Reason: "must be at least 6 characters"}
	}
	if c.Password2 != "" && c.Password2 != c.Password {
		return &ValidationError{Field: "password_confirm", Reason: "passwords do not match"}
	}
	return nil
}

// Register creates the account plus its empty profile and logs the new user
// in immediately.
func (s *Service) Register(ctx context.Context, cmd RegisterCommand, ip, userAgent string) (LoginResult, error) {
	if err := cmd.validate(); err != nil {
		return LoginResult{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), bcrypt.DefaultCost)
	if err != nil {
		return LoginResult{}, fmt.Errorf("hashing password: %w", err)
	}

	now := s.Clock.Now()
	u := &domain.User{
		ID:           uuid.New().String(),
		Username:     cmd.Username,
		Email:        cmd.Email,
		PasswordHash: string(hash),
		FirstName:    cmd.FirstName,
		LastName:     cmd.LastName,
		CreatedAt:    now,
	}
	p := &domain.Profile{
		UserID:             u.ID,
		EmailNotifications: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.Repo.CreateUser(ctx, u, p); err != nil {
		return LoginResult{}, err
	}

	sess, err := s.issueSession(ctx, u.ID, ip, userAgent)
	if err != nil {
		return LoginResult{}, err
	}
	s.Log.Info("user registered", zap.String("username", u.Username))
	return LoginResult{User: u, Session: sess}, nil
}

// Login checks the credentials and issues a fresh session.
func (s *Service) Login(ctx context.Context, username, password, ip, userAgent string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	u, err := s.Repo.GetUserByUsername(ctx, username)
	if err == domain.ErrUserNotFound {
		// allow login by email too
		u, err = s.Repo.GetUserByEmail(ctx, strings.ToLower(username))
	}
	if err != nil {
		// burn a comparable amount of work for unknown users
		bcrypt.CompareHashAndPassword([]byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"), []byte(password))
		return LoginResult{}, domain.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return LoginResult{}, domain.ErrInvalidCredentials
	}

	sess, err := s.issueSession(ctx, u.ID, ip, userAgent)
	if err != nil {
		return LoginResult{}, err
	}
	s.Log.Info("user logged in", zap.String("username", u.Username))
	return LoginResult{User: u, Session: sess}, nil
}

// Logout deactivates the session. Missing sessions are not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.Repo.DeactivateSession(ctx, token)
}

// ValidateSession resolves a session token to its user, touching the
// activity timestamp. Expired or deactivated sessions yield ErrNoSession.
func (s *Service) ValidateSession(ctx context.Context, token string) (*domain.User, *domain.Session, error) {
	if token == "" {
		return nil, nil, domain.ErrNoSession
	}
	sess, err := s.Repo.GetSession(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	now := s.Clock.Now()
	if !sess.Active || sess.Expired(now) {
		return nil, nil, domain.ErrNoSession
	}
	u, err := s.Repo.GetUser(ctx, sess.UserID)
	if err != nil {
		return nil, nil, domain.ErrNoSession
	}
	if err := s.Repo.TouchSession(ctx, token, now); err != nil {
		s.Log.Warn("session touch failed", zap.Error(err))
	}
	return u, sess, nil
}

// ChangePasswordCommand carries a password change request.
type ChangePasswordCommand struct {
	OldPassword  string `json:"old_password"`
	NewPassword  string `json:"new_password"`
	NewPassword2 string `json:"new_password_confirm"`
}

// ChangePassword verifies the current password, stores the new hash and
// terminates every other live session of the user.
func (s *Service) ChangePassword(ctx context.Context, userID, currentToken string, cmd ChangePasswordCommand) error {
	if len(cmd.NewPassword) < 6 {
		return &ValidationError{Field: "new_password", Reason: "must be at least 6 characters"}
	}
	if cmd.NewPassword2 != "" && cmd.NewPassword2 != cmd.NewPassword {
		return &ValidationError{Field: "new_password_confirm", Reason: "passwords do not match"}
	}

	u, err := s.Repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(cmd.OldPassword)) != nil {
		return &ValidationError{Field: "old_password", Reason: "old password is incorrect"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := s.Repo.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return err
	}

	// the session that changed the password stays alive
	if n, err := s.Repo.DeactivateOtherSessions(ctx, userID, currentToken); err != nil {
		s.Log.Warn("stale sessions not terminated", zap.String("user", userID), zap.Error(err))
	} else if n > 0 {
		s.Log.Info("sessions terminated after password change",
			zap.String("user", userID), zap.Int64("count", n))
	}
	s.Log.Info("password changed", zap.String("username", u.Username))
	return nil
}

// Sessions lists the user's live sessions, marking the one the request came
// in on.
func (s *Service) Sessions(ctx context.Context, userID, currentToken string) ([]*domain.Session, error) {
	list, err := s.Repo.ListActiveSessions(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, sess := range list {
		sess.Current = sess.Token == currentToken
	}
	return list, nil
}

// TerminateSession deactivates one of the user's sessions by its public id.
func (s *Service) TerminateSession(ctx context.Context, userID, sessionID string) error {
	ok, err := s.Repo.DeactivateSessionByID(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrSessionNotFound
	}
	return nil
}

// TerminateOtherSessions deactivates every live session except the current
// one, returning how many were terminated.
func (s *Service) TerminateOtherSessions(ctx context.Context, userID, currentToken string) (int64, error) {
	return s.Repo.DeactivateOtherSessions(ctx, userID, currentToken)
}

func (s *Service) issueSession(ctx context.Context, userID, ip, userAgent string) (*domain.Session, error) {
	now := s.Clock.Now()
	ttl := s.SessionTTL
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	sess := &domain.Session{
		ID:           uuid.New().String(),
		Token:        uuid.New().String(),
		UserID:       userID,
		CSRFToken:    uuid.New().String(),
		IPAddress:    ip,
		UserAgent:    userAgent,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(ttl),
		Active:       true,
	}
	if err := s.Repo.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return sess, nil
}

// Profile returns the user's profile.
func (s *Service) Profile(ctx context.Context, userID string) (*domain.Profile, error) {
	return s.Repo.GetProfile(ctx, userID)
}

// UpdateProfileCommand carries the editable profile fields.
type UpdateProfileCommand struct {
	Bio                    string `json:"bio"`
	AvatarURL              string `json:"avatar"`
	Location               string `json:"location"`
	Website                string `json:"website"`
	EmailNotifications     bool   `json:"email_notifications"`
	NewsletterSubscription bool   `json:"newsletter_subscription"`
}

// UpdateProfile overwrites the editable profile fields.
func (s *Service) UpdateProfile(ctx context.Context, userID string, cmd UpdateProfileCommand) (*domain.Profile, error) {
	p, err := s.Repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.Bio = cmd.Bio
	p.AvatarURL = cmd.AvatarURL
	p.Location = cmd.Location
	p.Website = cmd.Website
	p.EmailNotifications = cmd.EmailNotifications
	p.NewsletterSubscription = cmd.NewsletterSubscription
	if err := s.Repo.UpdateProfile(ctx, p); err != nil {
		return nil, err
	}
	return s.Repo.GetProfile(ctx, userID)
}

// Dashboard is the landing payload after login.
type Dashboard struct {
	User        *domain.User          `json:"user"`
	Profile     *domain.Profile       `json:"profile"`
	RecentReads []*news.ReadArticle   `json:"recent_reads"`
}

// Dashboard assembles the user's landing payload.
func (s *Service) Dashboard(ctx context.Context, userID string) (*Dashboard, error) {
	u, err := s.Repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	p, err := s.Repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	reads, err := s.Articles.RecentReads(ctx, userID, 10)
	if err != nil {
		return nil, err
	}
	return &Dashboard{User: u, Profile: p, RecentReads: reads}, nil
}

// EnsureDemoUser creates the demo account when it does not exist yet.
// Idempotent; called at startup in demo mode.
func (s *Service) EnsureDemoUser(ctx context.Context) error {
	if _, err := s.Repo.GetUserByUsername(ctx, DemoUsername); err == nil {
		return nil
	} else if err != domain.ErrUserNotFound {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	now := s.Clock.Now()
	u := &domain.User{
		ID:           uuid.New().String(),
		Username:     DemoUsername,
		Email:        "demo@example.com",
		PasswordHash: string(hash),
		FirstName:    "Demo",
		LastName:     "User",
		CreatedAt:    now,
	}
	p := &domain.Profile{
		UserID:             u.ID,
		Bio:                "Demo account",
		EmailNotifications: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	err = s.Repo.CreateUser(ctx, u, p)
	if err == domain.ErrDuplicateUsername {
		// seeded concurrently elsewhere
		return nil
	}
	if err == nil {
		s.Log.Info("demo user seeded", zap.String("username", DemoUsername))
	}
	return err
}
