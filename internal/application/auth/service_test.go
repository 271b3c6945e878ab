package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	domain "github.com/bryanwahyu/newslens/internal/domain/auth"
	news "github.com/bryanwahyu/newslens/internal/domain/news"
)

type fakeAuthRepo struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	profiles map[string]*domain.Profile
	sessions map[string]*domain.Session
}

func newFakeAuthRepo() *fakeAuthRepo {
	return &fakeAuthRepo{
		users:    map[string]*domain.User{},
		profiles: map[string]*domain.Profile{},
		sessions: map[string]*domain.Session{},
	}
}

func (f *fakeAuthRepo) CreateUser(_ context.Context, u *domain.User, p *domain.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Username == u.Username {
			return domain.ErrDuplicateUsername
		}
		if existing.Email == u.Email {
			return domain.ErrDuplicateEmail
		}
	}
	f.users[u.ID] = u
	f.profiles[u.ID] = p
	return nil
}

func (f *fakeAuthRepo) GetUser(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeAuthRepo) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeAuthRepo) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeAuthRepo) GetProfile(_ context.Context, userID string) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return p, nil
}

func (f *fakeAuthRepo) UpdateProfile(_ context.Context, p *domain.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[p.UserID] = p
	return nil
}

func (f *fakeAuthRepo) BumpAnalysisStats(_ context.Context, userID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.profiles[userID]; ok {
		p.TotalAnalyses++
		p.LastAnalysisAt = &at
	}
	return nil
}

func (f *fakeAuthRepo) CreateSession(_ context.Context, s *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.Token] = s
	return nil
}

func (f *fakeAuthRepo) GetSession(_ context.Context, token string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[token]
	if !ok {
		return nil, domain.ErrNoSession
	}
	return s, nil
}

func (f *fakeAuthRepo) TouchSession(_ context.Context, token string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[token]; ok {
		s.LastActivity = at
	}
	return nil
}

func (f *fakeAuthRepo) DeactivateSession(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[token]; ok {
		s.Active = false
	}
	return nil
}

func (f *fakeAuthRepo) UpdatePassword(_ context.Context, userID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeAuthRepo) ListActiveSessions(_ context.Context, userID string) ([]*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Session
	for _, s := range f.sessions {
		if s.UserID == userID && s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeAuthRepo) DeactivateSessionByID(_ context.Context, userID, sessionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.UserID == userID && s.ID == sessionID && s.Active {
			s.Active = false
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAuthRepo) DeactivateOtherSessions(_ context.Context, userID, keepToken string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, s := range f.sessions {
		if s.UserID == userID && s.Token != keepToken && s.Active {
			s.Active = false
			n++
		}
	}
	return n, nil
}

type fakeReads struct {
	news.Repository
}

func (fakeReads) RecentReads(context.Context, string, int) ([]*news.ReadArticle, error) {
	return []*news.ReadArticle{}, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestService(repo *fakeAuthRepo) *Service {
	return &Service{
		Repo:       repo,
		Articles:   fakeReads{},
		Clock:      fixedClock{t: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)},
		Log:        zap.NewNop(),
		SessionTTL: time.Hour,
	}
}

func validRegister() RegisterCommand {
	return RegisterCommand{
		Username:  "alex_w",
		Email:     "alex@example.com",
		Password:  "s3cretpw",
		Password2: "s3cretpw",
		FirstName: "Alex",
		LastName:  "Wong",
	}
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()

	repo := newFakeAuthRepo()
	svc := newTestService(repo)

	res, err := svc.Register(context.Background(), validRegister(), "1.2.3.4", "go-test")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if res.User.PasswordHash == "s3cretpw" {
		t.Fatal("password stored in clear")
	}
	if res.Session == nil || res.Session.Token == "" || res.Session.CSRFToken == "" {
		t.Fatalf("registration did not log the user in: %+v", res.Session)
	}
	if _, ok := repo.profiles[res.User.ID]; !ok {
		t.Fatal("profile row not created")
	}

	login, err := svc.Login(context.Background(), "alex_w", "s3cretpw", "1.2.3.4", "go-test")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if login.User.ID != res.User.ID {
		t.Fatal("login resolved a different user")
	}

	// login by email works too
	if _, err := svc.Login(context.Background(), "alex@example.com", "s3cretpw", "", ""); err != nil {
		t.Fatalf("email login error: %v", err)
	}

	if _, err := svc.Login(context.Background(), "alex_w", "wrong", "", ""); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v", err)
	}
	if _, err := svc.Login(context.Background(), "nobody", "s3cretpw", "", ""); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("unknown user: got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeAuthRepo())

	cases := map[string]func(*RegisterCommand){
		"short username": func(c *RegisterCommand) { c.Username = "ab" },
		"bad characters": func(c *RegisterCommand) { c.Username = "alex w!" },
		"bad email":      func(c *RegisterCommand) { c.Email = "not-an-email" },
		"short password": func(c *RegisterCommand) { c.Password, c.Password2 = "abc", "abc" },
		"mismatch":       func(c *RegisterCommand) { c.Password2 = "different" },
	}
	for name, mutate := range cases {
		cmd := validRegister()
		mutate(&cmd)
		_, err := svc.Register(context.Background(), cmd, "", "")
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("%s: got %v, want ValidationError", name, err)
		}
	}
}

func TestRegisterDuplicate(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeAuthRepo())
	if _, err := svc.Register(context.Background(), validRegister(), "", ""); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := svc.Register(context.Background(), validRegister(), "", "")
	if !errors.Is(err, domain.ErrDuplicateUsername) {
		t.Fatalf("got %v, want ErrDuplicateUsername", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	repo := newFakeAuthRepo()
	svc := newTestService(repo)

	res, err := svc.Register(context.Background(), validRegister(), "", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	token := res.Session.Token

	u, sess, err := svc.ValidateSession(context.Background(), token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if u.ID != res.User.ID || sess.CSRFToken != res.Session.CSRFToken {
		t.Fatal("session resolved wrong user or csrf token")
	}

	if err := svc.Logout(context.Background(), token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, _, err := svc.ValidateSession(context.Background(), token); !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("after logout: got %v, want ErrNoSession", err)
	}

	if _, _, err := svc.ValidateSession(context.Background(), ""); !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("empty token: got %v, want ErrNoSession", err)
	}
}

func TestSessionExpiry(t *testing.T) {
	t.Parallel()

	repo := newFakeAuthRepo()
	svc := newTestService(repo)
	res, err := svc.Register(context.Background(), validRegister(), "", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	// move the clock past the TTL
	svc.Clock = fixedClock{t: res.Session.ExpiresAt.Add(time.Minute)}
	if _, _, err := svc.ValidateSession(context.Background(), res.Session.Token); !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("expired session: got %v, want ErrNoSession", err)
	}
}

func TestEnsureDemoUser(t *testing.T) {
	t.Parallel()

	repo := newFakeAuthRepo()
	svc := newTestService(repo)

	if err := svc.EnsureDemoUser(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := svc.EnsureDemoUser(context.Background()); err != nil {
		t.Fatalf("re-seed: %v", err)
	}
	if len(repo.users) != 1 {
		t.Fatalf("demo user seeded %d times", len(repo.users))
	}

	res, err := svc.Login(context.Background(), DemoUsername, DemoPassword, "", "")
	if err != nil {
		t.Fatalf("demo login: %v", err)
	}
	if res.User.Username != DemoUsername {
		t.Fatalf("resolved %s", res.User.Username)
	}
}

func TestUpdateProfile(t *testing.T) {
	t.Parallel()

	repo := newFakeAuthRepo()
	svc := newTestService(repo)
	res, err := svc.Register(context.Background(), validRegister(), "", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	p, err := svc.UpdateProfile(context.Background(), res.User.ID, UpdateProfileCommand{
		Bio:                "reader",
		Location:           "Jakarta",
		EmailNotifications: true,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.Bio != "reader" || p.Location != "Jakarta" {
		t.Fatalf("profile not updated: %+v", p)
	}
}

func TestChangePassword(t *testing.T) {
	t.Parallel()

	repo := newFakeAuthRepo()
	svc := newTestService(repo)
	res, err := svc.Register(context.Background(), validRegister(), "", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	// a second session on another device, deactivated by the change
	other, err := svc.Login(context.Background(), "alex_w", "s3cretpw", "5.6.7.8", "phone")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}

	cmd := ChangePasswordCommand{OldPassword: "s3cretpw", NewPassword: "n3wsecret", NewPassword2: "n3wsecret"}
	if err := svc.ChangePassword(context.Background(), res.User.ID, res.Session.Token, cmd); err != nil {
		t.Fatalf("change: %v", err)
	}

	if _, err := svc.Login(context.Background(), "alex_w", "s3cretpw", "", ""); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("old password still works: %v", err)
	}
	if _, err := svc.Login(context.Background(), "alex_w", "n3wsecret", "", ""); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}

	// the session that made the change survives, every other one dies
	if _, _, err := svc.ValidateSession(context.Background(), res.Session.Token); err != nil {
		t.Fatalf("current session lost: %v", err)
	}
	if _, _, err := svc.ValidateSession(context.Background(), other.Session.Token); !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("other session kept: %v", err)
	}
}

func TestChangePasswordValidation(t *testing.T) {
	t.Parallel()

	repo := newFakeAuthRepo()
	svc := newTestService(repo)
	res, err := svc.Register(context.Background(), validRegister(), "", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	cases := map[string]ChangePasswordCommand{
		"wrong old":  {OldPassword: "nope", NewPassword: "n3wsecret", NewPassword2: "n3wsecret"},
		"too short":  {OldPassword: "s3cretpw", NewPassword: "abc", NewPassword2: "abc"},
		"mismatched": {OldPassword: "s3cretpw", NewPassword: "n3wsecret", NewPassword2: "different"},
	}
	for name, cmd := range cases {
		err := svc.ChangePassword(context.Background(), res.User.ID, res.Session.Token, cmd)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("%s: got %v, want ValidationError", name, err)
		}
	}
	// nothing changed
	if _, err := svc.Login(context.Background(), "alex_w", "s3cretpw", "", ""); err != nil {
		t.Fatalf("original password broken: %v", err)
	}
}

func TestSessionList(t *testing.T) {
	t.Parallel()

	repo := newFakeAuthRepo()
	svc := newTestService(repo)
	res, err := svc.Register(context.Background(), validRegister(), "1.2.3.4", "laptop")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	other, err := svc.Login(context.Background(), "alex_w", "s3cretpw", "5.6.7.8", "phone")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	list, err := svc.Sessions(context.Background(), res.User.ID, res.Session.Token)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d sessions, want 2", len(list))
	}
	for _, s := range list {
		if s.ID == "" {
			t.Fatal("session without a public id")
		}
		wantCurrent := s.Token == res.Session.Token
		if s.Current != wantCurrent {
			t.Fatalf("session %s: is_current = %v", s.ID, s.Current)
		}
	}

	if err := svc.TerminateSession(context.Background(), res.User.ID, other.Session.ID); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if _, _, err := svc.ValidateSession(context.Background(), other.Session.Token); !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("terminated session still valid: %v", err)
	}
	if err := svc.TerminateSession(context.Background(), res.User.ID, "missing-id"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("unknown id: got %v, want ErrSessionNotFound", err)
	}
}

func TestTerminateOtherSessions(t *testing.T) {
	t.Parallel()

	repo := newFakeAuthRepo()
	svc := newTestService(repo)
	res, err := svc.Register(context.Background(), validRegister(), "", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := svc.Login(context.Background(), "alex_w", "s3cretpw", "", ""); err != nil {
			t.Fatalf("login %d: %v", i, err)
		}
	}

	n, err := svc.TerminateOtherSessions(context.Background(), res.User.ID, res.Session.Token)
	if err != nil {
		t.Fatalf("terminate all: %v", err)
	}
	if n != 3 {
		t.Fatalf("terminated %d sessions, want 3", n)
	}
	if _, _, err := svc.ValidateSession(context.Background(), res.Session.Token); err != nil {
		t.Fatalf("current session lost: %v", err)
	}
}
