package mysql

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/bryanwahyu/newslens/internal/domain/auth"
)

type UserRepository struct {
	db *sql.DB
}

var _ domain.Repository = (*UserRepository)(nil)

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser inserts the user together with its empty profile.
func (r *UserRepository) CreateUser(ctx context.Context, u *domain.User, p *domain.Profile) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO users (id, username, email, password_hash, first_name, last_name, is_admin, created_at)
VALUES (?,?,?,?,?,?,?,?);`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.IsAdmin, u.CreatedAt,
	)
	if isDuplicate(err, "uq_users_username") {
		return domain.ErrDuplicateUsername
	}
	if isDuplicate(err, "uq_users_email") {
		return domain.ErrDuplicateEmail
	}
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO user_profiles
(user_id, bio, avatar_url, location, website, email_notifications, newsletter_subscription,
 total_analyses, last_analysis_at, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?);`,
		u.ID, p.Bio, p.AvatarURL, p.Location, p.Website, p.EmailNotifications, p.NewsletterSubscription,
		p.TotalAnalyses, p.LastAnalysisAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

const userColumns = `id, username, email, password_hash, first_name, last_name, is_admin, created_at`

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.IsAdmin, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ? LIMIT 1;`, id))
}

func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ? LIMIT 1;`, username))
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ? LIMIT 1;`, email))
}

func (r *UserRepository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	const q = `
SELECT user_id, bio, avatar_url, location, website, email_notifications, newsletter_subscription,
       total_analyses, last_analysis_at, created_at, updated_at
FROM user_profiles WHERE user_id = ? LIMIT 1;`

	var p domain.Profile
	var last sql.NullTime
	err := r.db.QueryRowContext(ctx, q, userID).Scan(
		&p.UserID, &p.Bio, &p.AvatarURL, &p.Location, &p.Website,
		&p.EmailNotifications, &p.NewsletterSubscription,
		&p.TotalAnalyses, &last, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if last.Valid {
		t := last.Time
		p.LastAnalysisAt = &t
	}
	return &p, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, p *domain.Profile) error {
	const q = `
UPDATE user_profiles
SET bio = ?, avatar_url = ?, location = ?, website = ?,
    email_notifications = ?, newsletter_subscription = ?, updated_at = ?
WHERE user_id = ?;`
	_, err := r.db.ExecContext(ctx, q,
		p.Bio, p.AvatarURL, p.Location, p.Website,
		p.EmailNotifications, p.NewsletterSubscription, time.Now(),
		p.UserID,
	)
	return err
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID, hash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?;`, hash, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// BumpAnalysisStats increments the display counter after a successful
// analysis.
func (r *UserRepository) BumpAnalysisStats(ctx context.Context, userID string, at time.Time) error {
	const q = `
UPDATE user_profiles
SET total_analyses = total_analyses + 1, last_analysis_at = ?, updated_at = ?
WHERE user_id = ?;`
	_, err := r.db.ExecContext(ctx, q, at, at, userID)
	return err
}

func (r *UserRepository) CreateSession(ctx context.Context, s *domain.Session) error {
	const q = `
INSERT INTO sessions (token, id, user_id, csrf_token, ip_address, user_agent,
                      created_at, last_activity, expires_at, active)
VALUES (?,?,?,?,?,?,?,?,?,?);`
	_, err := r.db.ExecContext(ctx, q,
		s.Token, s.ID, s.UserID, s.CSRFToken, s.IPAddress, s.UserAgent,
		s.CreatedAt, s.LastActivity, s.ExpiresAt, s.Active,
	)
	return err
}

const sessionColumns = `token, id, user_id, csrf_token, ip_address, COALESCE(user_agent,''),
       created_at, last_activity, expires_at, active`

func scanSession(row interface{ Scan(...any) error }) (*domain.Session, error) {
	var s domain.Session
	err := row.Scan(
		&s.Token, &s.ID, &s.UserID, &s.CSRFToken, &s.IPAddress, &s.UserAgent,
		&s.CreatedAt, &s.LastActivity, &s.ExpiresAt, &s.Active,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *UserRepository) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM sessions WHERE token = ? LIMIT 1;`
	s, err := scanSession(r.db.QueryRowContext(ctx, q, token))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNoSession
	}
	return s, err
}

// ListActiveSessions returns the user's live sessions, most recent activity
// first.
func (r *UserRepository) ListActiveSessions(ctx context.Context, userID string) ([]*domain.Session, error) {
	const q = `SELECT ` + sessionColumns + `
FROM sessions WHERE user_id = ? AND active = 1
ORDER BY last_activity DESC;`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeactivateSessionByID deactivates one of the user's sessions; the user_id
// filter keeps the operation scoped to the owner.
func (r *UserRepository) DeactivateSessionByID(ctx context.Context, userID, sessionID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET active = 0 WHERE id = ? AND user_id = ?;`, sessionID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeactivateOtherSessions deactivates every live session of the user except
// the one identified by keepToken, returning how many were terminated.
func (r *UserRepository) DeactivateOtherSessions(ctx context.Context, userID, keepToken string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET active = 0 WHERE user_id = ? AND token <> ? AND active = 1;`,
		userID, keepToken)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *UserRepository) TouchSession(ctx context.Context, token string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET last_activity = ? WHERE token = ?;`, at, token)
	return err
}

func (r *UserRepository) DeactivateSession(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET active = 0 WHERE token = ?;`, token)
	return err
}
