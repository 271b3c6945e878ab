package postgres

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"

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

	q, args, err := psql.Insert("users").
		Columns("id", "username", "email", "password_hash", "first_name", "last_name", "is_admin", "created_at").
		Values(u.ID, u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.IsAdmin, u.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, q, args...)
	if isDuplicate(err, "uq_users_username") {
		return domain.ErrDuplicateUsername
	}
	if isDuplicate(err, "uq_users_email") {
		return domain.ErrDuplicateEmail
	}
	if err != nil {
		return err
	}

	q, args, err = psql.Insert("user_profiles").
		Columns("user_id", "bio", "avatar_url", "location", "website",
			"email_notifications", "newsletter_subscription",
			"total_analyses", "last_analysis_at", "created_at", "updated_at").
		Values(u.ID, p.Bio, p.AvatarURL, p.Location, p.Website,
			p.EmailNotifications, p.NewsletterSubscription,
			p.TotalAnalyses, p.LastAnalysisAt, p.CreatedAt, p.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return err
	}
	return tx.Commit()
}

func selectUsers() sq.SelectBuilder {
	return psql.Select("id", "username", "email", "password_hash",
		"first_name", "last_name", "is_admin", "created_at").From("users")
}

func (r *UserRepository) getUser(ctx context.Context, b sq.SelectBuilder) (*domain.User, error) {
	q, args, err := b.Limit(1).ToSql()
	if err != nil {
		return nil, err
	}
	var u domain.User
	err = r.db.QueryRowContext(ctx, q, args...).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash,
		&u.FirstName, &u.LastName, &u.IsAdmin, &u.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return r.getUser(ctx, selectUsers().Where(sq.Eq{"id": id}))
}

func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getUser(ctx, selectUsers().Where(sq.Eq{"username": username}))
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getUser(ctx, selectUsers().Where(sq.Eq{"email": email}))
}

func (r *UserRepository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	q, args, err := psql.Select("user_id", "bio", "avatar_url", "location", "website",
		"email_notifications", "newsletter_subscription",
		"total_analyses", "last_analysis_at", "created_at", "updated_at").
		From("user_profiles").
		Where(sq.Eq{"user_id": userID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}

	var p domain.Profile
	var last sql.NullTime
	err = r.db.QueryRowContext(ctx, q, args...).Scan(
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
	q, args, err := psql.Update("user_profiles").
		Set("bio", p.Bio).
		Set("avatar_url", p.AvatarURL).
		Set("location", p.Location).
		Set("website", p.Website).
		Set("email_notifications", p.EmailNotifications).
		Set("newsletter_subscription", p.NewsletterSubscription).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"user_id": p.UserID}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	return err
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID, hash string) error {
	q, args, err := psql.Update("users").
		Set("password_hash", hash).
		Where(sq.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, q, args...)
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
	q, args, err := psql.Update("user_profiles").
		Set("total_analyses", sq.Expr("total_analyses + 1")).
		Set("last_analysis_at", at).
		Set("updated_at", at).
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	return err
}

func (r *UserRepository) CreateSession(ctx context.Context, s *domain.Session) error {
	q, args, err := psql.Insert("sessions").
		Columns("token", "id", "user_id", "csrf_token", "ip_address", "user_agent",
			"created_at", "last_activity", "expires_at", "active").
		Values(s.Token, s.ID, s.UserID, s.CSRFToken, s.IPAddress, s.UserAgent,
			s.CreatedAt, s.LastActivity, s.ExpiresAt, s.Active).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	return err
}

func selectSessions() sq.SelectBuilder {
	return psql.Select("token", "id", "user_id", "csrf_token", "ip_address",
		"COALESCE(user_agent,'')",
		"created_at", "last_activity", "expires_at", "active").
		From("sessions")
}

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
	q, args, err := selectSessions().Where(sq.Eq{"token": token}).Limit(1).ToSql()
	if err != nil {
		return nil, err
	}
	s, err := scanSession(r.db.QueryRowContext(ctx, q, args...))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNoSession
	}
	return s, err
}

// ListActiveSessions returns the user's live sessions, most recent activity
// first.
func (r *UserRepository) ListActiveSessions(ctx context.Context, userID string) ([]*domain.Session, error) {
	q, args, err := selectSessions().
		Where(sq.Eq{"user_id": userID, "active": true}).
		OrderBy("last_activity DESC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
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
	q, args, err := psql.Update("sessions").
		Set("active", false).
		Where(sq.Eq{"id": sessionID, "user_id": userID}).
		ToSql()
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeactivateOtherSessions deactivates every live session of the user except
// the one identified by keepToken, returning how many were terminated.
func (r *UserRepository) DeactivateOtherSessions(ctx context.Context, userID, keepToken string) (int64, error) {
	q, args, err := psql.Update("sessions").
		Set("active", false).
		Where(sq.Eq{"user_id": userID, "active": true}).
		Where(sq.NotEq{"token": keepToken}).
		ToSql()
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *UserRepository) TouchSession(ctx context.Context, token string, at time.Time) error {
	q, args, err := psql.Update("sessions").
		Set("last_activity", at).
		Where(sq.Eq{"token": token}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	return err
}

func (r *UserRepository) DeactivateSession(ctx context.Context, token string) error {
	q, args, err := psql.Update("sessions").
		Set("active", false).
		Where(sq.Eq{"token": token}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	return err
}
