package auth

import (
	"context"
	"time"
)

// Repository port (interface untuk persistence)
type Repository interface {
	CreateUser(ctx context.Context, u *User, p *Profile) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	UpdatePassword(ctx context.Context, userID, hash string) error

	GetProfile(ctx context.Context, userID string) (*Profile, error)
	UpdateProfile(ctx context.Context, p *Profile) error
	BumpAnalysisStats(ctx context.Context, userID string, at time.Time) error

	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, token string) (*Session, error)
	TouchSession(ctx context.Context, token string, at time.Time) error
	DeactivateSession(ctx context.Context, token string) error
	ListActiveSessions(ctx context.Context, userID string) ([]*Session, error)
	DeactivateSessionByID(ctx context.Context, userID, sessionID string) (bool, error)
	DeactivateOtherSessions(ctx context.Context, userID, keepToken string) (int64, error)
}
