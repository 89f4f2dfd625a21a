package repository

import (
	"context"
	"time"

	"chancafe-q/backend/internal/session/domain"
)

// Repository defines persistence for sessions. Lookups return (nil, nil) when no row matches.
// Implementations must be read-after-write consistent: a revoke is visible to the next lookup.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	// GetActiveByToken returns the session with the given token only while its status is active.
	// Expiry is not checked; callers use Session.IsValid.
	GetActiveByToken(ctx context.Context, token string) (*domain.Session, error)
	GetActiveByRefreshHash(ctx context.Context, refreshHash string) (*domain.Session, error)
	// ListActiveByUser returns active sessions ordered by last activity, newest first.
	ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	UpdateLastActivity(ctx context.Context, id string, at time.Time) error
	UpdateRefreshToken(ctx context.Context, id, refreshHash string, at time.Time) error
	MarkExpired(ctx context.Context, id string) error
	// RevokeByToken revokes the active session with the given token. Returns false when none matched.
	RevokeByToken(ctx context.Context, token string, at time.Time) (bool, error)
	RevokeAllByUser(ctx context.Context, userID string, at time.Time) (int64, error)
	// ExpireStale marks every active session with expires_at <= now as expired.
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}
