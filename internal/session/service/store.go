// Package service implements the session store: creation, liveness lookups,
// activity tracking, revocation and the expiry sweep.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chancafe-q/backend/internal/platform/clock"
	"chancafe-q/backend/internal/security"
	"chancafe-q/backend/internal/session/domain"
	"chancafe-q/backend/internal/session/repository"
	userdomain "chancafe-q/backend/internal/user/domain"
)

// DefaultTTL is the session lifetime used when none is configured.
const DefaultTTL = 24 * time.Hour

// LastLoginRecorder records successful logins on the user record.
type LastLoginRecorder interface {
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// Store manages session rows. It is safe for concurrent use when the repository is.
type Store struct {
	repo  repository.Repository
	users LastLoginRecorder
	ttl   time.Duration
	clock clock.Clock
}

// NewStore returns a Store. ttl <= 0 uses DefaultTTL; a nil clock uses the system clock.
func NewStore(repo repository.Repository, users LastLoginRecorder, ttl time.Duration, clk clock.Clock) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{repo: repo, users: users, ttl: ttl, clock: clock.OrSystem(clk)}
}

// Now returns the store's current time.
func (s *Store) Now() time.Time { return s.clock.Now() }

// TTL returns the session lifetime.
func (s *Store) TTL() time.Duration { return s.ttl }

// Create opens a new active session for user and records the login on the user.
func (s *Store) Create(ctx context.Context, user *userdomain.User, ip, userAgent string) (*domain.Session, error) {
	now := s.clock.Now()
	sess := &domain.Session{
		ID:             uuid.NewString(),
		UserID:         user.ID,
		Token:          security.NewSessionToken(now),
		IPAddress:      ip,
		UserAgent:      userAgent,
		Device:         domain.ParseUserAgent(userAgent),
		Status:         domain.SessionStatusActive,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if s.users != nil {
		if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
			return nil, fmt.Errorf("update last login: %w", err)
		}
	}
	return sess, nil
}

// BindRefreshToken stores the hash of refreshToken as the session's current refresh token.
func (s *Store) BindRefreshToken(ctx context.Context, sess *domain.Session, refreshToken string) error {
	now := s.clock.Now()
	hash := security.HashRefreshToken(refreshToken)
	if err := s.repo.UpdateRefreshToken(ctx, sess.ID, hash, now); err != nil {
		return err
	}
	sess.RefreshTokenHash = hash
	sess.LastActivityAt = now
	return nil
}

// FindActiveByToken returns the active session for token, or nil. The row may
// already be past its expiry; check IsValid.
func (s *Store) FindActiveByToken(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, nil
	}
	return s.repo.GetActiveByToken(ctx, token)
}

// FindActiveByRefreshToken returns the active session whose current refresh token is refreshToken, or nil.
func (s *Store) FindActiveByRefreshToken(ctx context.Context, refreshToken string) (*domain.Session, error) {
	if refreshToken == "" {
		return nil, nil
	}
	return s.repo.GetActiveByRefreshHash(ctx, security.HashRefreshToken(refreshToken))
}

// IsValid reports whether sess is active and unexpired now.
func (s *Store) IsValid(sess *domain.Session) bool {
	return sess.IsValid(s.clock.Now())
}

// Touch records activity on the session. Concurrent touches are last-writer-wins.
func (s *Store) Touch(ctx context.Context, sess *domain.Session) error {
	now := s.clock.Now()
	if err := s.repo.UpdateLastActivity(ctx, sess.ID, now); err != nil {
		return err
	}
	sess.LastActivityAt = now
	return nil
}

// Expire marks a single session expired, used when a lookup finds it past its expiry.
func (s *Store) Expire(ctx context.Context, sess *domain.Session) error {
	if err := s.repo.MarkExpired(ctx, sess.ID); err != nil {
		return err
	}
	sess.Status = domain.SessionStatusExpired
	return nil
}

// Revoke revokes the active session for token. It returns false when no active session matched.
func (s *Store) Revoke(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	return s.repo.RevokeByToken(ctx, token, s.clock.Now())
}

// RevokeAll revokes every active session of the user and returns how many were revoked.
func (s *Store) RevokeAll(ctx context.Context, userID string) (int64, error) {
	return s.repo.RevokeAllByUser(ctx, userID, s.clock.Now())
}

// ListActive returns the user's active sessions, most recently used first.
func (s *Store) ListActive(ctx context.Context, userID string) ([]*domain.Session, error) {
	return s.repo.ListActiveByUser(ctx, userID)
}

// SweepExpired marks every active session past its expiry as expired. Safe to run repeatedly and concurrently.
func (s *Store) SweepExpired(ctx context.Context) (int64, error) {
	return s.repo.ExpireStale(ctx, s.clock.Now())
}
