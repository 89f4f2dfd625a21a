package domain

import "time"

// SessionStatus is the lifecycle state of a session row.
type SessionStatus string

const (
	SessionStatusActive  SessionStatus = "active"
	SessionStatusExpired SessionStatus = "expired"
	SessionStatusRevoked SessionStatus = "revoked"
)

// Session binds a token lineage to a user, a device and an expiry.
// Token is the opaque value carried as the sessionId claim in both access and refresh tokens.
type Session struct {
	ID               string
	UserID           string
	Token            string
	RefreshTokenHash string // SHA-256 of the current refresh token; rotated on refresh
	IPAddress        string
	UserAgent        string
	Device           DeviceInfo
	Status           SessionStatus
	CreatedAt        time.Time
	LastActivityAt   time.Time
	ExpiresAt        time.Time
	RevokedAt        *time.Time
}

// IsExpired reports whether the session's expiry has passed at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsValid reports whether the session is active and not expired at now.
func (s *Session) IsValid(now time.Time) bool {
	return s != nil && s.Status == SessionStatusActive && !s.IsExpired(now)
}
