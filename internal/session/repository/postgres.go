package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"chancafe-q/backend/internal/session/domain"
)

const sessionColumns = `id, user_id, session_token, refresh_token_hash, ip_address, user_agent,
	device, browser, os, status, created_at, last_activity_at, expires_at, revoked_at`

// PostgresRepository stores sessions in the user_sessions table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the session row.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		s.ID, s.UserID, s.Token, nullString(s.RefreshTokenHash), nullString(s.IPAddress), nullString(s.UserAgent),
		s.Device.Device, s.Device.Browser, s.Device.OS, string(s.Status),
		s.CreatedAt, s.LastActivityAt, s.ExpiresAt, s.RevokedAt,
	)
	return err
}

// GetActiveByToken returns the active session for token, or nil if none.
func (r *PostgresRepository) GetActiveByToken(ctx context.Context, token string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM user_sessions
		WHERE session_token = $1 AND status = 'active'`, token)
	return scanOne(row)
}

// GetActiveByRefreshHash returns the active session whose current refresh token hashes to refreshHash.
func (r *PostgresRepository) GetActiveByRefreshHash(ctx context.Context, refreshHash string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM user_sessions
		WHERE refresh_token_hash = $1 AND status = 'active'`, refreshHash)
	return scanOne(row)
}

// ListActiveByUser returns the user's active sessions, most recently used first.
func (r *PostgresRepository) ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM user_sessions
		WHERE user_id = $1 AND status = 'active'
		ORDER BY last_activity_at DESC`, userID)
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

// UpdateLastActivity sets last_activity_at for the session.
func (r *PostgresRepository) UpdateLastActivity(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE user_sessions SET last_activity_at = $2 WHERE id = $1`, id, at)
	return err
}

// UpdateRefreshToken stores the hash of the rotated refresh token and records activity.
func (r *PostgresRepository) UpdateRefreshToken(ctx context.Context, id, refreshHash string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE user_sessions SET refresh_token_hash = $2, last_activity_at = $3 WHERE id = $1`, id, refreshHash, at)
	return err
}

// MarkExpired transitions a still-active session to expired.
func (r *PostgresRepository) MarkExpired(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE user_sessions SET status = 'expired' WHERE id = $1 AND status = 'active'`, id)
	return err
}

// RevokeByToken revokes the active session with the given token.
func (r *PostgresRepository) RevokeByToken(ctx context.Context, token string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE user_sessions SET status = 'revoked', revoked_at = $2
		WHERE session_token = $1 AND status = 'active'`, token, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RevokeAllByUser revokes every active session of the user and returns how many were revoked.
func (r *PostgresRepository) RevokeAllByUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE user_sessions SET status = 'revoked', revoked_at = $2
		WHERE user_id = $1 AND status = 'active'`, userID, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ExpireStale marks active sessions past their expiry as expired.
func (r *PostgresRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE user_sessions SET status = 'expired'
		WHERE status = 'active' AND expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(row *sql.Row) (*domain.Session, error) {
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func scanSession(sc scanner) (*domain.Session, error) {
	var (
		s         domain.Session
		refresh   sql.NullString
		ip        sql.NullString
		ua        sql.NullString
		status    string
		revokedAt sql.NullTime
	)
	if err := sc.Scan(
		&s.ID, &s.UserID, &s.Token, &refresh, &ip, &ua,
		&s.Device.Device, &s.Device.Browser, &s.Device.OS, &status,
		&s.CreatedAt, &s.LastActivityAt, &s.ExpiresAt, &revokedAt,
	); err != nil {
		return nil, err
	}
	s.RefreshTokenHash = refresh.String
	s.IPAddress = ip.String
	s.UserAgent = ua.String
	s.Status = domain.SessionStatus(status)
	if revokedAt.Valid {
		t := revokedAt.Time.UTC()
		s.RevokedAt = &t
	}
	return &s, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
