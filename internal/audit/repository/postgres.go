package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"chancafe-q/backend/internal/audit/domain"
)

// PostgresRepository stores activity logs in the activity_logs table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an activity log repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the entry. Old and new values are stored as JSONB.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.ActivityLog) error {
	oldValues, err := marshalValues(a.OldValues)
	if err != nil {
		return err
	}
	newValues, err := marshalValues(a.NewValues)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO activity_logs (id, user_id, action, entity_type, entity_id, old_values, new_values, ip_address, user_agent, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.UserID, string(a.Action), a.EntityType, nullString(a.EntityID), oldValues, newValues,
		nullString(a.IPAddress), nullString(a.UserAgent), nullString(a.Notes), a.CreatedAt,
	)
	return err
}

// ListByUser returns the user's most recent entries, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.ActivityLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, action, entity_type, entity_id, old_values, new_values, ip_address, user_agent, notes, created_at
		FROM activity_logs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.ActivityLog
	for rows.Next() {
		var (
			a                    domain.ActivityLog
			uid                  sql.NullString
			action               string
			entityID, ip, ua, nt sql.NullString
			oldValues, newValues []byte
		)
		if err := rows.Scan(&a.ID, &uid, &action, &a.EntityType, &entityID, &oldValues, &newValues, &ip, &ua, &nt, &a.CreatedAt); err != nil {
			return nil, err
		}
		if uid.Valid {
			s := uid.String
			a.UserID = &s
		}
		a.Action = domain.Action(action)
		a.EntityID, a.IPAddress, a.UserAgent, a.Notes = entityID.String, ip.String, ua.String, nt.String
		if len(oldValues) > 0 {
			_ = json.Unmarshal(oldValues, &a.OldValues)
		}
		if len(newValues) > 0 {
			_ = json.Unmarshal(newValues, &a.NewValues)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func marshalValues(v map[string]any) ([]byte, error) {
	if len(v) == 0 {
		return nil, nil
	}
	return json.Marshal(v)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
