package repository

import (
	"context"

	"chancafe-q/backend/internal/audit/domain"
)

// Repository defines persistence for activity logs. Entries are never updated or deleted.
type Repository interface {
	Create(ctx context.Context, a *domain.ActivityLog) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.ActivityLog, error)
}
