package repository

import (
	"context"
	"sort"
	"sync"

	"chancafe-q/backend/internal/audit/domain"
)

// MemoryRepository is an in-memory Repository for development and tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []*domain.ActivityLog
}

// NewMemoryRepository returns an empty in-memory activity log repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Create(ctx context.Context, a *domain.ActivityLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *MemoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.ActivityLog, error) {
	r.mu.RLock()
	var out []*domain.ActivityLog
	for _, e := range r.entries {
		if e.UserID != nil && *e.UserID == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// All returns every stored entry in insertion order.
func (r *MemoryRepository) All() []*domain.ActivityLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.ActivityLog, len(r.entries))
	for i, e := range r.entries {
		cp := *e
		out[i] = &cp
	}
	return out
}
