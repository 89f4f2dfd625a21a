package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"chancafe-q/backend/internal/session/domain"
)

// MemoryRepository is an in-memory Repository for development and tests.
type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[string]*domain.Session
}

// NewMemoryRepository returns an empty in-memory session repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*domain.Session)}
}

func (r *MemoryRepository) Create(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[s.ID] = cloneSession(s)
	return nil
}

func (r *MemoryRepository) GetActiveByToken(ctx context.Context, token string) (*domain.Session, error) {
	return r.findActive(func(s *domain.Session) bool { return s.Token == token }), nil
}

func (r *MemoryRepository) GetActiveByRefreshHash(ctx context.Context, refreshHash string) (*domain.Session, error) {
	if refreshHash == "" {
		return nil, nil
	}
	return r.findActive(func(s *domain.Session) bool { return s.RefreshTokenHash == refreshHash }), nil
}

func (r *MemoryRepository) ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	r.mu.RLock()
	var out []*domain.Session
	for _, s := range r.byID {
		if s.UserID == userID && s.Status == domain.SessionStatusActive {
			out = append(out, cloneSession(s))
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivityAt.After(out[j].LastActivityAt) })
	return out, nil
}

func (r *MemoryRepository) UpdateLastActivity(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byID[id]; ok {
		s.LastActivityAt = at
	}
	return nil
}

func (r *MemoryRepository) UpdateRefreshToken(ctx context.Context, id, refreshHash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byID[id]; ok {
		s.RefreshTokenHash = refreshHash
		s.LastActivityAt = at
	}
	return nil
}

func (r *MemoryRepository) MarkExpired(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byID[id]; ok && s.Status == domain.SessionStatusActive {
		s.Status = domain.SessionStatusExpired
	}
	return nil
}

func (r *MemoryRepository) RevokeByToken(ctx context.Context, token string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byID {
		if s.Token == token && s.Status == domain.SessionStatusActive {
			revoke(s, at)
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) RevokeAllByUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.byID {
		if s.UserID == userID && s.Status == domain.SessionStatusActive {
			revoke(s, at)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.byID {
		if s.Status == domain.SessionStatusActive && s.IsExpired(now) {
			s.Status = domain.SessionStatusExpired
			n++
		}
	}
	return n, nil
}

// Get returns any session by id regardless of status. Used by tests and diagnostics.
func (r *MemoryRepository) Get(id string) *domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSession(r.byID[id])
}

// Count returns the number of stored sessions in any status.
func (r *MemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *MemoryRepository) findActive(match func(*domain.Session) bool) *domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.byID {
		if s.Status == domain.SessionStatusActive && match(s) {
			return cloneSession(s)
		}
	}
	return nil
}

func revoke(s *domain.Session, at time.Time) {
	t := at
	s.Status = domain.SessionStatusRevoked
	s.RevokedAt = &t
}

func cloneSession(s *domain.Session) *domain.Session {
	if s == nil {
		return nil
	}
	cp := *s
	if s.RevokedAt != nil {
		t := *s.RevokedAt
		cp.RevokedAt = &t
	}
	return &cp
}
