package repository

import (
	"context"
	"sync"
	"time"

	"chancafe-q/backend/internal/user/domain"
)

// MemoryRepository is an in-memory Repository for development and tests.
// Returned users are copies; mutate through the repository methods.
type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[string]*domain.User
}

// NewMemoryRepository returns an empty in-memory user repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*domain.User)}
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneUser(r.byID[id]), nil
}

func (r *MemoryRepository) GetByCode(ctx context.Context, code string) (*domain.User, error) {
	code = domain.NormalizeCode(code)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.byID {
		if u.Code == code {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.byID {
		if domain.NormalizeEmail(u.Email) == email {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) Create(ctx context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.ID == u.ID || existing.Code == u.Code || domain.NormalizeEmail(existing.Email) == domain.NormalizeEmail(u.Email) {
			return ErrDuplicate
		}
	}
	r.byID[u.ID] = cloneUser(u)
	return nil
}

func (r *MemoryRepository) UpdatePasswordHash(ctx context.Context, id, hash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		u.PasswordHash = hash
		u.UpdatedAt = at
	}
	return nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, id string, status domain.UserStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		u.Status = status
		u.UpdatedAt = at
	}
	return nil
}

func (r *MemoryRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		t := at
		u.LastLoginAt = &t
	}
	return nil
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	cp := *u
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		cp.LastLoginAt = &t
	}
	return &cp
}
