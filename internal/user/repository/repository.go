package repository

import (
	"context"
	"errors"
	"time"

	"chancafe-q/backend/internal/user/domain"
)

// ErrDuplicate is returned by Create when the code or email is already taken.
var ErrDuplicate = errors.New("user code or email already exists")

// Repository defines persistence for users. Lookups return (nil, nil) when no row matches.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByCode(ctx context.Context, code string) (*domain.User, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	UpdatePasswordHash(ctx context.Context, id, hash string, at time.Time) error
	UpdateStatus(ctx context.Context, id string, status domain.UserStatus, at time.Time) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}
