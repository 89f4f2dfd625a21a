// Package service implements user administration: creation, lookup and status changes.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"chancafe-q/backend/internal/apperr"
	"chancafe-q/backend/internal/audit"
	auditdomain "chancafe-q/backend/internal/audit/domain"
	"chancafe-q/backend/internal/platform/clock"
	"chancafe-q/backend/internal/security"
	"chancafe-q/backend/internal/user/domain"
	"chancafe-q/backend/internal/user/repository"
)

// SessionRevoker closes every session of a user.
type SessionRevoker interface {
	RevokeAll(ctx context.Context, userID string) (int64, error)
}

// CreateInput is the data of a new user. Role and Status default to agent and active.
type CreateInput struct {
	Code     string            `json:"code" binding:"required"`
	Name     string            `json:"name" binding:"required"`
	Email    string            `json:"email" binding:"required"`
	Password string            `json:"password" binding:"required"`
	Role     domain.Role       `json:"role"`
	Status   domain.UserStatus `json:"status"`
}

// Service manages user accounts.
type Service struct {
	repo     repository.Repository
	hasher   *security.Hasher
	policy   security.PasswordPolicy
	sessions SessionRevoker
	audit    *audit.Recorder
	clock    clock.Clock
}

// NewService returns a Service. recorder and clk may be nil.
func NewService(repo repository.Repository, hasher *security.Hasher, policy security.PasswordPolicy, sessions SessionRevoker, recorder *audit.Recorder, clk clock.Clock) *Service {
	return &Service{
		repo:     repo,
		hasher:   hasher,
		policy:   policy,
		sessions: sessions,
		audit:    recorder,
		clock:    clock.OrSystem(clk),
	}
}

// Create validates and stores a new user. actorID is recorded as the creator; it may be empty for seeding.
func (s *Service) Create(ctx context.Context, actorID string, in CreateInput) (*domain.PublicUser, error) {
	if err := s.policy.Validate(in.Password); err != nil {
		return nil, apperr.Invalid(apperr.CodeWeakPassword, security.WeakPasswordMessage(err)).
			WithDetails(security.EvaluateStrength(in.Password))
	}
	now := s.clock.Now()
	u := &domain.User{
		ID:        uuid.NewString(),
		Code:      in.Code,
		Name:      in.Name,
		Email:     in.Email,
		Role:      in.Role,
		Status:    in.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	u.Normalize()
	// Validate requires a hash; check the other fields before paying for bcrypt.
	u.PasswordHash = "-"
	if err := u.Validate(); err != nil {
		return nil, apperr.Invalid(apperr.CodeValidation, err.Error())
	}
	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, apperr.Internal("", fmt.Errorf("hash password: %w", err))
	}
	u.PasswordHash = hash

	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Conflict(apperr.CodeUserAlreadyExists, "El código o email ya está registrado")
		}
		return nil, apperr.Internal("", err)
	}
	s.audit.Record(ctx, audit.Entry{
		UserID:     actorID,
		Action:     auditdomain.ActionUserCreate,
		EntityType: "user",
		EntityID:   u.ID,
		NewValues:  map[string]any{"code": u.Code, "email": u.Email, "role": string(u.Role), "status": string(u.Status)},
		Notes:      "Usuario creado: " + u.Code,
	})
	pub := u.Public()
	return &pub, nil
}

// Get returns the public representation of a user.
func (s *Service) Get(ctx context.Context, id string) (*domain.PublicUser, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal("", err)
	}
	if u == nil {
		return nil, apperr.NotFound(apperr.CodeUserNotFound, "Usuario no encontrado")
	}
	pub := u.Public()
	return &pub, nil
}

// UpdateStatus changes a user's lifecycle status. Leaving active revokes every session of the user.
func (s *Service) UpdateStatus(ctx context.Context, actorID, id string, status domain.UserStatus) (*domain.PublicUser, error) {
	if !status.Valid() {
		return nil, apperr.Invalid(apperr.CodeValidation, "Estado de usuario inválido")
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal("", err)
	}
	if u == nil {
		return nil, apperr.NotFound(apperr.CodeUserNotFound, "Usuario no encontrado")
	}
	previous := u.Status
	now := s.clock.Now()
	if err := s.repo.UpdateStatus(ctx, u.ID, status, now); err != nil {
		return nil, apperr.Internal("", err)
	}
	var revoked int64
	if status != domain.UserStatusActive {
		if revoked, err = s.sessions.RevokeAll(ctx, u.ID); err != nil {
			return nil, apperr.Internal("", err)
		}
	}
	s.audit.Record(ctx, audit.Entry{
		UserID:     actorID,
		Action:     auditdomain.ActionUserStatusChange,
		EntityType: "user",
		EntityID:   u.ID,
		OldValues:  map[string]any{"status": string(previous)},
		NewValues:  map[string]any{"status": string(status), "revokedSessions": revoked},
	})
	u.Status = status
	u.UpdatedAt = now
	pub := u.Public()
	return &pub, nil
}
