package service

import (
	"context"
	"errors"
	"strings"

	"chancafe-q/backend/internal/apperr"
	"chancafe-q/backend/internal/security"
	userdomain "chancafe-q/backend/internal/user/domain"
)

// Verification is the outcome of a credential check. Expected failures are
// reported through OK and Reason, never as errors.
type Verification struct {
	OK      bool
	User    *userdomain.User
	Reason  string // stable code, empty on success
	Message string
}

// UserLookup resolves users by login identifier.
type UserLookup interface {
	GetByCode(ctx context.Context, code string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
}

// PasswordComparer checks a password against a stored hash.
type PasswordComparer interface {
	Compare(ctx context.Context, hash, password string) error
}

// Verifier checks login identifiers and passwords against stored users.
//
// The failure reasons distinguish an unknown user, an inactive user and a wrong
// password, which lets a caller enumerate accounts.
type Verifier struct {
	users  UserLookup
	hasher PasswordComparer
}

// NewVerifier returns a Verifier.
func NewVerifier(users UserLookup, hasher PasswordComparer) *Verifier {
	return &Verifier{users: users, hasher: hasher}
}

// Verify looks the user up by email when identifier contains '@', otherwise by
// login code, and compares secret with the stored hash. It has no side effects.
func (v *Verifier) Verify(ctx context.Context, identifier, secret string) (Verification, error) {
	user, err := v.lookup(ctx, identifier)
	if err != nil {
		return Verification{}, err
	}
	if user == nil {
		return fail(apperr.CodeUserNotFound, "Usuario no encontrado"), nil
	}
	if !user.IsActive() {
		return Verification{User: user, Reason: apperr.CodeUserInactive, Message: "Usuario inactivo o suspendido"}, nil
	}
	if err := v.hasher.Compare(ctx, user.PasswordHash, secret); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			return Verification{User: user, Reason: apperr.CodeInvalidPassword, Message: "Contraseña incorrecta"}, nil
		}
		return Verification{}, err
	}
	return Verification{OK: true, User: user}, nil
}

func (v *Verifier) lookup(ctx context.Context, identifier string) (*userdomain.User, error) {
	if strings.Contains(identifier, "@") {
		return v.users.GetByEmail(ctx, userdomain.NormalizeEmail(identifier))
	}
	code := userdomain.NormalizeCode(identifier)
	if code == "" {
		return nil, nil
	}
	return v.users.GetByCode(ctx, code)
}

func fail(reason, message string) Verification {
	return Verification{Reason: reason, Message: message}
}
