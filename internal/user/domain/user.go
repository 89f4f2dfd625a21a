package domain

import (
	"errors"
	"strings"
	"time"
)

// User is an advisor, supervisor or administrator account.
type User struct {
	ID           string
	Code         string
	Name         string
	Email        string
	PasswordHash string `json:"-"`
	Role         Role
	Status       UserStatus
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Role is the authorization role of a user.
type Role string

const (
	RoleAgent      Role = "agent"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAgent, RoleSupervisor, RoleAdmin:
		return true
	}
	return false
}

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusInactive  UserStatus = "inactive"
	UserStatusSuspended UserStatus = "suspended"
)

// Valid reports whether s is one of the known statuses.
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusActive, UserStatusInactive, UserStatusSuspended:
		return true
	}
	return false
}

// IsActive reports whether the user may authenticate.
func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}

// Normalize trims the code and lower-cases the email.
func (u *User) Normalize() {
	u.Code = NormalizeCode(u.Code)
	u.Email = NormalizeEmail(u.Email)
	u.Name = strings.TrimSpace(u.Name)
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Code == "" {
		return errors.New("code is required")
	}
	if u.Name == "" {
		return errors.New("name is required")
	}
	if u.Email == "" || !strings.Contains(u.Email, "@") {
		return errors.New("a valid email is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if u.Role == "" {
		u.Role = RoleAgent
	}
	if !u.Role.Valid() {
		return errors.New("unknown role")
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	if !u.Status.Valid() {
		return errors.New("unknown status")
	}
	return nil
}

// NormalizeCode trims surrounding whitespace from a login code.
func NormalizeCode(code string) string {
	return strings.TrimSpace(code)
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PublicUser is the output representation of a user. It never carries the password hash.
type PublicUser struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        Role       `json:"role"`
	Status      UserStatus `json:"status"`
	LastLoginAt *time.Time `json:"lastLogin,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Public returns the output representation of u.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Code:        u.Code,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		Status:      u.Status,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}
