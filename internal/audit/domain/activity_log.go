package domain

import "time"

// Action is the kind of security-relevant event recorded.
type Action string

const (
	ActionLogin            Action = "LOGIN"
	ActionLoginSuccess     Action = "LOGIN_SUCCESS"
	ActionLoginFailed      Action = "LOGIN_FAILED"
	ActionLogout           Action = "LOGOUT"
	ActionLogoutAll        Action = "LOGOUT_ALL"
	ActionPasswordChange   Action = "PASSWORD_CHANGE"
	ActionTokenRefresh     Action = "TOKEN_REFRESH"
	ActionSessionCleanup   Action = "SESSION_CLEANUP"
	ActionUserCreate       Action = "USER_CREATE"
	ActionUserStatusChange Action = "USER_STATUS_CHANGE"
)

// ActivityLog is an append-only audit record. UserID is nil for anonymous or failed attempts.
type ActivityLog struct {
	ID         string         `json:"id"`
	UserID     *string        `json:"userId"`
	Action     Action         `json:"action"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId,omitempty"`
	OldValues  map[string]any `json:"oldValues,omitempty"`
	NewValues  map[string]any `json:"newValues,omitempty"`
	IPAddress  string         `json:"ipAddress,omitempty"`
	UserAgent  string         `json:"userAgent,omitempty"`
	Notes      string         `json:"notes,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}
