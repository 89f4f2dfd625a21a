// Package handler serves the authentication endpoints over HTTP.
package handler

import (
	"github.com/gin-gonic/gin"

	"chancafe-q/backend/internal/apperr"
	"chancafe-q/backend/internal/identity/service"
	"chancafe-q/backend/internal/metrics"
	"chancafe-q/backend/internal/security"
	"chancafe-q/backend/internal/server/middleware"
	"chancafe-q/backend/internal/server/response"
	userdomain "chancafe-q/backend/internal/user/domain"
)

// Handler holds the auth endpoints.
type Handler struct {
	auth    *service.AuthService
	resp    *response.Writer
	metrics *metrics.Metrics
}

// New returns a Handler. m may be nil.
func New(auth *service.AuthService, resp *response.Writer, m *metrics.Metrics) *Handler {
	return &Handler{auth: auth, resp: resp, metrics: m}
}

type loginRequest struct {
	Code     string `json:"code" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

type loginResponse struct {
	User         userdomain.PublicUser `json:"user"`
	AccessToken  string                `json:"accessToken"`
	RefreshToken string                `json:"refreshToken"`
	ExpiresIn    int64                 `json:"expiresIn"`
	TokenType    string                `json:"tokenType"`
	SessionID    string                `json:"sessionId"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	TokenType    string `json:"tokenType"`
	SessionID    string `json:"sessionId"`
}

func tokensOf(p *security.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		ExpiresIn:    p.ExpiresIn,
		TokenType:    p.TokenType,
		SessionID:    p.SessionID,
	}
}

// principal returns the authenticated caller; routes using it sit behind the auth gate.
func (h *Handler) principal(c *gin.Context) (*middleware.Principal, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		h.resp.Error(c, apperr.Unauthenticated(apperr.CodeAuthenticationRequired, "Autenticación requerida"))
	}
	return p, ok
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.Error(c, apperr.Invalid(apperr.CodeValidation, "Código y contraseña son requeridos"))
		return
	}
	res, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Identifier: req.Code,
		Password:   req.Password,
		IPAddress:  middleware.ClientIP(c),
		UserAgent:  c.Request.UserAgent(),
	})
	if err != nil {
		h.metrics.RecordLogin(false, apperr.As(err).Code)
		h.resp.Error(c, err)
		return
	}
	h.metrics.RecordLogin(true, "")
	h.resp.OK(c, "Login exitoso", loginResponse{
		User:         res.User,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		ExpiresIn:    res.Tokens.ExpiresIn,
		TokenType:    res.Tokens.TokenType,
		SessionID:    res.Tokens.SessionID,
	})
}

// Register handles POST /auth/register. Accounts are created by administrators only.
func (h *Handler) Register(c *gin.Context) {
	h.resp.Error(c, apperr.Forbidden(apperr.CodeRegistrationDisabled,
		"El registro de usuarios debe realizarse a través del panel de administración").
		WithDetails(map[string]any{"message": "Contacta al administrador para crear una nueva cuenta"}))
}

// Refresh handles POST /auth/refresh behind the refresh gate.
func (h *Handler) Refresh(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		h.resp.Error(c, apperr.Unauthenticated(apperr.CodeInvalidUser, "Usuario inválido"))
		return
	}
	pair, err := h.auth.Refresh(c.Request.Context(), user, middleware.GetToken(c))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, "Tokens renovados exitosamente", tokensOf(pair))
}

// Logout handles POST /auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	if err := h.auth.Logout(c.Request.Context(), p.ID, p.SessionID); err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, "Sesión cerrada exitosamente", nil)
}

// LogoutAll handles POST /auth/logout-all.
func (h *Handler) LogoutAll(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	closed, err := h.auth.LogoutAll(c.Request.Context(), p.ID)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, "Todas las sesiones cerradas exitosamente", gin.H{"closedSessions": closed})
}

// Sessions handles GET /auth/sessions.
func (h *Handler) Sessions(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	list, err := h.auth.ActiveSessions(c.Request.Context(), p.ID, p.SessionID)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, "Sesiones activas obtenidas", gin.H{"sessions": list, "total": len(list)})
}

// Validate handles GET /auth/validate.
func (h *Handler) Validate(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	v, err := h.auth.ValidateSession(c.Request.Context(), p.SessionID)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, "Sesión válida", v)
}

// ChangePassword handles POST /auth/change-password. Every session of the user is revoked.
func (h *Handler) ChangePassword(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.Error(c, apperr.Invalid(apperr.CodeValidation, "La contraseña actual y la nueva son requeridas"))
		return
	}
	revoked, err := h.auth.ChangePassword(c.Request.Context(), p.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, "Contraseña actualizada exitosamente. Inicia sesión nuevamente.", gin.H{"revokedSessions": revoked})
}

// Me handles GET /auth/me.
func (h *Handler) Me(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	snap, err := h.auth.Me(c.Request.Context(), p.ID)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, "Usuario activo", snap)
}

// CleanupSessions handles POST /auth/cleanup-sessions behind the admin guard.
func (h *Handler) CleanupSessions(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	cleaned, err := h.auth.CleanupExpiredSessions(c.Request.Context(), p.ID)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.metrics.AddSessionsSwept(cleaned)
	h.resp.OK(c, "Sesiones expiradas limpiadas", gin.H{"cleanedSessions": cleaned})
}

// Status handles GET /auth/status behind OptionalAuth.
func (h *Handler) Status(c *gin.Context) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		h.resp.OK(c, "No autenticado", gin.H{"authenticated": false})
		return
	}
	h.resp.OK(c, "Autenticado", gin.H{
		"authenticated": true,
		"user": gin.H{
			"id":     p.ID,
			"code":   p.Code,
			"name":   p.Name,
			"email":  p.Email,
			"role":   p.Role,
			"status": p.Status,
		},
	})
}
