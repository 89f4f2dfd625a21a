// Package handler serves user administration endpoints over HTTP.
package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chancafe-q/backend/internal/apperr"
	auditdomain "chancafe-q/backend/internal/audit/domain"
	"chancafe-q/backend/internal/server/middleware"
	"chancafe-q/backend/internal/server/response"
	"chancafe-q/backend/internal/user/domain"
	"chancafe-q/backend/internal/user/service"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 200
)

// ActivityLister reads a user's recorded activity, newest first.
type ActivityLister interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]*auditdomain.ActivityLog, error)
}

// Handler holds the user endpoints.
type Handler struct {
	users    *service.Service
	activity ActivityLister
	resp     *response.Writer
}

// New returns a Handler. activity may be nil, in which case the activity endpoint returns an empty list.
func New(users *service.Service, activity ActivityLister, resp *response.Writer) *Handler {
	return &Handler{users: users, activity: activity, resp: resp}
}

type statusRequest struct {
	Status domain.UserStatus `json:"status" binding:"required"`
}

func actorID(c *gin.Context) string {
	if p, ok := middleware.GetPrincipal(c); ok {
		return p.ID
	}
	return ""
}

// Create handles POST /users.
func (h *Handler) Create(c *gin.Context) {
	var in service.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.resp.Error(c, apperr.Invalid(apperr.CodeValidation, "Código, nombre, email y contraseña son requeridos"))
		return
	}
	u, err := h.users.Create(c.Request.Context(), actorID(c), in)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.Success(c, http.StatusCreated, "Usuario creado exitosamente", u)
}

// Get handles GET /users/:userId.
func (h *Handler) Get(c *gin.Context) {
	u, err := h.users.Get(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, "Usuario obtenido", u)
}

// UpdateStatus handles PATCH /users/:userId/status.
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.Error(c, apperr.Invalid(apperr.CodeValidation, "El estado es requerido"))
		return
	}
	u, err := h.users.UpdateStatus(c.Request.Context(), actorID(c), c.Param("userId"), req.Status)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, "Estado actualizado", u)
}

// Activity handles GET /users/:userId/activity. limit defaults to 50 and is capped at 200.
func (h *Handler) Activity(c *gin.Context) {
	limit := defaultActivityLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.resp.Error(c, apperr.Invalid(apperr.CodeValidation, "limit debe ser un entero positivo"))
			return
		}
		limit = min(n, maxActivityLimit)
	}
	userID := c.Param("userId")
	if _, err := h.users.Get(c.Request.Context(), userID); err != nil {
		h.resp.Error(c, err)
		return
	}
	entries := []*auditdomain.ActivityLog{}
	if h.activity != nil {
		list, err := h.activity.ListByUser(c.Request.Context(), userID, limit)
		if err != nil {
			h.resp.Error(c, apperr.Internal(apperr.CodeInternal, err))
			return
		}
		if list != nil {
			entries = list
		}
	}
	h.resp.OK(c, "Actividad obtenida", gin.H{"activity": entries, "total": len(entries)})
}
