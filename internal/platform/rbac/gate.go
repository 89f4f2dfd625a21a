package rbac

import (
	"github.com/gin-gonic/gin"

	"chancafe-q/backend/internal/policy/engine"
	"chancafe-q/backend/internal/server/middleware"
	userdomain "chancafe-q/backend/internal/user/domain"
)

// Gate wraps the role checks as gin middleware. It must run after the auth gate.
type Gate struct {
	authz engine.Authorizer
	errs  middleware.ErrorWriter
}

// NewGate returns a Gate.
func NewGate(authz engine.Authorizer, errs middleware.ErrorWriter) *Gate {
	return &Gate{authz: authz, errs: errs}
}

// RequireRole admits callers holding one of roles.
func (g *Gate) RequireRole(roles ...userdomain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := RequireRole(c.Request.Context(), g.authz, roles...); err != nil {
			g.errs.Error(c, err)
			return
		}
		c.Next()
	}
}

// RequireAdmin admits admins.
func (g *Gate) RequireAdmin() gin.HandlerFunc {
	return g.RequireRole(userdomain.RoleAdmin)
}

// RequireSupervisorOrAdmin admits supervisors and admins.
func (g *Gate) RequireSupervisorOrAdmin() gin.HandlerFunc {
	return g.RequireRole(userdomain.RoleSupervisor, userdomain.RoleAdmin)
}

// RequireSelfOrAdmin admits admins and the user named by the path parameter param.
func (g *Gate) RequireSelfOrAdmin(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := RequireSelfOrAdmin(c.Request.Context(), g.authz, c.Param(param)); err != nil {
			g.errs.Error(c, err)
			return
		}
		c.Next()
	}
}
