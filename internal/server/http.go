// Package server assembles the HTTP router and the gRPC health server.
package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chancafe-q/backend/internal/apperr"
	healthhandler "chancafe-q/backend/internal/health/handler"
	identityhandler "chancafe-q/backend/internal/identity/handler"
	"chancafe-q/backend/internal/metrics"
	"chancafe-q/backend/internal/platform/rbac"
	"chancafe-q/backend/internal/server/middleware"
	"chancafe-q/backend/internal/server/response"
	userhandler "chancafe-q/backend/internal/user/handler"
)

// Deps holds everything NewRouter wires into routes.
type Deps struct {
	// BasePath prefixes every API route (e.g. /api/v1). Empty mounts at the root.
	BasePath string
	Log      *zap.Logger
	Resp     *response.Writer
	// Metrics may be nil; /metrics is then not mounted.
	Metrics *metrics.Metrics

	Authenticator *middleware.Authenticator
	Gate          *rbac.Gate
	// Limiter may be nil to disable rate limiting.
	Limiter    *middleware.RateLimiter
	LoginLimit middleware.RateLimitRule
	APILimit   middleware.RateLimitRule

	Auth   *identityhandler.Handler
	Users  *userhandler.Handler
	Health *healthhandler.HTTPHandler
}

// NewRouter returns the gin engine serving the REST API.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(
		middleware.Tracing(),
		middleware.Metrics(d.Metrics),
		middleware.RequestLogger(d.Log),
		middleware.Recovery(d.Resp, d.Log),
		middleware.ClientInfoMiddleware(),
	)

	notFound := func(c *gin.Context) {
		d.Resp.Error(c, apperr.NotFound(apperr.CodeRouteNotFound, "Ruta "+c.Request.Method+" "+c.Request.URL.Path+" no encontrada"))
	}
	r.NoRoute(notFound)
	r.NoMethod(notFound)

	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	api := r.Group(normalizeBase(d.BasePath))
	api.GET("", d.Health.Status)

	var loginLimit, apiLimit gin.HandlerFunc = passThrough, passThrough
	if d.Limiter != nil {
		loginLimit = d.Limiter.Login(d.LoginLimit)
		apiLimit = d.Limiter.API(d.APILimit)
	}
	authGate := d.Authenticator.Auth()

	auth := api.Group("/auth")
	{
		auth.POST("/login", loginLimit, d.Auth.Login)
		auth.POST("/register", d.Auth.Register)
		auth.POST("/refresh", d.Authenticator.RefreshGate(), d.Auth.Refresh)
		auth.POST("/refresh-token", d.Authenticator.RefreshGate(), d.Auth.Refresh)
		auth.GET("/health", d.Health.Health)
		auth.GET("/status", d.Authenticator.OptionalAuth(), d.Auth.Status)

		protected := auth.Group("", authGate, apiLimit)
		protected.POST("/logout", d.Auth.Logout)
		protected.POST("/logout-all", d.Auth.LogoutAll)
		protected.GET("/sessions", d.Auth.Sessions)
		protected.GET("/validate", d.Auth.Validate)
		protected.POST("/change-password", d.Auth.ChangePassword)
		protected.GET("/me", d.Auth.Me)
		protected.POST("/cleanup-sessions", d.Gate.RequireAdmin(), d.Auth.CleanupSessions)
	}

	users := api.Group("/users", authGate, apiLimit)
	{
		users.POST("", d.Gate.RequireAdmin(), d.Users.Create)
		users.GET("/:userId", d.Gate.RequireSelfOrAdmin("userId"), d.Users.Get)
		users.PATCH("/:userId/status", d.Gate.RequireAdmin(), d.Users.UpdateStatus)
		users.GET("/:userId/activity", d.Gate.RequireSupervisorOrAdmin(), d.Users.Activity)
	}

	return r
}

func passThrough(c *gin.Context) { c.Next() }

func normalizeBase(p string) string {
	p = strings.TrimRight(strings.TrimSpace(p), "/")
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
