// Package middleware holds the gin middleware of the REST API: the auth gates,
// client info, request logging, tracing, metrics and rate limiting.
package middleware

import (
	"context"
	"net"
	"strings"

	"github.com/gin-gonic/gin"

	"chancafe-q/backend/internal/security"
	userdomain "chancafe-q/backend/internal/user/domain"
)

type contextKey struct{ name string }

var (
	principalKey = contextKey{"principal"}
	clientKey    = contextKey{"client"}
)

// Gin context keys. Handlers read these through the typed accessors below.
const (
	ginPrincipalKey = "auth.principal"
	ginTokenKey     = "auth.token"
	ginClaimsKey    = "auth.claims"
	ginUserKey      = "auth.user"
)

// Principal is the authenticated caller attached by the auth gate.
type Principal struct {
	ID        string
	Code      string
	Name      string
	Email     string
	Role      userdomain.Role
	Status    userdomain.UserStatus
	SessionID string
}

// PrincipalOf builds a Principal from a user and the session token it authenticated with.
func PrincipalOf(u *userdomain.User, sessionID string) *Principal {
	return &Principal{
		ID:        u.ID,
		Code:      u.Code,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Status:    u.Status,
		SessionID: sessionID,
	}
}

// ClientInfo is the caller's network address and user agent.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the principal stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// GetPrincipal returns the principal attached to the request, if any.
func GetPrincipal(c *gin.Context) (*Principal, bool) {
	v, ok := c.Get(ginPrincipalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok && p != nil
}

// GetToken returns the raw bearer token the request authenticated with.
func GetToken(c *gin.Context) string {
	return c.GetString(ginTokenKey)
}

// GetClaims returns the verified access token claims.
func GetClaims(c *gin.Context) (*security.Claims, bool) {
	v, ok := c.Get(ginClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*security.Claims)
	return claims, ok
}

// GetUser returns the user entity attached by the refresh gate.
func GetUser(c *gin.Context) (*userdomain.User, bool) {
	v, ok := c.Get(ginUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*userdomain.User)
	return u, ok && u != nil
}

func attachPrincipal(c *gin.Context, p *Principal, token string, claims *security.Claims) {
	c.Set(ginPrincipalKey, p)
	c.Set(ginTokenKey, token)
	c.Set(ginClaimsKey, claims)
	c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), p))
}

// ClientInfoMiddleware stores the caller's IP and user agent in the request context.
func ClientInfoMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		info := ClientInfo{IP: ClientIP(c), UserAgent: c.Request.UserAgent()}
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), clientKey, info))
		c.Next()
	}
}

// ClientInfoFromContext returns the IP and user agent stored by ClientInfoMiddleware.
// It satisfies audit.ClientInfoExtractor.
func ClientInfoFromContext(ctx context.Context) (ip, userAgent string) {
	info, _ := ctx.Value(clientKey).(ClientInfo)
	return info.IP, info.UserAgent
}

// ClientIP returns the client IP from X-Forwarded-For, X-Real-IP or the remote address, or "unknown".
func ClientIP(c *gin.Context) string {
	if s := strings.TrimSpace(c.GetHeader("X-Forwarded-For")); s != "" {
		if i := strings.Index(s, ","); i > 0 {
			s = strings.TrimSpace(s[:i])
		}
		return s
	}
	if s := strings.TrimSpace(c.GetHeader("X-Real-IP")); s != "" {
		return s
	}
	addr := c.Request.RemoteAddr
	if addr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
