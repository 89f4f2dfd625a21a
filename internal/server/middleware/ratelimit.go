package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chancafe-q/backend/internal/apperr"
	"chancafe-q/backend/internal/metrics"
	"chancafe-q/backend/internal/ratelimit"
	userdomain "chancafe-q/backend/internal/user/domain"
)

// RateLimitRule is a request budget per window.
type RateLimitRule struct {
	Limit  int
	Window time.Duration
}

// RateLimiter builds limiting middleware over a shared Limiter. Limiter failures let the request through.
type RateLimiter struct {
	limiter ratelimit.Limiter
	errs    ErrorWriter
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewRateLimiter returns a RateLimiter. log and m may be nil.
func NewRateLimiter(limiter ratelimit.Limiter, errs ErrorWriter, log *zap.Logger, m *metrics.Metrics) *RateLimiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &RateLimiter{limiter: limiter, errs: errs, log: log.Named("ratelimit"), metrics: m}
}

// Login limits attempts per client IP and submitted user code.
func (rl *RateLimiter) Login(rule RateLimitRule) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "login:" + ClientIP(c) + ":" + loginCode(c)
		rl.enforce(c, "login", key, rule, apperr.CodeLoginRateLimitExceeded,
			"Demasiados intentos de login. Intenta de nuevo más tarde.")
	}
}

// API limits requests per client IP and authenticated user. Admins are not limited.
func (rl *RateLimiter) API(rule RateLimitRule) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := "anonymous"
		if p, ok := GetPrincipal(c); ok {
			if p.Role == userdomain.RoleAdmin {
				c.Next()
				return
			}
			userID = p.ID
		}
		rl.enforce(c, "api", ClientIP(c)+":"+userID, rule, apperr.CodeRateLimitExceeded,
			"Demasiadas solicitudes. Intenta de nuevo más tarde.")
	}
}

func (rl *RateLimiter) enforce(c *gin.Context, scope, key string, rule RateLimitRule, code, message string) {
	d, err := rl.limiter.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
	if err != nil {
		rl.log.Warn("limiter unavailable, allowing request", zap.String("scope", scope), zap.Error(err))
		c.Next()
		return
	}
	c.Header("RateLimit-Limit", strconv.Itoa(rule.Limit))
	c.Header("RateLimit-Remaining", strconv.Itoa(d.Remaining))
	if d.Allowed {
		c.Next()
		return
	}

	retryAfter := int(math.Ceil(d.RetryAfter.Seconds()))
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	rl.metrics.RecordRateLimited(scope)
	rl.errs.Error(c, apperr.RateLimited(code, message).WithDetails(map[string]any{
		"retryAfter": retryAfter,
		"limit":      rule.Limit,
		"windowMs":   rule.Window.Milliseconds(),
	}))
}

// loginCode peeks at the "code" field of the JSON body and restores the body for the handler.
func loginCode(c *gin.Context) string {
	if c.Request.Body == nil {
		return "unknown"
	}
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxAuthBodyBytes))
	if err != nil {
		c.Request.Body = http.NoBody
		return "unknown"
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))
	var body struct {
		Code string `json:"code"`
	}
	if json.Unmarshal(raw, &body) != nil {
		return "unknown"
	}
	code := userdomain.NormalizeCode(body.Code)
	if code == "" {
		return "unknown"
	}
	return code
}
