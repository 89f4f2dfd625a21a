package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"chancafe-q/backend/internal/health"
	"chancafe-q/backend/internal/server/response"
)

// Version is reported by the status endpoints.
const Version = "1.0.0"

// HTTPHandler serves the REST health and status endpoints.
type HTTPHandler struct {
	checker *health.Checker
	resp    *response.Writer
	env     string
	started time.Time
}

// NewHTTPHandler returns an HTTPHandler.
func NewHTTPHandler(checker *health.Checker, resp *response.Writer, env string) *HTTPHandler {
	return &HTTPHandler{checker: checker, resp: resp, env: env, started: time.Now()}
}

// Health runs the dependency probes. It answers 200 even when degraded; the status field carries the verdict.
func (h *HTTPHandler) Health(c *gin.Context) {
	report := h.checker.Check(c.Request.Context())
	message := "Auth service is healthy"
	if !report.Healthy() {
		message = "Auth service is degraded"
	}
	h.resp.OK(c, message, gin.H{
		"service":   "Authentication Service",
		"status":    report.Status,
		"timestamp": report.CheckedAt,
		"checks":    report.Checks,
	})
}

// Status reports that the API is up.
func (h *HTTPHandler) Status(c *gin.Context) {
	h.resp.OK(c, "API is running", gin.H{
		"service":     "CHANCAFE Q API",
		"version":     Version,
		"environment": h.env,
		"uptime":      time.Since(h.started).Seconds(),
	})
}
