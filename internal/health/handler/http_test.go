package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"chancafe-q/backend/internal/health"
	"chancafe-q/backend/internal/server/response"
)

func init() { gin.SetMode(gin.TestMode) }

func TestHTTPHandler_Health(t *testing.T) {
	checker := health.NewChecker(time.Second)
	checker.AddPinger("database", &mockPinger{pingErr: errors.New("down")})
	h := NewHTTPHandler(checker, response.NewWriter(false, nil), "test")

	r := gin.New()
	r.GET("/health", h.Health)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var env struct {
		Success bool `json:"success"`
		Data    struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data.Status != health.StatusDegraded || env.Data.Checks["database"] != "down" {
		t.Errorf("data = %+v", env.Data)
	}
}

func TestHTTPHandler_Status(t *testing.T) {
	h := NewHTTPHandler(health.NewChecker(time.Second), response.NewWriter(false, nil), "test")
	r := gin.New()
	r.GET("/", h.Status)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var env struct {
		Code string         `json:"code"`
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Code != "SUCCESS" || env.Data["version"] != Version || env.Data["environment"] != "test" {
		t.Errorf("envelope = %+v", env)
	}
}
