package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"chancafe-q/backend/internal/apperr"
)

func init() { gin.SetMode(gin.TestMode) }

func decode(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
	}
	return env
}

func fixedWriter(debug bool) *Writer {
	w := NewWriter(debug, nil)
	w.Now = func() time.Time { return time.Date(2026, 3, 1, 12, 30, 0, 123456789, time.UTC) }
	return w
}

func TestSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	fixedWriter(false).Success(c, http.StatusCreated, "Creado", map[string]string{"id": "u1"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	env := decode(t, rec)
	if !env.Success || env.Code != apperr.CodeSuccess || env.StatusCode != 201 {
		t.Errorf("envelope = %+v", env)
	}
	if env.Timestamp != "2026-03-01T12:30:00.123Z" {
		t.Errorf("timestamp = %q, want 2026-03-01T12:30:00.123Z", env.Timestamp)
	}
}

func TestError_AppError(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)
	err := apperr.Forbidden(apperr.CodeInsufficientPermissions, "Permisos insuficientes").
		WithDetails(map[string]any{"userRole": "agent"})
	fixedWriter(false).Error(c, err)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	env := decode(t, rec)
	if env.Success || env.Code != apperr.CodeInsufficientPermissions || env.Details == nil {
		t.Errorf("envelope = %+v", env)
	}
	if !c.IsAborted() {
		t.Error("context should be aborted")
	}
}

func TestError_InternalHidesCause(t *testing.T) {
	for _, debug := range []bool{false, true} {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)
		fixedWriter(debug).Error(c, errors.New("pq: connection refused"))

		env := decode(t, rec)
		if rec.Code != http.StatusInternalServerError || env.Code != apperr.CodeInternal {
			t.Errorf("debug=%v: status/code = %d/%s", debug, rec.Code, env.Code)
		}
		if (env.Details != nil) != debug {
			t.Errorf("debug=%v: details = %v", debug, env.Details)
		}
	}
}
