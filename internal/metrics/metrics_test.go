package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveHTTP(t *testing.T) {
	m := New()
	m.ObserveHTTP(http.MethodPost, "/api/v1/auth/login", 200, 20*time.Millisecond)
	m.ObserveHTTP(http.MethodPost, "/api/v1/auth/login", 200, 30*time.Millisecond)
	m.ObserveHTTP(http.MethodPost, "/api/v1/auth/login", 401, 5*time.Millisecond)

	if got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("POST", "/api/v1/auth/login", "200")); got != 2 {
		t.Errorf("requests{200} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("POST", "/api/v1/auth/login", "401")); got != 1 {
		t.Errorf("requests{401} = %v, want 1", got)
	}
}

func TestRecordLogin(t *testing.T) {
	m := New()
	m.RecordLogin(true, "")
	m.RecordLogin(false, "INVALID_PASSWORD")
	m.RecordLogin(false, "INVALID_PASSWORD")

	if got := testutil.ToFloat64(m.loginsTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("logins{success} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.loginsTotal.WithLabelValues("INVALID_PASSWORD")); got != 2 {
		t.Errorf("logins{INVALID_PASSWORD} = %v, want 2", got)
	}
}

func TestAddSessionsSwept_IgnoresZero(t *testing.T) {
	m := New()
	m.AddSessionsSwept(0)
	m.AddSessionsSwept(3)
	if got := testutil.ToFloat64(m.sessionsSweptTotal); got != 3 {
		t.Errorf("swept = %v, want 3", got)
	}
}

func TestHandler_Exposition(t *testing.T) {
	m := New()
	m.RecordRateLimited("login")
	m.RecordAuthFailure("TOKEN_EXPIRED")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`chancafe_rate_limited_total{scope="login"} 1`,
		`chancafe_auth_failures_total{code="TOKEN_EXPIRED"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveHTTP("GET", "/", 200, time.Millisecond)
	m.RecordLogin(false, "USER_NOT_FOUND")
	m.RecordAuthFailure("MISSING_TOKEN")
	m.RecordRateLimited("api")
	m.AddSessionsSwept(1)
	if m.Registry() != nil {
		t.Error("nil metrics should have no registry")
	}
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
