package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKind_Status(t *testing.T) {
	cases := map[Kind]int{
		KindAuthentication: http.StatusUnauthorized,
		KindAuthorization:  http.StatusForbidden,
		KindValidation:     http.StatusBadRequest,
		KindNotFound:       http.StatusNotFound,
		KindConflict:       http.StatusConflict,
		KindRateLimited:    http.StatusTooManyRequests,
		KindInternal:       http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := kind.Status(); got != want {
			t.Errorf("%s.Status() = %d, want %d", kind, got, want)
		}
	}
}

func TestAs_WrappedAppError(t *testing.T) {
	base := Unauthenticated(CodeInvalidSession, "Sesión inválida")
	wrapped := fmt.Errorf("gate: %w", base)

	got := As(wrapped)
	if got != base {
		t.Fatalf("As returned %v, want the original error", got)
	}
	if !HasCode(wrapped, CodeInvalidSession) {
		t.Error("HasCode should see through wrapping")
	}
}

func TestAs_PlainErrorBecomesInternal(t *testing.T) {
	cause := errors.New("connection refused")
	got := As(cause)
	if got.Kind != KindInternal || got.Code != CodeInternal {
		t.Errorf("As(plain) = %s/%s, want internal/%s", got.Kind, got.Code, CodeInternal)
	}
	if !errors.Is(got, cause) {
		t.Error("internal error should unwrap to the cause")
	}
	if As(nil) != nil {
		t.Error("As(nil) should be nil")
	}
}

func TestWithDetails_DoesNotMutate(t *testing.T) {
	base := Forbidden(CodeInsufficientPermissions, "Permisos insuficientes")
	withDetails := base.WithDetails(map[string]any{"userRole": "agent"})
	if base.Details != nil {
		t.Error("WithDetails mutated the receiver")
	}
	if withDetails.Details == nil || withDetails.Code != base.Code {
		t.Error("WithDetails lost fields")
	}
}
