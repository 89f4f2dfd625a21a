package engine

import (
	"context"
	"testing"
)

var decisionCases = []struct {
	name string
	req  Request
	want bool
}{
	{"agent on admin route", Request{Action: ActionRole, Subject: Subject{ID: "u1", Role: "agent"}, RequiredRoles: []string{"admin"}}, false},
	{"admin on admin route", Request{Action: ActionRole, Subject: Subject{ID: "u2", Role: "admin"}, RequiredRoles: []string{"admin"}}, true},
	{"supervisor on supervisor-or-admin", Request{Action: ActionRole, Subject: Subject{ID: "u3", Role: "supervisor"}, RequiredRoles: []string{"supervisor", "admin"}}, true},
	{"no roles listed", Request{Action: ActionRole, Subject: Subject{ID: "u1", Role: "agent"}}, false},
	{"self", Request{Action: ActionSelf, Subject: Subject{ID: "u1", Role: "agent"}, OwnerID: "u1"}, true},
	{"other user", Request{Action: ActionSelf, Subject: Subject{ID: "u1", Role: "supervisor"}, OwnerID: "u9"}, false},
	{"admin on other user", Request{Action: ActionSelf, Subject: Subject{ID: "u2", Role: "admin"}, OwnerID: "u9"}, true},
	{"empty ids", Request{Action: ActionSelf, Subject: Subject{Role: "agent"}}, false},
	{"unknown action", Request{Action: "delete", Subject: Subject{ID: "u2", Role: "admin"}}, false},
}

func TestStaticAuthorizer(t *testing.T) {
	var a StaticAuthorizer
	for _, tc := range decisionCases {
		got, err := a.Authorize(context.Background(), tc.req)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("%s: allowed = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestOPAAuthorizer_MatchesStatic(t *testing.T) {
	ctx := context.Background()
	a, err := NewOPAAuthorizer(ctx, "")
	if err != nil {
		t.Fatalf("NewOPAAuthorizer: %v", err)
	}
	for _, tc := range decisionCases {
		got, err := a.Authorize(ctx, tc.req)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("%s: allowed = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestOPAAuthorizer_HealthCheck(t *testing.T) {
	a, err := NewOPAAuthorizer(context.Background(), "")
	if err != nil {
		t.Fatalf("NewOPAAuthorizer: %v", err)
	}
	if err := a.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestOPAAuthorizer_CustomPolicy(t *testing.T) {
	policy := `package chancafe.authz

default allow := false

allow if input.subject.role == "supervisor"
`
	a, err := NewOPAAuthorizer(context.Background(), policy)
	if err != nil {
		t.Fatalf("NewOPAAuthorizer: %v", err)
	}
	ok, err := a.Authorize(context.Background(), Request{Action: ActionRole, Subject: Subject{Role: "supervisor"}})
	if err != nil || !ok {
		t.Errorf("supervisor: %v, %v; want allowed", ok, err)
	}
	ok, err = a.Authorize(context.Background(), Request{Action: ActionRole, Subject: Subject{Role: "admin"}, RequiredRoles: []string{"admin"}})
	if err != nil || ok {
		t.Errorf("admin under custom policy: %v, %v; want denied", ok, err)
	}
}

func TestNewOPAAuthorizer_InvalidPolicy(t *testing.T) {
	if _, err := NewOPAAuthorizer(context.Background(), "package broken\n\nallow if {"); err == nil {
		t.Error("expected compile error")
	}
}
