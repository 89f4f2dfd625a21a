package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestUser_Validate_Defaults(t *testing.T) {
	u := &User{Code: "ADV001", Name: "Ana", Email: "ana@example.com", PasswordHash: "h"}
	if err := u.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if u.Role != RoleAgent {
		t.Errorf("Role = %q, want %q", u.Role, RoleAgent)
	}
	if u.Status != UserStatusActive {
		t.Errorf("Status = %q, want %q", u.Status, UserStatusActive)
	}
}

func TestUser_Validate_Rejects(t *testing.T) {
	cases := map[string]User{
		"missing code":  {Name: "n", Email: "a@b.c", PasswordHash: "h"},
		"missing name":  {Code: "c", Email: "a@b.c", PasswordHash: "h"},
		"bad email":     {Code: "c", Name: "n", Email: "nope", PasswordHash: "h"},
		"missing hash":  {Code: "c", Name: "n", Email: "a@b.c"},
		"unknown role":  {Code: "c", Name: "n", Email: "a@b.c", PasswordHash: "h", Role: "root"},
		"unknown state": {Code: "c", Name: "n", Email: "a@b.c", PasswordHash: "h", Status: "deleted"},
	}
	for name, u := range cases {
		if err := u.Validate(); err == nil {
			t.Errorf("%s: Validate should fail", name)
		}
	}
}

func TestUser_Normalize(t *testing.T) {
	u := &User{Code: "  ADV001 ", Email: " Ana@Example.COM ", Name: " Ana "}
	u.Normalize()
	if u.Code != "ADV001" || u.Email != "ana@example.com" || u.Name != "Ana" {
		t.Errorf("Normalize = %q %q %q", u.Code, u.Email, u.Name)
	}
}

func TestUser_NeverSerializesHash(t *testing.T) {
	u := &User{ID: "u1", Code: "ADV001", PasswordHash: "$2a$12$secret"}
	for _, v := range []any{u, u.Public()} {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if strings.Contains(string(b), "secret") {
			t.Errorf("serialized user leaks the hash: %s", b)
		}
	}
}
