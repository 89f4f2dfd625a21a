package security

import (
	"errors"
	"strings"
	"testing"
	"time"

	"chancafe-q/backend/internal/platform/clock"
)

var testSubject = Subject{
	ID: "u1", Code: "ADV001", Name: "Ana", Email: "ana@example.com", Role: "agent", Status: "active",
}

func newManualClock() *clock.Manual {
	return clock.NewManual(time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC))
}

func TestTokenIssuer_IssuePairRoundTrip(t *testing.T) {
	for _, mode := range []string{"hmac", "rsa"} {
		t.Run(mode, func(t *testing.T) {
			c := newManualClock()
			p := NewTestTokenIssuer(c)
			if mode == "rsa" {
				var err error
				if p, err = NewTestKeyPairTokenIssuer(c); err != nil {
					t.Fatalf("NewTestKeyPairTokenIssuer: %v", err)
				}
			}

			pair, err := p.IssuePair(testSubject, "sess-1")
			if err != nil {
				t.Fatalf("IssuePair: %v", err)
			}
			if pair.SessionID != "sess-1" || pair.TokenType != "Bearer" || pair.ExpiresIn != 3600 {
				t.Errorf("pair = %+v", pair)
			}

			claims, err := p.VerifyAccess(pair.AccessToken)
			if err != nil {
				t.Fatalf("VerifyAccess: %v", err)
			}
			if claims.UserID != "u1" || claims.SessionID != "sess-1" {
				t.Errorf("claims user=%q session=%q, want u1/sess-1", claims.UserID, claims.SessionID)
			}
			if claims.Code != "ADV001" || claims.Role != "agent" || claims.Email != "ana@example.com" {
				t.Errorf("claims snapshot = %+v", claims)
			}

			refresh, err := p.VerifyRefresh(pair.RefreshToken)
			if err != nil {
				t.Fatalf("VerifyRefresh: %v", err)
			}
			if refresh.SessionID != "sess-1" || refresh.Type != TokenTypeRefresh {
				t.Errorf("refresh claims = %+v", refresh)
			}
			if refresh.Code != "" || refresh.Email != "" {
				t.Error("refresh token should not carry the user snapshot")
			}
		})
	}
}

func TestTokenIssuer_GeneratesSessionID(t *testing.T) {
	p := NewTestTokenIssuer(nil)
	a, err := p.IssuePair(testSubject, "")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	b, _ := p.IssuePair(testSubject, "")
	if a.SessionID == "" || a.SessionID == b.SessionID {
		t.Errorf("generated session ids %q and %q should be non-empty and distinct", a.SessionID, b.SessionID)
	}
	if !strings.Contains(a.SessionID, "_") {
		t.Errorf("session id %q should be <uuid>_<millis>", a.SessionID)
	}
}

func TestTokenIssuer_Expired(t *testing.T) {
	c := newManualClock()
	p := NewTestTokenIssuer(c)
	pair, _ := p.IssuePair(testSubject, "sess-1")

	c.Advance(2 * time.Hour)
	if _, err := p.VerifyAccess(pair.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("VerifyAccess after expiry: err = %v, want ErrTokenExpired", err)
	}
	if _, err := p.VerifyRefresh(pair.RefreshToken); err != nil {
		t.Errorf("refresh token should outlive access token: %v", err)
	}
	c.Advance(24 * time.Hour)
	if _, err := p.VerifyRefresh(pair.RefreshToken); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("VerifyRefresh after expiry: err = %v, want ErrTokenExpired", err)
	}
}

func TestTokenIssuer_TypeDiscriminator(t *testing.T) {
	p := NewTestTokenIssuer(nil)
	pair, _ := p.IssuePair(testSubject, "sess-1")

	if _, err := p.VerifyAccess(pair.RefreshToken); !errors.Is(err, ErrWrongTokenType) {
		t.Errorf("VerifyAccess(refresh): err = %v, want ErrWrongTokenType", err)
	}
	if _, err := p.VerifyRefresh(pair.AccessToken); !errors.Is(err, ErrWrongTokenType) {
		t.Errorf("VerifyRefresh(access): err = %v, want ErrWrongTokenType", err)
	}
}

func TestTokenIssuer_InvalidFormat(t *testing.T) {
	p := NewTestTokenIssuer(nil)
	for _, tok := range []string{"", "abc", "a.b", "a..c", "a.b.c.d"} {
		if _, err := p.Verify(tok); !errors.Is(err, ErrInvalidTokenFormat) {
			t.Errorf("Verify(%q): err = %v, want ErrInvalidTokenFormat", tok, err)
		}
	}
	if _, err := p.Verify("a.b.c"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Verify(garbage 3 segments): err = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenIssuer_RejectsForeignTokens(t *testing.T) {
	p := NewTestTokenIssuer(nil)
	pair, _ := p.IssuePair(testSubject, "sess-1")

	other, _ := NewHMACTokenIssuer([]byte("another-secret"), testOptions(nil))
	if _, err := other.Verify(pair.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Verify with wrong secret: err = %v, want ErrTokenInvalid", err)
	}

	opts := testOptions(nil)
	opts.Audience = "someone-else"
	wrongAud, _ := NewHMACTokenIssuer([]byte(testSecret), opts)
	if _, err := wrongAud.Verify(pair.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Verify with wrong audience: err = %v, want ErrTokenInvalid", err)
	}

	rsaIssuer, _ := NewTestKeyPairTokenIssuer(nil)
	if _, err := rsaIssuer.Verify(pair.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("RS256 issuer accepting HS256 token: err = %v, want ErrTokenInvalid", err)
	}

	parts := strings.Split(pair.AccessToken, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := p.Verify(tampered); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Verify tampered signature: err = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenIssuer_Renew(t *testing.T) {
	c := newManualClock()
	p := NewTestTokenIssuer(c)
	pair, _ := p.IssuePair(testSubject, "sess-1")

	c.Advance(time.Minute)
	renewed, err := p.Renew(pair.RefreshToken, testSubject)
	if err != nil {
		t.Fatalf("Renew: %v", err)
	}
	if renewed.SessionID != "sess-1" {
		t.Errorf("renewed SessionID = %q, want sess-1", renewed.SessionID)
	}
	if renewed.RefreshToken == pair.RefreshToken {
		t.Error("Renew should rotate the refresh token value")
	}
	claims, err := p.VerifyAccess(renewed.AccessToken)
	if err != nil || claims.SessionID != "sess-1" {
		t.Fatalf("VerifyAccess(renewed) = %+v, %v", claims, err)
	}

	if _, err := p.Renew(pair.AccessToken, testSubject); !errors.Is(err, ErrWrongTokenType) {
		t.Errorf("Renew(access): err = %v, want ErrWrongTokenType", err)
	}
	stranger := testSubject
	stranger.ID = "u2"
	if _, err := p.Renew(pair.RefreshToken, stranger); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Renew for another user: err = %v, want ErrTokenInvalid", err)
	}
}

func TestHasValidStructure(t *testing.T) {
	p := NewTestTokenIssuer(nil)
	pair, _ := p.IssuePair(testSubject, "s")
	if !HasValidStructure(pair.AccessToken) {
		t.Error("issued token should have a valid structure")
	}
	if HasValidStructure("only.two") {
		t.Error("two segments should be rejected")
	}
}
