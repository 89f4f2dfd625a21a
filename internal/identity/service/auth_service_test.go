package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"chancafe-q/backend/internal/apperr"
	"chancafe-q/backend/internal/audit"
	auditdomain "chancafe-q/backend/internal/audit/domain"
	auditrepo "chancafe-q/backend/internal/audit/repository"
	"chancafe-q/backend/internal/platform/clock"
	"chancafe-q/backend/internal/security"
	sessiondomain "chancafe-q/backend/internal/session/domain"
	sessionrepo "chancafe-q/backend/internal/session/repository"
	sessionservice "chancafe-q/backend/internal/session/service"
	userdomain "chancafe-q/backend/internal/user/domain"
	userrepo "chancafe-q/backend/internal/user/repository"
)

const testUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

type fixture struct {
	svc      *AuthService
	users    *userrepo.MemoryRepository
	sessions *sessionrepo.MemoryRepository
	activity *auditrepo.MemoryRepository
	recorder *audit.Recorder
	hasher   *security.Hasher
	tokens   *security.TokenIssuer
	clock    *clock.Manual
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	users := userrepo.NewMemoryRepository()
	sessions := sessionrepo.NewMemoryRepository()
	activity := auditrepo.NewMemoryRepository()
	hasher := security.NewHasher(4)
	tokens := security.NewTestTokenIssuer(clk)
	recorder := audit.NewRecorder(activity, nil, nil, clk)
	store := sessionservice.NewStore(sessions, users, time.Hour, clk)
	svc := NewAuthService(users, store, tokens, hasher, security.DefaultPasswordPolicy(), recorder, nil)
	return &fixture{
		svc: svc, users: users, sessions: sessions, activity: activity, recorder: recorder,
		hasher: hasher, tokens: tokens, clock: clk,
	}
}

func (f *fixture) addUser(t *testing.T, id, code, email, password string, role userdomain.Role, status userdomain.UserStatus) *userdomain.User {
	t.Helper()
	hash, err := f.hasher.Hash(context.Background(), password)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	u := &userdomain.User{
		ID: id, Code: code, Name: "Asesor " + code, Email: email, PasswordHash: hash,
		Role: role, Status: status, CreatedAt: f.clock.Now(), UpdatedAt: f.clock.Now(),
	}
	if err := f.users.Create(context.Background(), u); err != nil {
		t.Fatalf("Create user: %v", err)
	}
	return u
}

func (f *fixture) login(t *testing.T, identifier, password string) *LoginResult {
	t.Helper()
	res, err := f.svc.Login(context.Background(), LoginInput{Identifier: identifier, Password: password, IPAddress: "10.0.0.1", UserAgent: testUA})
	if err != nil {
		t.Fatalf("Login(%s): %v", identifier, err)
	}
	return res
}

func (f *fixture) activityActions(t *testing.T) []auditdomain.Action {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := f.recorder.Wait(ctx); err != nil {
		t.Fatalf("recorder Wait: %v", err)
	}
	var out []auditdomain.Action
	for _, e := range f.activity.All() {
		out = append(out, e.Action)
	}
	return out
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %s, got nil", code)
	}
	if !apperr.HasCode(err, code) {
		t.Fatalf("error = %v, want code %s", err, code)
	}
}

func contains(actions []auditdomain.Action, want auditdomain.Action) bool {
	for _, a := range actions {
		if a == want {
			return true
		}
	}
	return false
}

func TestLogin_SessionMatchesAccessToken(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "ADV001", "adv001@chancafe.com", "Passw0rd!", userdomain.RoleAgent, userdomain.UserStatusActive)

	res := f.login(t, "ADV001", "Passw0rd!")

	claims, err := f.tokens.VerifyAccess(res.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.SessionID != res.Session.Token {
		t.Errorf("sessionId claim = %q, want %q", claims.SessionID, res.Session.Token)
	}
	sess, _ := f.sessions.GetActiveByToken(context.Background(), claims.SessionID)
	if sess == nil || !sess.IsValid(f.clock.Now()) {
		t.Fatal("expected an active session row for the sessionId claim")
	}
	if sess.Device.Browser != "Chrome" || sess.Device.OS != "Windows" {
		t.Errorf("device = %+v", sess.Device)
	}
	if !security.RefreshTokenHashEqual(res.Tokens.RefreshToken, sess.RefreshTokenHash) {
		t.Error("session should store the hash of the issued refresh token")
	}
	if res.User.LastLoginAt == nil {
		t.Error("LastLoginAt should be set on the returned user")
	}
	stored, _ := f.users.GetByID(context.Background(), "u1")
	if stored.LastLoginAt == nil || !stored.LastLoginAt.Equal(f.clock.Now()) {
		t.Errorf("stored LastLoginAt = %v, want %v", stored.LastLoginAt, f.clock.Now())
	}

	actions := f.activityActions(t)
	if !contains(actions, auditdomain.ActionLoginSuccess) || !contains(actions, auditdomain.ActionLogin) {
		t.Errorf("activity = %v, want LOGIN_SUCCESS and LOGIN", actions)
	}
}

func TestLogin_ByEmailIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "ADV001", "adv001@chancafe.com", "Passw0rd!", userdomain.RoleAgent, userdomain.UserStatusActive)

	res := f.login(t, "  ADV001@ChanCafe.COM ", "Passw0rd!")
	if res.User.ID != "u1" {
		t.Errorf("user id = %q, want u1", res.User.ID)
	}
}

func TestLogin_Failures(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "ADV001", "adv001@chancafe.com", "Passw0rd!", userdomain.RoleAgent, userdomain.UserStatusActive)
	f.addUser(t, "u2", "ADV002", "adv002@chancafe.com", "Passw0rd!", userdomain.RoleAgent, userdomain.UserStatusSuspended)

	cases := []struct {
		name, identifier, password, code string
	}{
		{"wrong password", "ADV001", "nope", apperr.CodeInvalidPassword},
		{"unknown user", "ADV999", "Passw0rd!", apperr.CodeUserNotFound},
		{"inactive user", "ADV002", "Passw0rd!", apperr.CodeUserInactive},
		{"blank identifier", "   ", "Passw0rd!", apperr.CodeUserNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Login(context.Background(), LoginInput{Identifier: tc.identifier, Password: tc.password})
			wantCode(t, err, tc.code)
			if got := apperr.As(err).Status(); got != 401 {
				t.Errorf("status = %d, want 401", got)
			}
		})
	}
	if n := f.sessions.Count(); n != 0 {
		t.Errorf("sessions = %d, want 0 after failed logins", n)
	}
	actions := f.activityActions(t)
	failed := 0
	for _, a := range actions {
		if a == auditdomain.ActionLoginFailed {
			failed++
		}
	}
	if failed != len(cases) {
		t.Errorf("LOGIN_FAILED entries = %d, want %d", failed, len(cases))
	}
}

func TestRefresh_KeepsSessionAndRotates(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, "u1", "ADV001", "adv001@chancafe.com", "Passw0rd!", userdomain.RoleAgent, userdomain.UserStatusActive)
	res := f.login(t, "ADV001", "Passw0rd!")

	f.clock.Advance(time.Minute)
	pair, err := f.svc.Refresh(context.Background(), user, res.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if pair.SessionID != res.Session.Token {
		t.Errorf("SessionID = %q, want %q", pair.SessionID, res.Session.Token)
	}
	if pair.RefreshToken == res.Tokens.RefreshToken {
		t.Error("refresh token should rotate")
	}
	sess := f.sessions.Get(res.Session.ID)
	if !security.RefreshTokenHashEqual(pair.RefreshToken, sess.RefreshTokenHash) {
		t.Error("session should store the rotated refresh token hash")
	}
	if !sess.LastActivityAt.Equal(f.clock.Now()) {
		t.Errorf("LastActivityAt = %v, want %v", sess.LastActivityAt, f.clock.Now())
	}
	if !contains(f.activityActions(t), auditdomain.ActionTokenRefresh) {
		t.Error("expected TOKEN_REFRESH activity")
	}
}

func TestRefresh_ReuseRevokesAllSessions(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, "u1", "ADV001", "adv001@chancafe.com", "Passw0rd!", userdomain.RoleAgent, userdomain.UserStatusActive)
	first := f.login(t, "ADV001", "Passw0rd!")
	second := f.login(t, "ADV001", "Passw0rd!")

	if _, err := f.svc.Refresh(context.Background(), user, first.Tokens.RefreshToken); err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	_, err := f.svc.Refresh(context.Background(), user, first.Tokens.RefreshToken)
	wantCode(t, err, apperr.CodeInvalidRefreshToken)

	for _, id := range []string{first.Session.ID, second.Session.ID} {
		if s := f.sessions.Get(id); s.Status != sessiondomain.SessionStatusRevoked {
			t.Errorf("session %s status = %q, want revoked", id, s.Status)
		}
	}
}

func TestRefresh_RejectsAccessTokenAndForeignUser(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, "u1", "ADV001", "adv001@chancafe.com", "Passw0rd!", userdomain.RoleAgent, userdomain.UserStatusActive)
	other := f.addUser(t, "u2", "ADV002", "adv002@chancafe.com", "Passw0rd!", userdomain.RoleAgent, userdomain.UserStatusActive)
	res := f.login(t, "ADV001", "Passw0rd!")

	_, err := f.svc.Refresh(context.Background(), user, res.Tokens.AccessToken)
	wantCode(t, err, apperr.CodeWrongTokenType)

	_, err = f.svc.Refresh(context.Background(), other, res.Tokens.RefreshToken)
	wantCode(t, err, apperr.CodeInvalidRefreshToken)

	_, err = f.svc.Refresh(context.Background(), user, "")
	wantCode(t, err, apperr.CodeMissingRefreshToken)
}

func TestRefresh_ExpiredSessionIsMarkedExpired(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, "u1", "ADV001", "adv001@chancafe.com", "Passw0rd!", userdomain.RoleAgent, userdomain.UserStatusActive)
	res := f.login(t, "ADV001", "Passw0rd!")

	// Session TTL is 1h, the refresh token lives 24h.
	f.clock.Advance(2 * time.Hour)
	_, err := f.svc.Refresh(context.Background(), user, res.Tokens.RefreshToken)
	wantCode(t, err, apperr.CodeInvalidRefreshToken)

	if s := f.sessions.Get(res.Session.ID); s.Status != sessiondomain.SessionStatusExpired {
		t.Errorf("status = %q, want expired", s.Status)
	}
}

func TestLogout_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "ADV001", "adv001@chancafe.com", "Passw0rd!", userdomain.RoleAgent, userdomain.UserStatusActive)
	res := f.login(t, "ADV001", "Passw0rd!")

	if err := f.svc.Logout(context.Background(), "u1", res.Session.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	err := f.svc.Logout(context.Background(), "u1", res.Session.Token)
	wantCode(t, err, apperr.CodeSessionNotFound)
	if got := apperr.As(err).Status(); got != 404 {
		t.Errorf("status = %d, want 404", got)
	}
	if s := f.sessions.Get(res.Session.ID); s.Status != sessiondomain.SessionStatusRevoked || s.RevokedAt == nil {
		t.Errorf("session = %+v, want revoked", s)
	}
}

func TestLogoutAll_ClosesEverySession(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "ADV001", "adv001@chancafe.com", "Passw0rd!", userdomain.RoleAgent, userdomain.UserStatusActive)
	for i := 0; i < 3; i++ {
		f.login(t, "ADV001", "Passw0rd!")
	}

	closed, err := f.svc.LogoutAll(context.Background(), "u1")
	if err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}
	if closed != 3 {
		t.Errorf("closed = %d, want 3", closed)
	}
	list, _ := f.svc.ActiveSessions(context.Background(), "u1", "")
	if len(list) != 0 {
		t.Errorf("active sessions = %d, want 0", len(list))
	}
}

func TestActiveSessions_FlagsCurrent(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "ADV001", "adv001@chancafe.com", "Passw0rd!", userdomain.RoleAgent, userdomain.UserStatusActive)
	first := f.login(t, "ADV001", "Passw0rd!")
	f.clock.Advance(time.Minute)
	f.login(t, "ADV001", "Passw0rd!")

	list, err := f.svc.ActiveSessions(context.Background(), "u1", first.Session.Token)
	if err != nil {
		t.Fatalf("ActiveSessions: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("sessions = %d, want 2", len(list))
	}
	if list[0].Current || !list[1].Current {
		t.Errorf("current flags = %v/%v, want false/true (most recent first)", list[0].Current, list[1].Current)
	}
	if list[1].Browser != "Chrome" || list[1].IPAddress != "10.0.0.1" {
		t.Errorf("summary = %+v", list[1])
	}
}

func TestValidateSession(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "ADV001", "adv001@chancafe.com", "Passw0rd!", userdomain.RoleAgent, userdomain.UserStatusActive)
	res := f.login(t, "ADV001", "Passw0rd!")

	v, err := f.svc.ValidateSession(context.Background(), res.Session.Token)
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if !v.Valid || v.User.Code != "ADV001" || !v.Session.ExpiresAt.Equal(res.Session.ExpiresAt) {
		t.Errorf("validation = %+v", v)
	}

	_, err = f.svc.ValidateSession(context.Background(), "")
	wantCode(t, err, apperr.CodeMissingSessionToken)

	f.clock.Advance(2 * time.Hour)
	_, err = f.svc.ValidateSession(context.Background(), res.Session.Token)
	wantCode(t, err, apperr.CodeInvalidSession)
	if s := f.sessions.Get(res.Session.ID); s.Status != sessiondomain.SessionStatusExpired {
		t.Errorf("status = %q, want expired", s.Status)
	}
}

func TestChangePassword_RevokesAllSessions(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "ADV001", "adv001@chancafe.com", "Passw0rd!", userdomain.RoleAgent, userdomain.UserStatusActive)
	a := f.login(t, "ADV001", "Passw0rd!")
	b := f.login(t, "ADV001", "Passw0rd!")

	revoked, err := f.svc.ChangePassword(context.Background(), "u1", "Passw0rd!", "N3w-Secret!")
	if err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if revoked != 2 {
		t.Errorf("revoked = %d, want 2", revoked)
	}
	for _, tok := range []string{a.Tokens.AccessToken, b.Tokens.AccessToken} {
		claims, err := f.tokens.VerifyAccess(tok)
		if err != nil {
			t.Fatalf("old token should still verify cryptographically: %v", err)
		}
		if s, _ := f.sessions.GetActiveByToken(context.Background(), claims.SessionID); s != nil {
			t.Error("old session should no longer be active")
		}
	}
	f.login(t, "ADV001", "N3w-Secret!")
	_, err = f.svc.Login(context.Background(), LoginInput{Identifier: "ADV001", Password: "Passw0rd!"})
	wantCode(t, err, apperr.CodeInvalidPassword)
	if !contains(f.activityActions(t), auditdomain.ActionPasswordChange) {
		t.Error("expected PASSWORD_CHANGE activity")
	}
}

func TestChangePassword_Rejections(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "ADV001", "adv001@chancafe.com", "Passw0rd!", userdomain.RoleAgent, userdomain.UserStatusActive)
	res := f.login(t, "ADV001", "Passw0rd!")

	cases := []struct {
		name, current, next, code string
	}{
		{"wrong current", "nope", "N3w-Secret!", apperr.CodeInvalidCurrentPassword},
		{"too short", "Passw0rd!", "Ab1!", apperr.CodeWeakPassword},
		{"compromised", "Passw0rd!", "password123", apperr.CodeWeakPassword},
		{"longer than bcrypt accepts", "Passw0rd!", "Aa1!" + strings.Repeat("x", 96), apperr.CodeWeakPassword},
		{"same as current", "Passw0rd!", "Passw0rd!", apperr.CodeValidation},
		{"missing", "", "N3w-Secret!", apperr.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.ChangePassword(context.Background(), "u1", tc.current, tc.next)
			wantCode(t, err, tc.code)
			if got := apperr.As(err).Status(); got != 400 {
				t.Errorf("status = %d, want 400", got)
			}
		})
	}
	if s := f.sessions.Get(res.Session.ID); s.Status != sessiondomain.SessionStatusActive {
		t.Errorf("rejected change should keep sessions, status = %q", s.Status)
	}
}

func TestMe(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "ADV001", "adv001@chancafe.com", "Passw0rd!", userdomain.RoleSupervisor, userdomain.UserStatusActive)
	f.addUser(t, "u2", "ADV002", "adv002@chancafe.com", "Passw0rd!", userdomain.RoleAgent, userdomain.UserStatusInactive)

	me, err := f.svc.Me(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if me.Role != userdomain.RoleSupervisor || me.Code != "ADV001" {
		t.Errorf("me = %+v", me)
	}
	_, err = f.svc.Me(context.Background(), "u2")
	wantCode(t, err, apperr.CodeUserNotFound)
	_, err = f.svc.Me(context.Background(), "missing")
	wantCode(t, err, apperr.CodeUserNotFound)
}

func TestCleanupExpiredSessions(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "u1", "ADV001", "adv001@chancafe.com", "Passw0rd!", userdomain.RoleAdmin, userdomain.UserStatusActive)
	f.login(t, "ADV001", "Passw0rd!")
	f.login(t, "ADV001", "Passw0rd!")

	f.clock.Advance(90 * time.Minute)
	fresh := f.login(t, "ADV001", "Passw0rd!")

	cleaned, err := f.svc.CleanupExpiredSessions(context.Background(), "u1")
	if err != nil {
		t.Fatalf("CleanupExpiredSessions: %v", err)
	}
	if cleaned != 2 {
		t.Errorf("cleaned = %d, want 2", cleaned)
	}
	if s := f.sessions.Get(fresh.Session.ID); s.Status != sessiondomain.SessionStatusActive {
		t.Errorf("fresh session status = %q, want active", s.Status)
	}
	again, _ := f.svc.CleanupExpiredSessions(context.Background(), "u1")
	if again != 0 {
		t.Errorf("second sweep = %d, want 0", again)
	}
}
