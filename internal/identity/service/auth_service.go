package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"chancafe-q/backend/internal/apperr"
	"chancafe-q/backend/internal/audit"
	"chancafe-q/backend/internal/security"
	sessiondomain "chancafe-q/backend/internal/session/domain"
	sessionservice "chancafe-q/backend/internal/session/service"
	userdomain "chancafe-q/backend/internal/user/domain"
)

// UserRepo is the user persistence needed by the auth service.
type UserRepo interface {
	UserLookup
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string, at time.Time) error
}

// LoginInput is a login request with its client metadata.
type LoginInput struct {
	Identifier string
	Password   string
	IPAddress  string
	UserAgent  string
}

// LoginResult holds the authenticated user, the new session and its token pair.
type LoginResult struct {
	User    userdomain.PublicUser
	Tokens  *security.TokenPair
	Session *sessiondomain.Session
}

// SessionSummary is the listing form of a session.
type SessionSummary struct {
	ID           string    `json:"id"`
	Device       string    `json:"device"`
	Browser      string    `json:"browser"`
	OS           string    `json:"os"`
	IPAddress    string    `json:"ipAddress"`
	LastActivity time.Time `json:"lastActivity"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Current      bool      `json:"current"`
}

// SessionValidation describes a live session and its owner.
type SessionValidation struct {
	Valid   bool          `json:"valid"`
	User    UserSnapshot  `json:"user"`
	Session SessionWindow `json:"session"`
}

// UserSnapshot is the trimmed user view returned by validate and me.
type UserSnapshot struct {
	ID        string                `json:"id"`
	Code      string                `json:"code"`
	Name      string                `json:"name"`
	Role      userdomain.Role       `json:"role"`
	Status    userdomain.UserStatus `json:"status"`
	LastLogin *time.Time            `json:"lastLogin"`
}

// SessionWindow is the activity window of a session.
type SessionWindow struct {
	LastActivity time.Time `json:"lastActivity"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// AuthService implements login, token refresh, logout and session management.
type AuthService struct {
	verifier *Verifier
	users    UserRepo
	sessions *sessionservice.Store
	tokens   *security.TokenIssuer
	hasher   *security.Hasher
	policy   security.PasswordPolicy
	audit    *audit.Recorder
	log      *zap.Logger
	tracer   trace.Tracer
}

// NewAuthService returns an AuthService with the given dependencies. recorder and log may be nil.
func NewAuthService(
	users UserRepo,
	sessions *sessionservice.Store,
	tokens *security.TokenIssuer,
	hasher *security.Hasher,
	policy security.PasswordPolicy,
	recorder *audit.Recorder,
	log *zap.Logger,
) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		verifier: NewVerifier(users, hasher),
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		hasher:   hasher,
		policy:   policy,
		audit:    recorder,
		log:      log.Named("auth"),
		tracer:   otel.Tracer("chancafe-q/identity"),
	}
}

// Login verifies credentials, opens a session and issues a token pair bound to it.
// Failed attempts create no session.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Login")
	defer span.End()

	v, err := s.verifier.Verify(ctx, in.Identifier, in.Password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "verify credentials")
		return nil, apperr.Internal("", fmt.Errorf("verify credentials: %w", err))
	}
	if !v.OK {
		userID := ""
		if v.User != nil {
			userID = v.User.ID
		}
		s.audit.LoginAttempt(ctx, userID, in.Identifier, false, v.Reason)
		span.SetAttributes(attribute.String("auth.failure", v.Reason))
		return nil, apperr.Unauthenticated(v.Reason, v.Message)
	}
	user := v.User
	span.SetAttributes(attribute.String("user.id", user.ID))

	sess, err := s.sessions.Create(ctx, user, in.IPAddress, in.UserAgent)
	if err != nil {
		return nil, apperr.Internal("", err)
	}
	pair, err := s.tokens.IssuePair(subjectOf(user), sess.Token)
	if err != nil {
		s.abandon(ctx, sess)
		return nil, apperr.Internal("", fmt.Errorf("issue tokens: %w", err))
	}
	if err := s.sessions.BindRefreshToken(ctx, sess, pair.RefreshToken); err != nil {
		s.abandon(ctx, sess)
		return nil, apperr.Internal("", fmt.Errorf("bind refresh token: %w", err))
	}
	user.LastLoginAt = &sess.CreatedAt

	s.audit.LoginAttempt(ctx, user.ID, in.Identifier, true, "")
	s.audit.Login(ctx, user.ID, sess.ID)
	return &LoginResult{User: user.Public(), Tokens: pair, Session: sess}, nil
}

// abandon revokes a session whose token pair could not be completed.
func (s *AuthService) abandon(ctx context.Context, sess *sessiondomain.Session) {
	if _, err := s.sessions.Revoke(ctx, sess.Token); err != nil {
		s.log.Warn("failed to revoke incomplete session", zap.String("session_id", sess.ID), zap.Error(err))
	}
}

// Refresh rotates the refresh token of the session it belongs to and issues a new pair
// with the same session id. Presenting a superseded refresh token revokes every session of the user.
func (s *AuthService) Refresh(ctx context.Context, user *userdomain.User, refreshToken string) (*security.TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Refresh")
	defer span.End()

	if refreshToken == "" {
		return nil, apperr.Invalid(apperr.CodeMissingRefreshToken, "Refresh token requerido")
	}
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, security.ErrWrongTokenType) {
			return nil, apperr.Invalid(apperr.CodeWrongTokenType, "Tipo de token incorrecto")
		}
		return nil, apperr.Unauthenticated(apperr.CodeInvalidRefreshToken, "Refresh token inválido o expirado")
	}
	if user == nil || claims.UserID != user.ID {
		return nil, apperr.Unauthenticated(apperr.CodeInvalidRefreshToken, "Refresh token inválido o expirado")
	}

	sess, err := s.sessions.FindActiveByRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, apperr.Internal("", err)
	}
	if sess == nil {
		if err := s.detectReuse(ctx, claims); err != nil {
			return nil, err
		}
		return nil, apperr.Unauthenticated(apperr.CodeInvalidRefreshToken, "Sesión no válida o expirada")
	}
	if sess.Token != claims.SessionID || sess.UserID != user.ID {
		return nil, apperr.Unauthenticated(apperr.CodeInvalidRefreshToken, "Sesión no válida o expirada")
	}
	if sess.IsExpired(s.sessions.Now()) {
		if err := s.sessions.Expire(ctx, sess); err != nil {
			s.log.Warn("failed to mark session expired", zap.String("session_id", sess.ID), zap.Error(err))
		}
		return nil, apperr.Unauthenticated(apperr.CodeInvalidRefreshToken, "Sesión expirada")
	}

	pair, err := s.tokens.Renew(refreshToken, subjectOf(user))
	if err != nil {
		return nil, apperr.Unauthenticated(apperr.CodeInvalidRefreshToken, "Refresh token inválido o expirado")
	}
	if err := s.sessions.BindRefreshToken(ctx, sess, pair.RefreshToken); err != nil {
		span.RecordError(err)
		return nil, apperr.Internal("", fmt.Errorf("rotate refresh token: %w", err))
	}
	s.audit.TokenRefresh(ctx, user.ID, sess.ID)
	return pair, nil
}

// detectReuse revokes all of the user's sessions when the token's session is
// still active but bound to a newer refresh token.
func (s *AuthService) detectReuse(ctx context.Context, claims *security.Claims) error {
	sess, err := s.sessions.FindActiveByToken(ctx, claims.SessionID)
	if err != nil {
		return apperr.Internal("", err)
	}
	if sess == nil || sess.UserID != claims.UserID {
		return nil
	}
	revoked, err := s.sessions.RevokeAll(ctx, claims.UserID)
	if err != nil {
		return apperr.Internal("", err)
	}
	s.log.Warn("refresh token reuse detected",
		zap.String("user_id", claims.UserID),
		zap.String("session_id", sess.ID),
		zap.Int64("revoked", revoked))
	s.audit.LogoutAll(ctx, claims.UserID, revoked)
	return apperr.Unauthenticated(apperr.CodeInvalidRefreshToken, "Refresh token reutilizado; sesiones cerradas")
}

// Logout revokes the session identified by sessionToken.
func (s *AuthService) Logout(ctx context.Context, userID, sessionToken string) error {
	if sessionToken == "" {
		return apperr.Invalid(apperr.CodeMissingSessionToken, "Token de sesión requerido")
	}
	notFound := apperr.NotFound(apperr.CodeSessionNotFound, "Sesión no encontrada o ya cerrada")
	sess, err := s.sessions.FindActiveByToken(ctx, sessionToken)
	if err != nil {
		return apperr.Internal("", err)
	}
	if sess == nil {
		return notFound
	}
	ok, err := s.sessions.Revoke(ctx, sessionToken)
	if err != nil {
		return apperr.Internal("", err)
	}
	if !ok {
		return notFound
	}
	s.audit.Logout(ctx, userID, sess.ID)
	return nil
}

// LogoutAll revokes every active session of the user and returns how many were closed.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) (int64, error) {
	closed, err := s.sessions.RevokeAll(ctx, userID)
	if err != nil {
		return 0, apperr.Internal("", err)
	}
	s.audit.LogoutAll(ctx, userID, closed)
	return closed, nil
}

// ActiveSessions lists the user's active sessions. The one matching currentToken is flagged current.
func (s *AuthService) ActiveSessions(ctx context.Context, userID, currentToken string) ([]SessionSummary, error) {
	list, err := s.sessions.ListActive(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("", err)
	}
	out := make([]SessionSummary, 0, len(list))
	for _, sess := range list {
		out = append(out, SessionSummary{
			ID:           sess.ID,
			Device:       sess.Device.Device,
			Browser:      sess.Device.Browser,
			OS:           sess.Device.OS,
			IPAddress:    sess.IPAddress,
			LastActivity: sess.LastActivityAt,
			CreatedAt:    sess.CreatedAt,
			ExpiresAt:    sess.ExpiresAt,
			Current:      currentToken != "" && sess.Token == currentToken,
		})
	}
	return out, nil
}

// ValidateSession checks that sessionToken names a live session of an active user.
func (s *AuthService) ValidateSession(ctx context.Context, sessionToken string) (*SessionValidation, error) {
	if sessionToken == "" {
		return nil, apperr.Invalid(apperr.CodeMissingSessionToken, "Token de sesión requerido")
	}
	invalid := apperr.Unauthenticated(apperr.CodeInvalidSession, "Sesión inválida o expirada")
	sess, err := s.sessions.FindActiveByToken(ctx, sessionToken)
	if err != nil {
		return nil, apperr.Internal("", err)
	}
	if sess == nil {
		return nil, invalid
	}
	if !s.sessions.IsValid(sess) {
		if err := s.sessions.Expire(ctx, sess); err != nil {
			s.log.Warn("failed to mark session expired", zap.String("session_id", sess.ID), zap.Error(err))
		}
		return nil, invalid
	}
	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, apperr.Internal("", err)
	}
	if !user.IsActive() {
		return nil, invalid
	}
	return &SessionValidation{
		Valid:   true,
		User:    snapshotOf(user),
		Session: SessionWindow{LastActivity: sess.LastActivityAt, ExpiresAt: sess.ExpiresAt},
	}, nil
}

// ChangePassword replaces the user's password and revokes all of their sessions.
// It returns the number of sessions revoked.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "auth.ChangePassword")
	defer span.End()

	if current == "" || next == "" {
		return 0, apperr.Invalid(apperr.CodeValidation, "La contraseña actual y la nueva son requeridas")
	}
	if current == next {
		return 0, apperr.Invalid(apperr.CodeValidation, "La nueva contraseña debe ser diferente a la actual")
	}
	if err := s.policy.Validate(next); err != nil {
		return 0, apperr.Invalid(apperr.CodeWeakPassword, security.WeakPasswordMessage(err)).
			WithDetails(security.EvaluateStrength(next))
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return 0, apperr.Internal("", err)
	}
	if user == nil {
		return 0, apperr.NotFound(apperr.CodeUserNotFound, "Usuario no encontrado")
	}
	if err := s.hasher.Compare(ctx, user.PasswordHash, current); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			return 0, apperr.Invalid(apperr.CodeInvalidCurrentPassword, "Contraseña actual incorrecta")
		}
		return 0, apperr.Internal("", err)
	}
	hash, err := s.hasher.Hash(ctx, next)
	if err != nil {
		return 0, apperr.Internal("", fmt.Errorf("hash password: %w", err))
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash, s.sessions.Now()); err != nil {
		return 0, apperr.Internal("", err)
	}
	revoked, err := s.sessions.RevokeAll(ctx, user.ID)
	if err != nil {
		return 0, apperr.Internal("", err)
	}
	span.SetAttributes(attribute.Int64("sessions.revoked", revoked))
	s.audit.PasswordChange(ctx, user.ID, revoked)
	return revoked, nil
}

// Me returns the status snapshot of an active user.
func (s *AuthService) Me(ctx context.Context, userID string) (*UserSnapshot, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("", err)
	}
	if !user.IsActive() {
		return nil, apperr.NotFound(apperr.CodeUserNotFound, "Usuario no encontrado o inactivo")
	}
	snap := snapshotOf(user)
	return &snap, nil
}

// CleanupExpiredSessions marks every timed-out active session expired.
func (s *AuthService) CleanupExpiredSessions(ctx context.Context, actorID string) (int64, error) {
	cleaned, err := s.sessions.SweepExpired(ctx)
	if err != nil {
		return 0, apperr.Internal("", err)
	}
	s.log.Info("expired sessions swept", zap.Int64("cleaned", cleaned), zap.String("actor_id", actorID))
	s.audit.SessionCleanup(ctx, actorID, cleaned)
	return cleaned, nil
}

func subjectOf(u *userdomain.User) security.Subject {
	return security.Subject{
		ID:     u.ID,
		Code:   u.Code,
		Name:   u.Name,
		Email:  u.Email,
		Role:   string(u.Role),
		Status: string(u.Status),
	}
}

func snapshotOf(u *userdomain.User) UserSnapshot {
	return UserSnapshot{
		ID:        u.ID,
		Code:      u.Code,
		Name:      u.Name,
		Role:      u.Role,
		Status:    u.Status,
		LastLogin: u.LastLoginAt,
	}
}
