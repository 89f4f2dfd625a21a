package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chancafe-q/backend/internal/apperr"
	"chancafe-q/backend/internal/security"
	sessiondomain "chancafe-q/backend/internal/session/domain"
	userdomain "chancafe-q/backend/internal/user/domain"
)

// maxAuthBodyBytes caps the JSON bodies read before binding: login credentials and refresh tokens.
const maxAuthBodyBytes = 4 << 10

// UserGetter resolves users by id.
type UserGetter interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// SessionChecker is the part of the session store the auth gate needs.
type SessionChecker interface {
	FindActiveByToken(ctx context.Context, token string) (*sessiondomain.Session, error)
	IsValid(sess *sessiondomain.Session) bool
	Expire(ctx context.Context, sess *sessiondomain.Session) error
	Touch(ctx context.Context, sess *sessiondomain.Session) error
}

// ErrorWriter renders an error envelope and aborts the request.
type ErrorWriter interface {
	Error(c *gin.Context, err error)
}

// Authenticator runs the access token pipeline shared by Auth and OptionalAuth.
type Authenticator struct {
	tokens   *security.TokenIssuer
	users    UserGetter
	sessions SessionChecker
	errs     ErrorWriter
}

// NewAuthenticator returns an Authenticator.
func NewAuthenticator(tokens *security.TokenIssuer, users UserGetter, sessions SessionChecker, errs ErrorWriter) *Authenticator {
	return &Authenticator{tokens: tokens, users: users, sessions: sessions, errs: errs}
}

// bearerToken returns the token of an "Authorization: Bearer <token>" header.
// The header must split into exactly two space-separated parts.
func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// authenticate resolves the principal of the request or returns the error to report.
func (a *Authenticator) authenticate(c *gin.Context) (p *Principal, token string, claims *security.Claims, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, token, claims = nil, "", nil
			err = apperr.Internal("", errors.New("auth gate panicked"))
		}
	}()

	token, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		return nil, "", nil, apperr.Unauthenticated(apperr.CodeMissingToken, "Token de acceso requerido")
	}
	if !security.HasValidStructure(token) {
		return nil, "", nil, apperr.Unauthenticated(apperr.CodeInvalidTokenFormat, "Formato de token inválido")
	}
	claims, err = a.tokens.VerifyAccess(token)
	switch {
	case errors.Is(err, security.ErrTokenExpired):
		return nil, "", nil, apperr.Unauthenticated(apperr.CodeTokenExpired, "Token expirado")
	case err != nil:
		return nil, "", nil, apperr.Unauthenticated(apperr.CodeTokenVerificationFailed, "Error al verificar token")
	}

	ctx := c.Request.Context()
	user, err := a.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, "", nil, apperr.Internal("", err)
	}
	if user == nil {
		return nil, "", nil, apperr.Unauthenticated(apperr.CodeUserNotFound, "Usuario no encontrado")
	}
	if !user.IsActive() {
		return nil, "", nil, apperr.Unauthenticated(apperr.CodeUserInactive, "Usuario inactivo")
	}

	// Tokens without a session claim are not bound to a session row.
	if claims.SessionID == "" {
		return PrincipalOf(user, ""), token, claims, nil
	}
	invalid := apperr.Unauthenticated(apperr.CodeInvalidSession, "Sesión inválida o expirada")
	sess, err := a.sessions.FindActiveByToken(ctx, claims.SessionID)
	if err != nil {
		return nil, "", nil, apperr.Internal("", err)
	}
	if sess == nil || sess.UserID != user.ID {
		return nil, "", nil, invalid
	}
	if !a.sessions.IsValid(sess) {
		if err := a.sessions.Expire(ctx, sess); err != nil {
			return nil, "", nil, apperr.Internal("", err)
		}
		return nil, "", nil, invalid
	}
	if err := a.sessions.Touch(ctx, sess); err != nil {
		return nil, "", nil, apperr.Internal("", err)
	}
	return PrincipalOf(user, claims.SessionID), token, claims, nil
}

// Auth requires a valid access token bound to a live session.
func (a *Authenticator) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, token, claims, err := a.authenticate(c)
		if err != nil {
			a.errs.Error(c, err)
			return
		}
		attachPrincipal(c, p, token, claims)
		c.Next()
	}
}

// OptionalAuth attaches the principal when the request authenticates and continues either way.
func (a *Authenticator) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if p, token, claims, err := a.authenticate(c); err == nil {
			attachPrincipal(c, p, token, claims)
		}
		c.Next()
	}
}

type refreshBody struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshGate validates the refresh token in the JSON body and attaches its user.
// It does not consult the session store; the auth service does that when renewing.
// The body is restored so the handler can bind it again.
func (a *Authenticator) RefreshGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxAuthBodyBytes))
		if err != nil {
			a.errs.Error(c, apperr.Invalid(apperr.CodeMissingRefreshToken, "Refresh token requerido"))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))

		var body refreshBody
		_ = json.Unmarshal(raw, &body)
		token := strings.TrimSpace(body.RefreshToken)
		if token == "" {
			a.errs.Error(c, apperr.Invalid(apperr.CodeMissingRefreshToken, "Refresh token requerido"))
			return
		}
		claims, err := a.tokens.VerifyRefresh(token)
		switch {
		case errors.Is(err, security.ErrWrongTokenType):
			a.errs.Error(c, apperr.Invalid(apperr.CodeWrongTokenType, "Tipo de token incorrecto"))
			return
		case err != nil:
			a.errs.Error(c, apperr.Unauthenticated(apperr.CodeInvalidRefreshToken, "Refresh token inválido"))
			return
		}
		user, err := a.users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			a.errs.Error(c, apperr.Internal("", err))
			return
		}
		if user == nil || !user.IsActive() {
			a.errs.Error(c, apperr.Unauthenticated(apperr.CodeInvalidUser, "Usuario inválido"))
			return
		}
		c.Set(ginUserKey, user)
		c.Set(ginTokenKey, token)
		c.Set(ginClaimsKey, claims)
		c.Next()
	}
}
