package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"chancafe-q/backend/internal/platform/clock"
)

var (
	// ErrInvalidTokenFormat is returned when a token is not a three-segment signed structure.
	ErrInvalidTokenFormat = errors.New("invalid token format")
	// ErrTokenExpired is returned when a token's exp claim has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for bad signatures, wrong issuer or audience, and malformed claims.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrWrongTokenType is returned when an access token is presented where a refresh token is expected, or vice versa.
	ErrWrongTokenType = errors.New("wrong token type")
)

// TokenType discriminates access tokens from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Subject is the user snapshot embedded in access tokens.
type Subject struct {
	ID     string
	Code   string
	Name   string
	Email  string
	Role   string
	Status string
}

// Claims holds the JWT claims of both token types. Refresh tokens carry only
// the user id, the session id and the type discriminator.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string    `json:"id"`
	Code      string    `json:"code,omitempty"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role,omitempty"`
	Status    string    `json:"status,omitempty"`
	SessionID string    `json:"sessionId"`
	Type      TokenType `json:"type"`
}

// TokenPair is the result of issuing or renewing tokens.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	SessionID        string
	ExpiresIn        int64 // access token lifetime in seconds
	TokenType        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// IssuerOptions configures a TokenIssuer.
type IssuerOptions struct {
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Clock      clock.Clock
}

// TokenIssuer issues and verifies access and refresh JWTs. It signs with HS256
// from a shared secret, or with RS256/ES256 from a private/public key pair.
type TokenIssuer struct {
	method     jwt.SigningMethod
	signKey    any
	verifyKey  any
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      clock.Clock
}

// NewHMACTokenIssuer returns a TokenIssuer that signs with HS256 using secret.
func NewHMACTokenIssuer(secret []byte, opts IssuerOptions) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, ErrInvalidKey
	}
	return newTokenIssuer(jwt.SigningMethodHS256, secret, secret, opts), nil
}

// NewKeyPairTokenIssuer returns a TokenIssuer that signs with the given private key (RS256 or ES256).
func NewKeyPairTokenIssuer(privateKey crypto.Signer, publicKey crypto.PublicKey, opts IssuerOptions) (*TokenIssuer, error) {
	if privateKey == nil || publicKey == nil {
		return nil, ErrInvalidKey
	}
	var method jwt.SigningMethod
	switch privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return nil, ErrInvalidKey
	}
	if KeyAlg(publicKey) != method.Alg() {
		return nil, ErrInvalidKey
	}
	return newTokenIssuer(method, privateKey, publicKey, opts), nil
}

func newTokenIssuer(method jwt.SigningMethod, signKey, verifyKey any, opts IssuerOptions) *TokenIssuer {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 24 * time.Hour
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 7 * 24 * time.Hour
	}
	return &TokenIssuer{
		method:     method,
		signKey:    signKey,
		verifyKey:  verifyKey,
		issuer:     opts.Issuer,
		audience:   opts.Audience,
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		clock:      clock.OrSystem(opts.Clock),
	}
}

// Alg returns the JWS algorithm used for signing.
func (p *TokenIssuer) Alg() string { return p.method.Alg() }

// NewSessionToken returns a new opaque session identifier.
func NewSessionToken(now time.Time) string {
	return uuid.NewString() + "_" + strconv.FormatInt(now.UnixMilli(), 10)
}

// IssuePair mints an access and a refresh token bound to sessionID.
// An empty sessionID yields a freshly generated one.
func (p *TokenIssuer) IssuePair(sub Subject, sessionID string) (*TokenPair, error) {
	now := p.clock.Now().UTC()
	if sessionID == "" {
		sessionID = NewSessionToken(now)
	}
	accessExp := now.Add(p.accessTTL)
	refreshExp := now.Add(p.refreshTTL)

	access, err := p.sign(Claims{
		RegisteredClaims: p.registered(sub.ID, now, accessExp),
		UserID:           sub.ID,
		Code:             sub.Code,
		Name:             sub.Name,
		Email:            sub.Email,
		Role:             sub.Role,
		Status:           sub.Status,
		SessionID:        sessionID,
		Type:             TokenTypeAccess,
	})
	if err != nil {
		return nil, err
	}
	refresh, err := p.sign(Claims{
		RegisteredClaims: p.registered(sub.ID, now, refreshExp),
		UserID:           sub.ID,
		SessionID:        sessionID,
		Type:             TokenTypeRefresh,
	})
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		SessionID:        sessionID,
		ExpiresIn:        int64(p.accessTTL / time.Second),
		TokenType:        "Bearer",
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Renew verifies refreshToken and reissues both tokens for the same session.
// The token must be a refresh token belonging to sub.
func (p *TokenIssuer) Renew(refreshToken string, sub Subject) (*TokenPair, error) {
	claims, err := p.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.UserID != sub.ID {
		return nil, ErrTokenInvalid
	}
	return p.IssuePair(sub, claims.SessionID)
}

// Verify checks structure, signature, issuer, audience and expiry of token,
// without looking at the type discriminator.
func (p *TokenIssuer) Verify(token string) (*Claims, error) {
	if !HasValidStructure(token) {
		return nil, ErrInvalidTokenFormat
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{p.method.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.clock.Now),
	)
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return p.verifyKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsed.Valid || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// VerifyAccess verifies token and requires it to be an access token.
func (p *TokenIssuer) VerifyAccess(token string) (*Claims, error) {
	return p.verifyType(token, TokenTypeAccess)
}

// VerifyRefresh verifies token and requires it to be a refresh token.
func (p *TokenIssuer) VerifyRefresh(token string) (*Claims, error) {
	return p.verifyType(token, TokenTypeRefresh)
}

func (p *TokenIssuer) verifyType(token string, want TokenType) (*Claims, error) {
	claims, err := p.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.Type != want {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// HasValidStructure reports whether token has three non-empty dot-separated segments.
func HasValidStructure(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
	}
	return true
}

func (p *TokenIssuer) registered(subject string, now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		Issuer:    p.issuer,
		Audience:  jwt.ClaimStrings{p.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
}

func (p *TokenIssuer) sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(p.method, claims).SignedString(p.signKey)
}
