package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "scansek-api"

// Token types carried in the typ claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// ErrWrongTokenType is returned when a refresh token is presented where an
// access token is required, or the other way round.
var ErrWrongTokenType = errors.New("wrong token type")

// Claims holds the session token claims. The subject is the account id; no
// role or scope claims exist.
type Claims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// JWTManager handles JWT token generation and validation.
type JWTManager struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	now           func() time.Time
}

// NewJWTManager creates a new JWT manager with the given secret and expiry durations.
func NewJWTManager(secret string, accessExpiry, refreshExpiry time.Duration) *JWTManager {
	return &JWTManager{
		secret:        []byte(secret),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		now:           time.Now,
	}
}

// GenerateAccessToken creates a signed short-lived access token for accountID.
func (m *JWTManager) GenerateAccessToken(accountID string) (string, error) {
	return m.sign(accountID, TokenTypeAccess, m.accessExpiry)
}

// GenerateRefreshToken creates a signed long-lived refresh token for accountID.
func (m *JWTManager) GenerateRefreshToken(accountID string) (string, error) {
	return m.sign(accountID, TokenTypeRefresh, m.refreshExpiry)
}

func (m *JWTManager) sign(accountID, typ string, ttl time.Duration) (string, error) {
	now := m.now().UTC()
	claims := &Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}

	return signedToken, nil
}

// ValidateAccessToken parses an access token and returns the account id.
func (m *JWTManager) ValidateAccessToken(tokenString string) (string, error) {
	return m.validate(tokenString, TokenTypeAccess)
}

// ValidateRefreshToken parses a refresh token and returns the account id.
func (m *JWTManager) ValidateRefreshToken(tokenString string) (string, error) {
	return m.validate(tokenString, TokenTypeRefresh)
}

func (m *JWTManager) validate(tokenString, typ string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return "", fmt.Errorf("parse %s token: %w", typ, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("invalid %s token claims", typ)
	}
	if claims.Type != typ {
		return "", fmt.Errorf("%w: got %q, want %q", ErrWrongTokenType, claims.Type, typ)
	}

	return claims.Subject, nil
}
