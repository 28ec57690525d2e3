package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/locolive/proconnect/internal/domain"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// TokenType distinguishes access tokens from anything else signed with the same secret
type TokenType string

const (
	AccessToken TokenType = "access"
)

// Claims represents the JWT claims
type Claims struct {
	UserID      domain.UserID `json:"user_id"`
	DisplayName string        `json:"name,omitempty"`
	TokenType   TokenType     `json:"token_type"`
	jwt.RegisteredClaims
}

// Viewer returns the user the token was issued to
func (c *Claims) Viewer() domain.UserRef {
	return domain.UserRef{ID: c.UserID, DisplayName: c.DisplayName}
}

// JWTManager handles JWT operations
type JWTManager struct {
	secret       []byte
	accessExpiry time.Duration
	issuer       string
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secret string, accessExpiry time.Duration) *JWTManager {
	return &JWTManager{
		secret:       []byte(secret),
		accessExpiry: accessExpiry,
		issuer:       "proconnect",
	}
}

// GenerateAccessToken creates a new access token
func (m *JWTManager) GenerateAccessToken(user domain.UserRef) (*domain.TokenResponse, error) {
	now := time.Now()
	expiresAt := now.Add(m.accessExpiry)
	claims := &Claims{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		TokenType:   AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    m.issuer,
			Subject:   user.ID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return nil, err
	}
	return &domain.TokenResponse{AccessToken: signed, ExpiresAt: expiresAt.UTC()}, nil
}

// ValidateAccessToken parses an HS256 token issued by m and checks it names a real user
func (m *JWTManager) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case err != nil:
		return nil, ErrInvalidToken
	case claims.TokenType != AccessToken || claims.UserID <= 0:
		return nil, ErrInvalidToken
	}
	return claims, nil
}
