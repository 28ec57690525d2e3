// Package session holds who the client is acting as. The token is only decoded here;
// the server is the one that verifies it.
package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/locolive/proconnect/internal/auth"
	"github.com/locolive/proconnect/internal/domain"
)

type Session struct {
	Token     string
	Viewer    domain.UserRef
	ExpiresAt time.Time
}

// FromToken decodes the viewer and expiry out of an access token without checking its signature
func FromToken(token string) (*Session, error) {
	if token == "" {
		return nil, fmt.Errorf("no access token: %w", domain.ErrUnauthorized)
	}

	var claims auth.Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("decode access token: %w: %w", domain.ErrUnauthorized, err)
	}
	if claims.UserID <= 0 || claims.TokenType != auth.AccessToken {
		return nil, fmt.Errorf("token carries no user: %w", domain.ErrUnauthorized)
	}

	s := &Session{Token: token, Viewer: claims.Viewer()}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// Expired reports whether the token is past its expiry at now. Tokens without expiry never expire.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Valid returns ErrUnauthorized once the token has expired
func (s *Session) Valid(now time.Time) error {
	if s.Expired(now) {
		return fmt.Errorf("access token expired at %s: %w", s.ExpiresAt.Format(time.RFC3339), domain.ErrUnauthorized)
	}
	return nil
}
