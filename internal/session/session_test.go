package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locolive/proconnect/internal/auth"
	"github.com/locolive/proconnect/internal/domain"
	"github.com/locolive/proconnect/internal/session"
)

func TestFromToken(t *testing.T) {
	tok, err := auth.NewJWTManager("server-secret", time.Hour).GenerateAccessToken(domain.UserRef{ID: 7, DisplayName: "Grace"})
	require.NoError(t, err)

	s, err := session.FromToken(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID(7), s.Viewer.ID)
	assert.Equal(t, "Grace", s.Viewer.DisplayName)
	assert.WithinDuration(t, tok.ExpiresAt, s.ExpiresAt, time.Second)

	assert.NoError(t, s.Valid(time.Now()))
	assert.ErrorIs(t, s.Valid(time.Now().Add(2*time.Hour)), domain.ErrUnauthorized)
}

func TestFromTokenRejectsGarbage(t *testing.T) {
	_, err := session.FromToken("")
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = session.FromToken("not.a.jwt")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}
