package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locolive/proconnect/internal/auth"
	"github.com/locolive/proconnect/internal/domain"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	m := auth.NewJWTManager("secret", time.Hour)
	tok, err := m.GenerateAccessToken(domain.UserRef{ID: 42, DisplayName: "Ada"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.ExpiresAt, 5*time.Second)

	claims, err := m.ValidateAccessToken(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.UserRef{ID: 42, DisplayName: "Ada"}, claims.Viewer())
}

func TestValidateRejectsForeignAndExpiredTokens(t *testing.T) {
	m := auth.NewJWTManager("secret", time.Hour)
	other := auth.NewJWTManager("other-secret", time.Hour)

	tok, err := other.GenerateAccessToken(domain.UserRef{ID: 1})
	require.NoError(t, err)
	_, err = m.ValidateAccessToken(tok.AccessToken)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	expired := auth.NewJWTManager("secret", -time.Minute)
	tok, err = expired.GenerateAccessToken(domain.UserRef{ID: 1})
	require.NoError(t, err)
	_, err = m.ValidateAccessToken(tok.AccessToken)
	require.ErrorIs(t, err, auth.ErrExpiredToken)

	_, err = m.ValidateAccessToken("garbage")
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}
