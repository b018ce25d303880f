package server

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticator_LoginAndParse(t *testing.T) {
	a, err := NewAuthenticator("secret", "ops", "pw")
	require.NoError(t, err)

	token, err := a.Login("ops", "pw")
	require.NoError(t, err)

	claims, err := a.parse(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Username)
	assert.Equal(t, "fleetsim", claims.Issuer)

	_, err = a.Login("ops", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = a.Login("root", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticator_RejectsForeignAndExpiredTokens(t *testing.T) {
	a, err := NewAuthenticator("secret", "ops", "pw")
	require.NoError(t, err)
	other, err := NewAuthenticator("other-secret", "ops", "pw")
	require.NoError(t, err)

	foreign, err := other.Login("ops", "pw")
	require.NoError(t, err)
	_, err = a.parse(foreign)
	assert.Error(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username: "ops",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	signed, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = a.parse(signed)
	assert.Error(t, err)
}
