package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func TestSubject(t *testing.T) {
	v := NewTokenValidator("s3cret")

	t.Run("valid token", func(t *testing.T) {
		tok := sign(t, "s3cret", jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix()})
		sub, err := v.Subject(tok)
		assert.NoError(t, err)
		assert.Equal(t, "user-1", sub)
	})

	t.Run("wrong secret", func(t *testing.T) {
		tok := sign(t, "other", jwt.MapClaims{"sub": "user-1"})
		_, err := v.Subject(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		tok := sign(t, "s3cret", jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(-time.Minute).Unix()})
		_, err := v.Subject(tok)
		assert.Error(t, err)
	})

	t.Run("missing subject", func(t *testing.T) {
		tok := sign(t, "s3cret", jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
		_, err := v.Subject(tok)
		assert.Error(t, err)
	})
}

func TestParseAndValidateToken_Type(t *testing.T) {
	v := NewTokenValidator("s3cret")
	tok := sign(t, "s3cret", jwt.MapClaims{"sub": "u", "typ": "refresh"})

	_, err := v.ParseAndValidateToken(tok, "access")
	assert.Error(t, err)

	claims, err := v.ParseAndValidateToken(tok, "refresh")
	assert.NoError(t, err)
	assert.Equal(t, "u", claims["sub"])
}
