package stream

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledClient(t *testing.T) {
	c := NewClient("", "", "https://chat.example.com")
	assert.False(t, c.Enabled())

	_, err := c.CreateToken("user-1")
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = c.CreateChannel(context.Background(), "s1", "u1", "u2")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestCreateTokenSignsUserID(t *testing.T) {
	c := NewClient("key", "topsecret", "https://chat.example.com")
	require.True(t, c.Enabled())

	signed, err := c.CreateToken("user-1")
	require.NoError(t, err)

	tok, err := jwt.Parse(signed, func(t *jwt.Token) (any, error) {
		return []byte("topsecret"), nil
	})
	require.NoError(t, err)
	require.True(t, tok.Valid)

	claims := tok.Claims.(jwt.MapClaims)
	assert.Equal(t, "user-1", claims["user_id"])
}
