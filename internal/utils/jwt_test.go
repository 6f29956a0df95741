package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("secret", "tenant-1", "t@example.com", "tenant", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", claims.UserID)
	assert.Equal(t, "tenant", claims.Role)
	assert.Equal(t, "tenant-1", claims.Caller().UserID)
}

func TestParseTokenRejects(t *testing.T) {
	token, err := GenerateToken("secret", "tenant-1", "", "tenant", time.Hour)
	require.NoError(t, err)

	_, err = ParseToken("other", token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := GenerateToken("secret", "tenant-1", "", "tenant", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken("secret", expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseToken("", token)
	assert.ErrorIs(t, err, ErrMissingSecret)

	_, err = GenerateToken("secret", "x", "", "superuser", time.Hour)
	assert.Error(t, err)
}
