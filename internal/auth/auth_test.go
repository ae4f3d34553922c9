package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("u-1", testSecret, time.Hour)
	require.NoError(t, err)

	userID, err := UserIDFromToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "u-1", userID)
}

func TestTokenWrongSecretRejected(t *testing.T) {
	token, err := GenerateToken("u-1", testSecret, time.Hour)
	require.NoError(t, err)

	_, err = UserIDFromToken(token, []byte("other-secret"))
	assert.Error(t, err)
}

func TestTokenExpiryRejected(t *testing.T) {
	token, err := GenerateToken("u-1", testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = UserIDFromToken(token, testSecret)
	assert.Error(t, err)
}

func TestTokenGarbageRejected(t *testing.T) {
	_, err := UserIDFromToken("not-a-jwt", testSecret)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)

	assert.True(t, CheckPassword(hash, "hunter2"))
	assert.False(t, CheckPassword(hash, "hunter3"))
	assert.False(t, CheckPassword("", "hunter2"))
}
