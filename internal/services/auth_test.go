package services

import (
	"testing"
	"time"

	"casedesk/internal/config"
	"casedesk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuthConfig() *config.Config {
	return &config.Config{
		JWT:      config.JWTConfig{Secret: "test-secret", Issuer: "casedesk-test"},
		Security: config.SecurityConfig{BcryptCost: 4},
	}
}

func TestGenerateAccessTokenUniquePerIssuance(t *testing.T) {
	svc := NewAuthService(testAuthConfig())
	user := &models.User{ID: 1, Username: "alice", Role: "agent"}

	// Same user, same expiry, same wall-clock second: the tokens (and
	// therefore the session token hashes) must still differ.
	expiresAt := time.Now().Add(time.Hour).Truncate(time.Second)
	first, err := svc.GenerateAccessToken(user, expiresAt)
	require.NoError(t, err)
	second, err := svc.GenerateAccessToken(user, expiresAt)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.NotEqual(t, HashToken(first), HashToken(second))
}

func TestPasswordHashing(t *testing.T) {
	svc := NewAuthService(testAuthConfig())

	hash, err := svc.HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.True(t, svc.VerifyPassword(hash, "correct horse"))
	assert.False(t, svc.VerifyPassword(hash, "incorrect horse"))
}
