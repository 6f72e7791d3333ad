package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairplay-backend/internal/services"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := services.NewJWTService("secret", time.Hour)

	token, err := svc.GenerateToken("alice", "")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID)
	assert.Equal(t, services.RolePlayer, claims.Role)
	assert.NotEmpty(t, claims.SessionID)

	other, err := svc.GenerateToken("alice", services.RoleService)
	require.NoError(t, err)
	otherClaims, err := svc.ValidateToken(other)
	require.NoError(t, err)
	assert.Equal(t, services.RoleService, otherClaims.Role)
	assert.NotEqual(t, claims.SessionID, otherClaims.SessionID)
}

func TestJWTRejectsBadTokens(t *testing.T) {
	svc := services.NewJWTService("secret", time.Hour)

	token, err := services.NewJWTService("other", time.Hour).GenerateToken("alice", "")
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.Error(t, err)

	expired, err := services.NewJWTService("secret", -time.Minute).GenerateToken("alice", "")
	require.NoError(t, err)
	_, err = svc.ValidateToken(expired)
	assert.Error(t, err)

	_, err = svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}
