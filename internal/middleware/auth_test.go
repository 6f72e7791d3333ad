package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fairplay-backend/internal/middleware"
	"fairplay-backend/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(jwtService *services.JWTService, limiter middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(jwtService), middleware.RateLimitMiddleware(limiter, zap.NewNop()))

	ok := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("user_id"), "role": c.GetString("role")})
	}
	api.GET("/balance", ok)
	api.POST("/rounds", ok)
	api.POST("/bets", ok)
	api.POST("/bets/resolve", middleware.RequireRole(services.RoleService), ok)
	return r
}

func do(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	jwtService := services.NewJWTService("secret", time.Hour)
	r := newRouter(jwtService, services.NewMemoryRateLimiter())

	token, err := jwtService.GenerateToken("alice", services.RolePlayer)
	require.NoError(t, err)

	w := do(r, http.MethodGet, "/api/balance", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"alice"`)

	w = do(r, http.MethodGet, "/api/balance?token="+token, "")
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/balance", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/balance", "garbage").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/balance", nil)
	req.Header.Set("Authorization", "Token "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole(t *testing.T) {
	jwtService := services.NewJWTService("secret", time.Hour)
	r := newRouter(jwtService, services.NewMemoryRateLimiter())

	player, err := jwtService.GenerateToken("alice", services.RolePlayer)
	require.NoError(t, err)
	server, err := jwtService.GenerateToken("table-1", services.RoleService)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, do(r, http.MethodPost, "/api/bets/resolve", player).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/bets/resolve", server).Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	jwtService := services.NewJWTService("secret", time.Hour)
	r := newRouter(jwtService, services.NewMemoryRateLimiter())

	token, err := jwtService.GenerateToken("alice", services.RolePlayer)
	require.NoError(t, err)

	for i := 0; i < services.DefaultRateLimitBets; i++ {
		require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/bets", token).Code, "bet %d", i+1)
	}
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodPost, "/api/bets", token).Code)

	// Reads and other actions have their own budget.
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/balance", token).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/rounds", token).Code)

	bob, err := jwtService.GenerateToken("bob", services.RolePlayer)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/bets", bob).Code)
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string, string, int, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func TestRateLimitFailsClosed(t *testing.T) {
	jwtService := services.NewJWTService("secret", time.Hour)
	r := newRouter(jwtService, brokenLimiter{})

	token, err := jwtService.GenerateToken("alice", services.RolePlayer)
	require.NoError(t, err)

	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodPost, "/api/bets", token).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/balance", token).Code)
}
