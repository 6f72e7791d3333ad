package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fairplay-backend/internal/services"
)

// respondError maps a service error onto a status code. Integrity and
// security failures never expose their detail to the player.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	switch services.KindOf(err) {
	case services.KindValidation:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case services.KindConflict:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case services.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case services.KindTransient:
		log.Warn("transient failure", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service busy, please try again"})
	case services.KindRateLimited:
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
	case services.KindSecurity:
		c.JSON(http.StatusForbidden, gin.H{"error": "Unable to complete action"})
	default:
		log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to complete action"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request",
		"details": err.Error(),
	})
}
