package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gometrics "github.com/rcrowley/go-metrics"
	"go.uber.org/zap"

	"fairplay-backend/internal/services"
)

type FairnessHandler struct {
	fairness *services.FairnessLedger
	metrics  *services.Metrics
	log      *zap.Logger
}

func NewFairnessHandler(fairness *services.FairnessLedger, metrics *services.Metrics, log *zap.Logger) *FairnessHandler {
	return &FairnessHandler{
		fairness: fairness,
		metrics:  metrics,
		log:      log,
	}
}

// Verify is public: anyone holding a round ID may audit it.
func (h *FairnessHandler) Verify(c *gin.Context) {
	report, err := h.fairness.Verify(c.Request.Context(), c.Param("id"))
	if report != nil {
		status := http.StatusOK
		if err != nil {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"report": report})
		return
	}
	respondError(c, h.log, err)
}

func (h *FairnessHandler) Algorithm(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"algorithm":         services.AlgorithmARC4V1,
		"hash":              "sha256",
		"hash_iterations":   services.HashIterations,
		"seed_format":       "serverSeed-clientSeed-nonce",
		"scaling":           "floor(u * (max - min + 1)) + min",
		"server_seed_bytes": services.ServerSeedBytes,
		"client_seed_bytes": services.ClientSeedBytes,
	})
}

func (h *FairnessHandler) Metrics(c *gin.Context) {
	c.Header("Content-Type", "application/json")
	c.Status(http.StatusOK)
	gometrics.WriteJSONOnce(h.metrics.Registry, c.Writer)
}

func (h *FairnessHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
