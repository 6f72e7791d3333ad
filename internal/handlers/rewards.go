package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fairplay-backend/internal/models"
	"fairplay-backend/internal/services"
)

type RewardsHandler struct {
	ledger *services.BettingLedger
	log    *zap.Logger
}

func NewRewardsHandler(ledger *services.BettingLedger, log *zap.Logger) *RewardsHandler {
	return &RewardsHandler{
		ledger: ledger,
		log:    log,
	}
}

// List returns the catalog and the rewards the caller can claim now.
func (h *RewardsHandler) List(c *gin.Context) {
	available, err := h.ledger.AvailableRewards(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rewards":   services.Rewards(),
		"available": available,
	})
}

func (h *RewardsHandler) History(c *gin.Context) {
	claims, err := h.ledger.RewardHistory(c.Request.Context(), c.GetString("user_id"), 10)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"claims": claims,
		"count":  len(claims),
	})
}

// Claim credits a cooldown-limited reward to the caller.
func (h *RewardsHandler) Claim(c *gin.Context) {
	claim, txs, err := h.ledger.ClaimReward(c.Request.Context(), c.GetString("user_id"), models.RewardType(c.Param("type")))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondClaim(c, claim, txs)
}

// Grant credits any reward to the player named in the body. Only service
// tokens reach it.
func (h *RewardsHandler) Grant(c *gin.Context) {
	var req models.RewardGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	claim, txs, err := h.ledger.GrantReward(c.Request.Context(), req.UserID, models.RewardType(c.Param("type")))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondClaim(c, claim, txs)
}

func respondClaim(c *gin.Context, claim *models.RewardClaim, txs []*models.Transaction) {
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"claim":        claim,
		"transactions": txs,
	})
}
