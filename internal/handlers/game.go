package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fairplay-backend/internal/models"
	"fairplay-backend/internal/services"
)

type GameHandler struct {
	engine    *services.GameEngine
	fairness  *services.FairnessLedger
	ledger    *services.BettingLedger
	anticheat *services.AntiCheatMonitor
	log       *zap.Logger
}

func NewGameHandler(engine *services.GameEngine, fairness *services.FairnessLedger, ledger *services.BettingLedger, anticheat *services.AntiCheatMonitor, log *zap.Logger) *GameHandler {
	return &GameHandler{
		engine:    engine,
		fairness:  fairness,
		ledger:    ledger,
		anticheat: anticheat,
		log:       log,
	}
}

// ownRound loads the public view of a round of the calling player. It writes
// the error response itself and returns nil on failure.
func (h *GameHandler) ownRound(c *gin.Context, roundID string) *models.Round {
	round, err := h.fairness.Round(c.Request.Context(), roundID)
	if err != nil {
		respondError(c, h.log, err)
		return nil
	}
	if round.UserID != c.GetString("user_id") {
		respondError(c, h.log, services.ErrRoundNotOwned)
		return nil
	}
	return round
}

func (h *GameHandler) StartRound(c *gin.Context) {
	var req models.StartRoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	round, err := h.engine.StartRound(c.Request.Context(), c.GetString("user_id"), req.GameType)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"round":   round,
	})
}

func (h *GameHandler) GetRound(c *gin.Context) {
	round := h.ownRound(c, c.Param("id"))
	if round == nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{"round": round})
}

func (h *GameHandler) Play(c *gin.Context) {
	var req models.PlayRoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.engine.Play(c.Request.Context(),
		c.GetString("session_id"),
		c.GetString("user_id"),
		c.Param("id"),
		&req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

func (h *GameHandler) Reveal(c *gin.Context) {
	var req models.RevealRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		badRequest(c, err)
		return
	}

	round := h.ownRound(c, c.Param("id"))
	if round == nil {
		return
	}

	revealed, err := h.fairness.RevealRound(c.Request.Context(), round.ID, req.ClientSeed)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.anticheat.Observe(c.Request.Context(), round.UserID, models.ActionEvent{
		SessionID: c.GetString("session_id"),
		Type:      models.ActionReveal,
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"outcome": revealed.Outcome,
		"round":   revealed.Public(),
	})
}

// PlaceBet places a wager on a committed round of the caller's own.
func (h *GameHandler) PlaceBet(c *gin.Context) {
	var req models.BetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(c, err)
		return
	}

	round := h.ownRound(c, req.RoundID)
	if round == nil {
		return
	}
	if round.Status != models.RoundStatusCommitted {
		respondError(c, h.log, services.ErrAlreadyRevealed)
		return
	}

	userID := c.GetString("user_id")
	allowed := h.anticheat.ValidateAction(c.Request.Context(), c.GetString("session_id"), userID, models.ActionEvent{
		Type:   models.ActionBet,
		Amount: req.Amount,
	})
	if !allowed {
		respondError(c, h.log, services.ErrActionRejected)
		return
	}

	tx, err := h.ledger.PlaceBet(c.Request.Context(), userID, req.RoundID, req.Amount, req.Currency)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"transaction": tx,
		"new_balance": tx.BalanceAfter,
	})
}

// ResolveBet settles a player's bet. Only service tokens reach it.
func (h *GameHandler) ResolveBet(c *gin.Context) {
	var req models.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		badRequest(c, err)
		return
	}

	bet, err := h.ledger.ResolveBet(c.Request.Context(), req.UserID, req.RoundID, req.Amount, req.Won, req.Currency)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.anticheat.Observe(c.Request.Context(), req.UserID, models.ActionEvent{
		Type:   models.ActionResolve,
		Amount: req.Amount,
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"bet":     bet,
	})
}

func (h *GameHandler) GetLimits(c *gin.Context) {
	currency := models.Currency(c.DefaultQuery("currency", string(models.CurrencyRegular)))

	limits, err := h.ledger.GetLimits(c.Request.Context(), c.GetString("user_id"), currency)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"limits":          limits,
		"min_bet_display": models.FormatCurrency(limits.MinBet),
		"max_bet_display": models.FormatCurrency(limits.MaxBet),
	})
}
