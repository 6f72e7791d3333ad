package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fairplay-backend/internal/models"
	"fairplay-backend/internal/services"
)

type UserHandler struct {
	ledger *services.BettingLedger
	log    *zap.Logger
}

func NewUserHandler(ledger *services.BettingLedger, log *zap.Logger) *UserHandler {
	return &UserHandler{
		ledger: ledger,
		log:    log,
	}
}

// OpenAccount grants the signup balances; calling it again is harmless.
func (h *UserHandler) OpenAccount(c *gin.Context) {
	userID := c.GetString("user_id")

	opened, err := h.ledger.OpenAccount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	account, err := h.ledger.Balances(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	status := http.StatusOK
	if opened {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"opened":  opened,
		"account": account,
	})
}

func (h *UserHandler) GetBalance(c *gin.Context) {
	account, err := h.ledger.Balances(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account": account,
		"display": gin.H{
			"regular": models.FormatCurrency(account.Regular),
			"sweeps":  models.FormatCurrency(account.Sweeps),
		},
	})
}

func (h *UserHandler) GetTransactions(c *gin.Context) {
	currency := models.Currency(c.DefaultQuery("currency", string(models.CurrencyRegular)))

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	txs, err := h.ledger.Transactions(c.Request.Context(), c.GetString("user_id"), currency, limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": txs,
		"count":        len(txs),
	})
}

// Purchase credits a paid coin package. Only service tokens reach it.
func (h *UserHandler) Purchase(c *gin.Context) {
	var req models.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	tx, err := h.ledger.Credit(c.Request.Context(), req.UserID, req.Currency, req.Amount, models.TransactionKindPurchase)
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
