package api

import (
	"errors"
	"net/http"
	"strconv"

	"questboard/internal/model"
	"questboard/internal/service"
	"questboard/pkg/auth"
	"questboard/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type withdrawalRoutes struct {
	ws service.WithdrawalServiceI
}

func NewWithdrawalRoutes(handler *gin.RouterGroup, ws service.WithdrawalServiceI, a *auth.SessionAuth) {
	r := &withdrawalRoutes{ws: ws}

	h := handler.Group("/withdrawals")
	h.Use(a.SessionMiddleware())
	{
		h.POST("/", r.RequestWithdrawal)
		h.GET("/", r.ListTransactions)
		h.GET("/pending", r.GetPendingWithdrawal)
		h.POST("/:transaction_id/cancel", r.CancelWithdrawal)
	}
}

type WithdrawalRequest struct {
	Amount string `json:"amount" binding:"required"`
}

func (r *withdrawalRoutes) RequestWithdrawal(c *gin.Context) {
	log := logger.Logger()

	session, ok := auth.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	txn, err := r.ws.RequestWithdrawal(c.Request.Context(), session.UserID, amount)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAmount),
			errors.Is(err, service.ErrBelowMinimum):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrWalletNotSet):
			c.JSON(http.StatusBadRequest, gin.H{"error": "connect a wallet before withdrawing"})
		case errors.Is(err, service.ErrInsufficientBalance):
			c.JSON(http.StatusBadRequest, gin.H{"error": "insufficient balance"})
		case errors.Is(err, service.ErrPendingWithdrawalExists):
			c.JSON(http.StatusConflict, gin.H{"error": "a pending withdrawal already exists"})
		default:
			log.Error("failed to request withdrawal", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to request withdrawal"})
		}
		return
	}

	c.JSON(http.StatusCreated, transactionView(txn))
}

func (r *withdrawalRoutes) CancelWithdrawal(c *gin.Context) {
	log := logger.Logger()

	session, ok := auth.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	transactionID, err := uuid.Parse(c.Param("transaction_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction_id"})
		return
	}

	txn, err := r.ws.CancelWithdrawal(c.Request.Context(), session.UserID, transactionID)
	if err != nil {
		if errors.Is(err, service.ErrTransactionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no pending withdrawal with that id"})
			return
		}
		log.Error("failed to cancel withdrawal", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel withdrawal"})
		return
	}

	c.JSON(http.StatusOK, transactionView(txn))
}

func (r *withdrawalRoutes) ListTransactions(c *gin.Context) {
	log := logger.Logger()

	session, ok := auth.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	txns, err := r.ws.ListTransactions(c.Request.Context(), session.UserID, limit)
	if err != nil {
		log.Error("failed to list transactions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list transactions"})
		return
	}

	out := make([]gin.H, len(txns))
	for i, txn := range txns {
		out[i] = transactionView(txn)
	}

	c.JSON(http.StatusOK, out)
}

func (r *withdrawalRoutes) GetPendingWithdrawal(c *gin.Context) {
	log := logger.Logger()

	session, ok := auth.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	txn, err := r.ws.GetPendingWithdrawal(c.Request.Context(), session.UserID)
	if err != nil {
		log.Error("failed to get pending withdrawal", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get pending withdrawal"})
		return
	}

	if txn == nil {
		c.JSON(http.StatusOK, gin.H{"pending": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"pending": transactionView(txn)})
}

func transactionView(txn *model.Transaction) gin.H {
	return gin.H{
		"id":             txn.ID,
		"type":           txn.Type,
		"amount":         txn.Amount,
		"status":         txn.Status,
		"wallet_address": txn.WalletAddress,
		"tx_hash":        txn.TxHash,
		"notes":          txn.Notes,
		"processed_at":   txn.ProcessedAt,
		"created_at":     txn.CreatedAt,
	}
}
