package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"finwise/api/db"
	"finwise/api/logger"
	"finwise/api/middleware"
	"finwise/api/models"
)

type TransactionStore interface {
	Create(ctx context.Context, txn *models.Transaction) (*models.Transaction, error)
	ListByUserID(ctx context.Context, userID, accountID string, limit int) ([]models.Transaction, error)
	Update(ctx context.Context, userID, txnID string, amount float64, category, description string, occurredAt time.Time) error
	Delete(ctx context.Context, userID, txnID string) error
}

type TransactionHandler struct {
	store TransactionStore
}

func NewTransactionHandler(store TransactionStore) *TransactionHandler {
	return &TransactionHandler{store: store}
}

type transactionRequest struct {
	AccountID   string    `json:"account_id" binding:"required"`
	Amount      float64   `json:"amount" binding:"required"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	OccurredAt  time.Time `json:"occurred_at" binding:"required"`
}

func (h *TransactionHandler) Create(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	txn, err := h.store.Create(c.Request.Context(), &models.Transaction{
		AccountID:   req.AccountID,
		UserID:      claims.Sub,
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
		OccurredAt:  req.OccurredAt,
	})
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		return
	}
	if err != nil {
		logger.Get().Error("error creating transaction", zap.String("user_id", claims.Sub), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating transaction"})
		return
	}
	c.JSON(http.StatusCreated, txn)
}

func (h *TransactionHandler) List(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	txns, err := h.store.ListByUserID(c.Request.Context(), claims.Sub, c.Query("account_id"), limit)
	if err != nil {
		logger.Get().Error("error listing transactions", zap.String("user_id", claims.Sub), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error listing transactions"})
		return
	}
	c.JSON(http.StatusOK, txns)
}

func (h *TransactionHandler) Update(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.store.Update(c.Request.Context(), claims.Sub, c.Param("id"),
		req.Amount, req.Category, req.Description, req.OccurredAt)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
		return
	}
	if err != nil {
		logger.Get().Error("error updating transaction", zap.String("user_id", claims.Sub), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error updating transaction"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *TransactionHandler) Delete(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	err := h.store.Delete(c.Request.Context(), claims.Sub, c.Param("id"))
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
		return
	}
	if err != nil {
		logger.Get().Error("error deleting transaction", zap.String("user_id", claims.Sub), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error deleting transaction"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
