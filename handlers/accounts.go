package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"finwise/api/db"
	"finwise/api/logger"
	"finwise/api/middleware"
	"finwise/api/models"
)

type AccountStore interface {
	Create(ctx context.Context, userID, name, accountType, currency string, balance float64) (*models.Account, error)
	ListByUserID(ctx context.Context, userID string) ([]models.Account, error)
	Update(ctx context.Context, userID, accountID, name string, balance float64) error
	Delete(ctx context.Context, userID, accountID string) error
}

type AccountHandler struct {
	store AccountStore
}

func NewAccountHandler(store AccountStore) *AccountHandler {
	return &AccountHandler{store: store}
}

type accountRequest struct {
	Name     string  `json:"name" binding:"required"`
	Type     string  `json:"type" binding:"required"`
	Currency string  `json:"currency"`
	Balance  float64 `json:"balance"`
}

func (h *AccountHandler) Create(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req accountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	account, err := h.store.Create(c.Request.Context(), claims.Sub, req.Name, req.Type, req.Currency, req.Balance)
	if err != nil {
		logger.Get().Error("error creating account", zap.String("user_id", claims.Sub), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating account"})
		return
	}
	c.JSON(http.StatusCreated, account)
}

func (h *AccountHandler) List(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	accounts, err := h.store.ListByUserID(c.Request.Context(), claims.Sub)
	if err != nil {
		logger.Get().Error("error listing accounts", zap.String("user_id", claims.Sub), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error listing accounts"})
		return
	}
	c.JSON(http.StatusOK, accounts)
}

func (h *AccountHandler) Update(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req accountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.store.Update(c.Request.Context(), claims.Sub, c.Param("id"), req.Name, req.Balance)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		return
	}
	if err != nil {
		logger.Get().Error("error updating account", zap.String("user_id", claims.Sub), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error updating account"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AccountHandler) Delete(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	err := h.store.Delete(c.Request.Context(), claims.Sub, c.Param("id"))
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		return
	}
	if err != nil {
		logger.Get().Error("error deleting account", zap.String("user_id", claims.Sub), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error deleting account"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
