package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"finwise/api/logger"
	"finwise/api/middleware"
	"finwise/api/models"
	"finwise/api/subscription"
)

// InsightsClient generates the AI summary; satisfied by llm.Client.
type InsightsClient interface {
	GenerateInsights(ctx context.Context, txns []models.Transaction) (string, error)
}

// InsightsHandler gates the AI insights feature behind the subscription
// access check and a rate limit (applied as route middleware).
type InsightsHandler struct {
	subs SubscriptionStore
	txns TransactionStore
	llm  InsightsClient
}

func NewInsightsHandler(subs SubscriptionStore, txns TransactionStore, llm InsightsClient) *InsightsHandler {
	return &InsightsHandler{subs: subs, txns: txns, llm: llm}
}

// Generate produces spending insights over the user's recent transactions.
// The access gate reads the subscription record fresh on every call; a
// cached decision could grant paid features after a payment failure.
func (h *InsightsHandler) Generate(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	sub, err := h.subs.GetByUserID(c.Request.Context(), claims.Sub)
	if err != nil {
		logger.Get().Error("error reading subscription", zap.String("user_id", claims.Sub), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error checking subscription"})
		return
	}
	if !subscription.HasActiveAccess(sub) {
		c.JSON(http.StatusForbidden, gin.H{"error": "An active subscription is required for insights"})
		return
	}

	txns, err := h.txns.ListByUserID(c.Request.Context(), claims.Sub, "", 100)
	if err != nil {
		logger.Get().Error("error listing transactions", zap.String("user_id", claims.Sub), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error loading transactions"})
		return
	}
	if len(txns) == 0 {
		c.JSON(http.StatusOK, gin.H{"insights": "No transactions yet. Add some to get insights."})
		return
	}

	insights, err := h.llm.GenerateInsights(c.Request.Context(), txns)
	if err != nil {
		logger.Get().Error("error generating insights", zap.String("user_id", claims.Sub), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Error generating insights"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"insights": insights})
}
