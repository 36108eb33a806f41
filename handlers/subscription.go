package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"finwise/api/logger"
	"finwise/api/middleware"
	"finwise/api/models"
	"finwise/api/subscription"
)

// SubscriptionStore is the slice of the persistence layer the subscription
// handlers need.
type SubscriptionStore interface {
	GetByUserID(ctx context.Context, userID string) (*models.Subscription, error)
	GetUserIDByCustomerID(ctx context.Context, customerID string) (string, error)
	ApplyTransition(ctx context.Context, userID string, in subscription.Input) (*models.Subscription, error)
}

// SubscriptionHandler serves subscription state reads and the trial-start
// user action.
type SubscriptionHandler struct {
	store SubscriptionStore
}

func NewSubscriptionHandler(store SubscriptionStore) *SubscriptionHandler {
	return &SubscriptionHandler{store: store}
}

type statusResponse struct {
	HasActiveAccess bool                 `json:"has_active_access"`
	PlanType        models.PlanType      `json:"plan_type"`
	TrialDaysLeft   int                  `json:"trial_days_left"`
	Banner          *subscription.Banner `json:"banner"`
}

// GetStatus reports the banner and access gate for the authenticated user.
// It never fails: a store error degrades to the free-plan default rather
// than surfacing, because this feeds UI chrome, not billing decisions.
func (h *SubscriptionHandler) GetStatus(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	sub, err := h.store.GetByUserID(c.Request.Context(), claims.Sub)
	if err != nil {
		logger.Get().Error("error reading subscription, degrading to free defaults",
			zap.String("user_id", claims.Sub), zap.Error(err))
		sub = nil
	}

	now := time.Now().UTC()
	plan := models.PlanFree
	if sub != nil {
		plan = sub.PlanType
	}
	c.JSON(http.StatusOK, statusResponse{
		HasActiveAccess: subscription.HasActiveAccess(sub),
		PlanType:        plan,
		TrialDaysLeft:   subscription.TrialDaysLeft(sub, now),
		Banner:          subscription.SelectBanner(sub, now),
	})
}

// StartTrial begins the one-time free trial for the authenticated user.
func (h *SubscriptionHandler) StartTrial(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	current, err := h.store.GetByUserID(c.Request.Context(), claims.Sub)
	if err != nil {
		logger.Get().Error("error reading subscription", zap.String("user_id", claims.Sub), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error reading subscription"})
		return
	}
	if current != nil && current.HasUsedTrial {
		c.JSON(http.StatusConflict, gin.H{"error": "Trial already used"})
		return
	}

	next, err := h.store.ApplyTransition(c.Request.Context(), claims.Sub, subscription.Input{
		Transition: subscription.TrialStart,
	})
	if err != nil {
		logger.Get().Error("trial_start transition failed", zap.String("user_id", claims.Sub), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error starting trial"})
		return
	}

	logger.Get().Info("trial started", zap.String("user_id", claims.Sub))
	c.JSON(http.StatusOK, statusResponse{
		HasActiveAccess: subscription.HasActiveAccess(next),
		PlanType:        next.PlanType,
		TrialDaysLeft:   subscription.TrialDaysLeft(next, time.Now().UTC()),
		Banner:          subscription.SelectBanner(next, time.Now().UTC()),
	})
}
