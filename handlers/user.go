package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"go.uber.org/zap"

	"finwise/api/config"
	"finwise/api/logger"
	"finwise/api/middleware"
	"finwise/api/models"
)

type UserStore interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
	Ensure(ctx context.Context, userID, email string) error
	DeleteUserData(ctx context.Context, userID string) (*string, error)
}

// UserHandler implements the GDPR surface: data export and the hard-delete
// pipeline.
type UserHandler struct {
	users     UserStore
	subs      SubscriptionStore
	accounts  AccountStore
	txns      TransactionStore
	stripeAPI *client.API

	supabaseURL    string
	serviceRoleKey string
	httpClient     *http.Client
}

func NewUserHandler(users UserStore, subs SubscriptionStore, accounts AccountStore,
	txns TransactionStore, stripeAPI *client.API, cfg *config.Config) *UserHandler {
	return &UserHandler{
		users:          users,
		subs:           subs,
		accounts:       accounts,
		txns:           txns,
		stripeAPI:      stripeAPI,
		supabaseURL:    cfg.SupabaseURL,
		serviceRoleKey: cfg.SupabaseServiceRoleKey,
		httpClient:     &http.Client{Timeout: 10 * time.Second},
	}
}

type exportResponse struct {
	ExportedAt   time.Time            `json:"exported_at"`
	User         *models.User         `json:"user"`
	Subscription *models.Subscription `json:"subscription"`
	Accounts     []models.Account     `json:"accounts"`
	Transactions []models.Transaction `json:"transactions"`
}

// Export returns everything stored about the user as a single JSON document.
// Payment-provider identifiers are redacted; they identify objects in
// Stripe's systems, not the user's own data.
func (h *UserHandler) Export(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	ctx := c.Request.Context()

	user, err := h.users.GetByID(ctx, claims.Sub)
	if err != nil {
		logger.Get().Error("error loading user for export", zap.String("user_id", claims.Sub), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error exporting user data"})
		return
	}

	sub, err := h.subs.GetByUserID(ctx, claims.Sub)
	if err != nil {
		logger.Get().Error("error loading subscription for export", zap.String("user_id", claims.Sub), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error exporting user data"})
		return
	}

	accounts, err := h.accounts.ListByUserID(ctx, claims.Sub)
	if err != nil {
		logger.Get().Error("error loading accounts for export", zap.String("user_id", claims.Sub), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error exporting user data"})
		return
	}

	txns, err := h.txns.ListByUserID(ctx, claims.Sub, "", 500)
	if err != nil {
		logger.Get().Error("error loading transactions for export", zap.String("user_id", claims.Sub), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error exporting user data"})
		return
	}

	c.JSON(http.StatusOK, exportResponse{
		ExportedAt:   time.Now().UTC(),
		User:         user,
		Subscription: sub,
		Accounts:     accounts,
		Transactions: txns,
	})
}

// Delete runs the hard-delete pipeline: relational data first (one
// transaction), then the upstream Stripe subscription, then the Supabase auth
// user. Upstream failures after the local commit are logged and reported but
// do not resurrect local data.
func (h *UserHandler) Delete(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	ctx := c.Request.Context()
	logger.Get().Info("starting user hard delete", zap.String("user_id", claims.Sub))

	stripeSubID, err := h.users.DeleteUserData(ctx, claims.Sub)
	if err != nil {
		logger.Get().Error("error deleting user data", zap.String("user_id", claims.Sub), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error deleting user data"})
		return
	}

	if stripeSubID != nil {
		if _, err := h.stripeAPI.Subscriptions.Cancel(*stripeSubID, &stripe.SubscriptionCancelParams{}); err != nil {
			// Best effort: the local delete already committed. Stripe's
			// object is cleaned up manually if this keeps failing.
			logger.Get().Error("error canceling stripe subscription",
				zap.String("user_id", claims.Sub), zap.Error(err))
		}
	}

	if err := h.deleteSupabaseUser(ctx, claims.Sub); err != nil {
		logger.Get().Error("error deleting supabase user", zap.String("user_id", claims.Sub), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error deleting auth user"})
		return
	}

	logger.Get().Info("user hard delete complete", zap.String("user_id", claims.Sub))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *UserHandler) deleteSupabaseUser(ctx context.Context, userID string) error {
	url := fmt.Sprintf("%s/auth/v1/admin/users/%s", h.supabaseURL, userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", h.serviceRoleKey)
	req.Header.Set("Authorization", "Bearer "+h.serviceRoleKey)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code deleting user: %d", resp.StatusCode)
	}
	return nil
}
