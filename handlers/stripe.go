package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"go.uber.org/zap"

	"finwise/api/config"
	"finwise/api/logger"
	"finwise/api/middleware"
	"finwise/api/models"
)

// BillingHandler creates Stripe checkout and billing-portal sessions. The
// subscription record itself is never touched here: transitions are applied
// only after Stripe confirms the change through a webhook.
type BillingHandler struct {
	api    *client.API
	store  SubscriptionStore
	prices map[models.PlanType]string

	frontendURL string
}

func NewBillingHandler(api *client.API, store SubscriptionStore, cfg *config.Config) *BillingHandler {
	return &BillingHandler{
		api:   api,
		store: store,
		prices: map[models.PlanType]string{
			models.PlanBasic: cfg.StripePriceBasic,
			models.PlanPro:   cfg.StripePricePro,
		},
		frontendURL: cfg.FrontendURL,
	}
}

type checkoutRequest struct {
	PlanType models.PlanType `json:"plan_type" binding:"required"`
}

// CreateCheckoutSession starts a Stripe Checkout flow for the requested paid
// plan. The user id rides along as client_reference_id and subscription
// metadata so webhooks can link the Stripe objects back to the user.
func (h *BillingHandler) CreateCheckoutSession(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan_type is required"})
		return
	}
	priceID, ok := h.prices[req.PlanType]
	if !ok || priceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown plan type"})
		return
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(h.frontendURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(h.frontendURL + "/billing/canceled"),
		ClientReferenceID: stripe.String(claims.Sub),
		CustomerEmail:     stripe.String(claims.Email),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"user_id": claims.Sub},
		},
	}

	s, err := h.api.CheckoutSessions.New(params)
	if err != nil {
		logger.Get().Error("error creating checkout session",
			zap.String("user_id", claims.Sub), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating checkout session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": s.URL})
}

// CreatePortalSession opens the Stripe billing portal, where users update
// payment methods and cancel. Cancellation lands back here as a webhook.
func (h *BillingHandler) CreatePortalSession(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	sub, err := h.store.GetByUserID(c.Request.Context(), claims.Sub)
	if err != nil {
		logger.Get().Error("error reading subscription", zap.String("user_id", claims.Sub), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error reading subscription"})
		return
	}
	if sub == nil || sub.StripeCustomerID == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No billing profile for this user"})
		return
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(*sub.StripeCustomerID),
		ReturnURL: stripe.String(h.frontendURL + "/settings/billing"),
	}
	s, err := h.api.BillingPortalSessions.New(params)
	if err != nil {
		logger.Get().Error("error creating portal session",
			zap.String("user_id", claims.Sub), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating portal session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": s.URL})
}
