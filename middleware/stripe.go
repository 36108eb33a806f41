package middleware

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"finwise/api/logger"
)

// StripeEventKey is the gin context key holding the verified webhook event.
const StripeEventKey = "stripe_event"

// StripeWebhookVerifier returns middleware that checks the Stripe-Signature
// header against the endpoint secret and stores the verified event in the
// context. Unverifiable deliveries are rejected before any handler runs.
func StripeWebhookVerifier(webhookSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := io.ReadAll(c.Request.Body)
		if err != nil {
			logger.Get().Error("failed to read webhook body", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		event, err := webhook.ConstructEvent(b, c.Request.Header.Get("Stripe-Signature"), webhookSecret)
		if err != nil {
			logger.Get().Error("webhook signature verification failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.Set(StripeEventKey, event)
		c.Next()
	}
}
