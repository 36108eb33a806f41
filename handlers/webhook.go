package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	stripe "github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"finwise/api/config"
	"finwise/api/logger"
	"finwise/api/middleware"
	"finwise/api/models"
	"finwise/api/subscription"
)

// WebhookHandler maps verified Stripe webhook events onto lifecycle
// transitions. Stripe delivers at least once and possibly out of order;
// every transition recomputes from a fresh row read inside the store, so
// redelivery is harmless. A failed transition returns non-2xx and Stripe
// re-drives the delivery; nothing is retried internally.
type WebhookHandler struct {
	store  SubscriptionStore
	prices map[string]models.PlanType // Stripe price id -> plan
}

func NewWebhookHandler(store SubscriptionStore, cfg *config.Config) *WebhookHandler {
	return &WebhookHandler{
		store: store,
		prices: map[string]models.PlanType{
			cfg.StripePriceBasic: models.PlanBasic,
			cfg.StripePricePro:   models.PlanPro,
		},
	}
}

// HandleStripeWebhook processes one verified event. Event types outside the
// transition mapping are logged and acknowledged with 200 so Stripe stops
// redelivering them; they are not errors.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	event, ok := c.MustGet(middleware.StripeEventKey).(stripe.Event)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Missing verified event"})
		return
	}

	var err error
	switch event.Type {
	case "checkout.session.completed":
		err = h.handleCheckoutCompleted(c, event)
	case "customer.subscription.created", "customer.subscription.updated":
		err = h.handleSubscriptionChange(c, event)
	case "customer.subscription.deleted":
		err = h.handleSubscriptionDeleted(c, event)
	case "invoice.paid":
		err = h.handleInvoice(c, event, false)
	case "invoice.payment_failed":
		err = h.handleInvoice(c, event, true)
	default:
		logger.Get().Info("ignoring unhandled webhook event", zap.String("type", string(event.Type)))
	}

	if err != nil {
		logger.Get().Error("webhook processing failed",
			zap.String("type", string(event.Type)), zap.String("event_id", event.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *WebhookHandler) handleCheckoutCompleted(c *gin.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("parsing checkout session: %w", err)
	}

	userID := session.ClientReferenceID
	if userID == "" {
		return fmt.Errorf("checkout session %s has no client_reference_id", session.ID)
	}

	in := subscription.Input{Transition: subscription.PaymentSucceeded}
	if session.Customer != nil {
		in.StripeCustomerID = stripe.String(session.Customer.ID)
	}
	if session.Subscription != nil {
		in.StripeSubscriptionID = stripe.String(session.Subscription.ID)
	}

	_, err := h.store.ApplyTransition(c.Request.Context(), userID, in)
	return err
}

func (h *WebhookHandler) handleSubscriptionChange(c *gin.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("parsing subscription object: %w", err)
	}

	userID, err := h.resolveUser(c, &sub)
	if err != nil {
		return err
	}

	in, err := h.syncInput(&sub)
	if err != nil {
		return err
	}

	switch sub.Status {
	case stripe.SubscriptionStatusTrialing:
		in.Transition = subscription.TrialStart
	case stripe.SubscriptionStatusActive:
		if sub.CancelAtPeriodEnd {
			in.Transition = subscription.ManualCancel
			break
		}
		// A trial converting to paid and a plain renewal land in the same
		// place; distinguish only for the transition name.
		current, rerr := h.store.GetByUserID(c.Request.Context(), userID)
		if rerr == nil && current != nil && current.Status == models.StatusTrialing {
			in.Transition = subscription.TrialEndSuccess
		} else {
			in.Transition = subscription.PaymentSucceeded
		}
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		in.Transition = subscription.PaymentFailed
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		in.Transition = subscription.StripeDeleted
	default:
		// incomplete, paused: nothing in the transition table applies yet.
		logger.Get().Info("no transition for subscription status",
			zap.String("user_id", userID), zap.String("status", string(sub.Status)))
		return nil
	}

	_, err = h.store.ApplyTransition(c.Request.Context(), userID, in)
	return err
}

func (h *WebhookHandler) handleSubscriptionDeleted(c *gin.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("parsing subscription object: %w", err)
	}

	userID, err := h.resolveUser(c, &sub)
	if err != nil {
		return err
	}

	_, err = h.store.ApplyTransition(c.Request.Context(), userID, subscription.Input{
		Transition: subscription.StripeDeleted,
	})
	return err
}

// handleInvoice routes invoice outcomes. A payment failure during an active
// trial keeps the trial alive while Stripe retries; outside a trial it marks
// the record past_due.
func (h *WebhookHandler) handleInvoice(c *gin.Context, event stripe.Event, failed bool) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("parsing invoice object: %w", err)
	}
	if invoice.Customer == nil {
		return fmt.Errorf("invoice %s has no customer", invoice.ID)
	}

	userID, err := h.store.GetUserIDByCustomerID(c.Request.Context(), invoice.Customer.ID)
	if err != nil {
		return err
	}

	current, err := h.store.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		return err
	}

	var tr subscription.Transition
	switch {
	case failed && current != nil && current.Status == models.StatusTrialing:
		tr = subscription.TrialEndFailed
	case failed:
		tr = subscription.PaymentFailed
	case current != nil && current.Status == models.StatusTrialing:
		tr = subscription.TrialEndSuccess
	default:
		tr = subscription.PaymentSucceeded
	}

	_, err = h.store.ApplyTransition(c.Request.Context(), userID, subscription.Input{Transition: tr})
	return err
}

// resolveUser links a Stripe subscription object back to a user: first via
// the user_id metadata stamped at checkout, then via the stored customer id.
// No linkage is fatal to the delivery; there is no silent default.
func (h *WebhookHandler) resolveUser(c *gin.Context, sub *stripe.Subscription) (string, error) {
	if userID := sub.Metadata["user_id"]; userID != "" {
		return userID, nil
	}
	if sub.Customer != nil {
		return h.store.GetUserIDByCustomerID(c.Request.Context(), sub.Customer.ID)
	}
	return "", fmt.Errorf("subscription %s has no user linkage", sub.ID)
}

// syncInput extracts the provider-synced fields every subscription event
// carries: the plan from the price mapping, period bounds, trial end and the
// cancel flag. An unmapped price is fatal to the delivery.
func (h *WebhookHandler) syncInput(sub *stripe.Subscription) (subscription.Input, error) {
	in := subscription.Input{
		CancelAtPeriodEnd:    stripe.Bool(sub.CancelAtPeriodEnd),
		StripeSubscriptionID: stripe.String(sub.ID),
	}
	if sub.Customer != nil {
		in.StripeCustomerID = stripe.String(sub.Customer.ID)
	}
	if sub.TrialEnd > 0 {
		trialEnd := time.Unix(sub.TrialEnd, 0).UTC()
		in.TrialEnd = &trialEnd
	}

	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return in, fmt.Errorf("subscription %s has no price item", sub.ID)
	}
	item := sub.Items.Data[0]

	plan, ok := h.prices[item.Price.ID]
	if !ok {
		return in, fmt.Errorf("no plan mapping for stripe price %s", item.Price.ID)
	}
	in.PlanType = &plan

	if item.CurrentPeriodStart > 0 {
		start := time.Unix(item.CurrentPeriodStart, 0).UTC()
		in.CurrentPeriodStart = &start
	}
	if item.CurrentPeriodEnd > 0 {
		end := time.Unix(item.CurrentPeriodEnd, 0).UTC()
		in.CurrentPeriodEnd = &end
	}
	return in, nil
}
