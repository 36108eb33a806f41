package models

import "time"

// PlanType is the subscription tier governing feature limits.
type PlanType string

const (
	PlanFree  PlanType = "free"
	PlanBasic PlanType = "basic"
	PlanPro   PlanType = "pro"
)

// SubscriptionStatus mirrors Stripe's canonical subscription status enum.
type SubscriptionStatus string

const (
	StatusIncomplete        SubscriptionStatus = "incomplete"
	StatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	StatusTrialing          SubscriptionStatus = "trialing"
	StatusActive            SubscriptionStatus = "active"
	StatusPastDue           SubscriptionStatus = "past_due"
	StatusCanceled          SubscriptionStatus = "canceled"
	StatusUnpaid            SubscriptionStatus = "unpaid"
	StatusPaused            SubscriptionStatus = "paused"
)

// BillingStatus tracks payment-specific failure state layered on top of the
// lifecycle Status. A nil pointer means no billing problem.
type BillingStatus string

const (
	BillingPastDue  BillingStatus = "past_due"
	BillingUnpaid   BillingStatus = "unpaid"
	BillingCanceled BillingStatus = "canceled"
)

// Subscription is the per-user subscription record. At most one row exists per
// user; it is mutated only through named lifecycle transitions and deleted
// only by the GDPR hard-delete pipeline.
type Subscription struct {
	UserID               string             `json:"user_id"`
	PlanType             PlanType           `json:"plan_type"`
	Status               SubscriptionStatus `json:"status"`
	BillingStatus        *BillingStatus     `json:"billing_status"`
	CurrentPeriodStart   *time.Time         `json:"current_period_start"`
	CurrentPeriodEnd     *time.Time         `json:"current_period_end"`
	TrialEnd             *time.Time         `json:"trial_end"`
	CancelAtPeriodEnd    bool               `json:"cancel_at_period_end"`
	HasUsedTrial         bool               `json:"has_used_trial"`
	StripeCustomerID     *string            `json:"-"`
	StripeSubscriptionID *string            `json:"-"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// BillingStatusIs reports whether the record's billing status equals s.
// Safe on a nil receiver and a nil BillingStatus.
func (sub *Subscription) BillingStatusIs(s BillingStatus) bool {
	return sub != nil && sub.BillingStatus != nil && *sub.BillingStatus == s
}
