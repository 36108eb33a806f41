package subscription

import (
	"time"

	"finwise/api/models"
)

// Transition names one of the fixed lifecycle transitions. Transitions are
// triggered only by externally verified events (Stripe webhooks, or a user
// action confirmed through Stripe checkout), never by direct client input.
type Transition string

// DefaultTrialDays is the trial length granted by trial_start when Stripe has
// not supplied an explicit trial end.
const DefaultTrialDays = 14

const (
	TrialStart       Transition = "trial_start"
	TrialEndSuccess  Transition = "trial_end_success"
	TrialEndFailed   Transition = "trial_end_failed"
	PaymentFailed    Transition = "payment_failed"
	PaymentSucceeded Transition = "payment_succeeded"
	ManualCancel     Transition = "manual_cancel"
	PeriodEnd        Transition = "period_end"
	StripeDeleted    Transition = "stripe_deleted"
)

// Input carries a transition plus any provider-synced fields that should land
// in the same atomic write. Optional fields are pointers; nil leaves the
// current value untouched.
type Input struct {
	Transition Transition

	// Synced from the Stripe subscription object when the webhook carries it.
	PlanType             *models.PlanType
	CurrentPeriodStart   *time.Time
	CurrentPeriodEnd     *time.Time
	TrialEnd             *time.Time
	CancelAtPeriodEnd    *bool
	StripeCustomerID     *string
	StripeSubscriptionID *string
}

// Apply computes the full successor record for one transition. It is pure:
// callers load the current record, call Apply, and persist the result in a
// single transaction. Applying the same transition twice in a row yields the
// same record, which is what makes at-least-once webhook delivery safe.
//
// A nil current record is treated as the absent-record default (free plan);
// only TrialStart and provider-synced transitions are expected to create rows
// that way. has_used_trial is sticky: no transition ever clears it.
func Apply(current *models.Subscription, in Input, now time.Time) models.Subscription {
	var next models.Subscription
	if current != nil {
		next = *current
	} else {
		next = models.Subscription{
			PlanType: models.PlanFree,
			Status:   models.StatusActive,
		}
	}

	applySync(&next, in)

	switch in.Transition {
	case TrialStart:
		next.PlanType = models.PlanBasic
		next.Status = models.StatusTrialing
		next.BillingStatus = nil
		next.HasUsedTrial = true
		if next.TrialEnd == nil {
			end := now.Add(DefaultTrialDays * 24 * time.Hour)
			next.TrialEnd = &end
			next.CurrentPeriodStart = &now
			next.CurrentPeriodEnd = &end
		}

	case TrialEndSuccess:
		next.Status = models.StatusActive
		next.BillingStatus = nil

	case TrialEndFailed:
		// Trial is retained while Stripe retries the first payment.
		next.Status = models.StatusTrialing
		next.BillingStatus = billing(models.BillingPastDue)

	case PaymentFailed:
		next.BillingStatus = billing(models.BillingPastDue)

	case PaymentSucceeded:
		next.Status = models.StatusActive
		next.BillingStatus = nil

	case ManualCancel:
		next.BillingStatus = billing(models.BillingCanceled)
		next.CancelAtPeriodEnd = true

	case PeriodEnd:
		// Precondition: only fires on records stuck in a payment-failure or
		// canceled billing state. Rechecked here so a sweep racing a recovery
		// webhook cannot downgrade a freshly paid subscription.
		if !next.BillingStatusIs(models.BillingPastDue) && !next.BillingStatusIs(models.BillingCanceled) {
			break
		}
		next.PlanType = models.PlanFree
		next.Status = models.StatusActive
		next.BillingStatus = billing(models.BillingUnpaid)
		next.CancelAtPeriodEnd = false

	case StripeDeleted:
		next.PlanType = models.PlanFree
		next.Status = models.StatusActive
		next.BillingStatus = billing(models.BillingCanceled)
		next.CancelAtPeriodEnd = false
	}

	if current != nil && current.HasUsedTrial {
		next.HasUsedTrial = true
	}
	return next
}

// EligibleForPeriodEnd reports whether the record qualifies for the
// period_end transition: the billing period has elapsed while the record was
// stuck in a payment-failure or canceled billing state. The elapsed-period
// condition is checked here explicitly rather than assumed from the caller.
func EligibleForPeriodEnd(sub *models.Subscription, now time.Time) bool {
	if sub == nil || sub.CurrentPeriodEnd == nil {
		return false
	}
	if !sub.BillingStatusIs(models.BillingPastDue) && !sub.BillingStatusIs(models.BillingCanceled) {
		return false
	}
	return !sub.CurrentPeriodEnd.After(now)
}

func applySync(next *models.Subscription, in Input) {
	if in.PlanType != nil {
		next.PlanType = *in.PlanType
	}
	if in.CurrentPeriodStart != nil {
		next.CurrentPeriodStart = in.CurrentPeriodStart
	}
	if in.CurrentPeriodEnd != nil {
		next.CurrentPeriodEnd = in.CurrentPeriodEnd
	}
	if in.TrialEnd != nil {
		next.TrialEnd = in.TrialEnd
	}
	if in.CancelAtPeriodEnd != nil {
		next.CancelAtPeriodEnd = *in.CancelAtPeriodEnd
	}
	if in.StripeCustomerID != nil {
		next.StripeCustomerID = in.StripeCustomerID
	}
	if in.StripeSubscriptionID != nil {
		next.StripeSubscriptionID = in.StripeSubscriptionID
	}
}

func billing(s models.BillingStatus) *models.BillingStatus {
	return &s
}
