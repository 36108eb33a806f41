// Package subscription implements the subscription status engine: pure
// classifier functions over a subscription record, the banner selector, and
// the lifecycle transition state machine driven by Stripe events.
//
// Every function in this package is total and nil-safe. A nil record behaves
// like a free-plan user with no trial, except for access checks, which fail
// closed. Unknown status or billing-status values fall through to the safe
// default (no access, no banner) rather than erroring.
package subscription

import (
	"math"
	"time"

	"finwise/api/models"
)

// DefaultTrialWarnDays is the countdown threshold at which an expiring trial
// starts being surfaced to the user.
const DefaultTrialWarnDays = 3

// IsActive reports whether the subscription is in a healthy paid or trialing
// lifecycle state.
func IsActive(sub *models.Subscription) bool {
	if sub == nil {
		return false
	}
	return sub.Status == models.StatusActive || sub.Status == models.StatusTrialing
}

// IsTrialActive reports whether the user is currently inside a trial window.
func IsTrialActive(sub *models.Subscription, now time.Time) bool {
	if sub == nil || sub.Status != models.StatusTrialing || sub.TrialEnd == nil {
		return false
	}
	return sub.TrialEnd.After(now)
}

// TrialDaysLeft returns the number of whole days remaining in an active
// trial, rounding partial days up. Returns 0 when no trial is active.
func TrialDaysLeft(sub *models.Subscription, now time.Time) int {
	if !IsTrialActive(sub, now) {
		return 0
	}
	days := int(math.Ceil(sub.TrialEnd.Sub(now).Hours() / 24))
	if days < 0 {
		return 0
	}
	return days
}

// IsTrialExpiringSoon reports whether an active trial has thresholdDays or
// fewer days remaining.
func IsTrialExpiringSoon(sub *models.Subscription, now time.Time, thresholdDays int) bool {
	days := TrialDaysLeft(sub, now)
	return days > 0 && days <= thresholdDays
}

// HasPaymentIssue reports whether the record carries an unresolved payment
// failure.
func HasPaymentIssue(sub *models.Subscription) bool {
	return sub.BillingStatusIs(models.BillingPastDue) || sub.BillingStatusIs(models.BillingUnpaid)
}

// IsFreePlan reports whether the user is effectively on the free tier. A
// missing record and a canceled subscription both count as free.
func IsFreePlan(sub *models.Subscription) bool {
	if sub == nil {
		return true
	}
	return sub.PlanType == models.PlanFree || sub.Status == models.StatusCanceled
}

// HasActiveAccess is the authorization gate for paid features. It must be
// evaluated against a fresh read of the record on every access check; access
// decisions have financial consequences, so staleness is not acceptable.
//
// The free plan never grants paid access regardless of status. An unresolved
// payment failure revokes access even while the lifecycle status still reads
// active. cancel_at_period_end keeps access until the period actually ends.
// Anything unrecognized fails closed.
func HasActiveAccess(sub *models.Subscription) bool {
	if sub == nil || sub.PlanType == models.PlanFree {
		return false
	}
	if HasPaymentIssue(sub) {
		return false
	}
	switch sub.Status {
	case models.StatusActive, models.StatusTrialing, models.StatusIncomplete, models.StatusPaused:
		return true
	}
	return sub.CancelAtPeriodEnd
}
