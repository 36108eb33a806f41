package subscription

import (
	"fmt"
	"time"

	"finwise/api/models"
)

// BannerType identifies the single advisory notice shown to a user.
type BannerType string

const (
	BannerStartTrial       BannerType = "start_trial"
	BannerPaymentIssue     BannerType = "payment_issue"
	BannerTrialCountdown   BannerType = "trial_countdown"
	BannerCanceledEndsSoon BannerType = "canceled_ends_soon"
)

// Banner is the user-facing notice derived from a subscription record.
type Banner struct {
	Type    BannerType `json:"type"`
	Message string     `json:"message"`
}

// SelectBanner picks at most one banner for the given record. The priority
// order is a deliberate business decision and must not be reordered: a
// payment problem outranks an active trial countdown, because payment
// problems have to be surfaced even mid-trial.
//
// Returns nil when no banner applies. Never fails; unknown states yield nil.
func SelectBanner(sub *models.Subscription, now time.Time) *Banner {
	if sub == nil || sub.PlanType == models.PlanFree {
		return &Banner{
			Type:    BannerStartTrial,
			Message: "Start your free trial to unlock premium insights.",
		}
	}

	if sub.BillingStatusIs(models.BillingPastDue) {
		return &Banner{
			Type:    BannerPaymentIssue,
			Message: "We couldn't process your last payment. Please update your payment method.",
		}
	}

	if days := TrialDaysLeft(sub, now); sub.Status == models.StatusTrialing &&
		days > 0 && days <= DefaultTrialWarnDays {
		return &Banner{
			Type:    BannerTrialCountdown,
			Message: fmt.Sprintf("Your trial ends in %d %s. Add a payment method to keep access.", days, dayWord(days)),
		}
	}

	if sub.BillingStatusIs(models.BillingCanceled) && sub.PlanType != models.PlanFree {
		return &Banner{
			Type:    BannerCanceledEndsSoon,
			Message: "Your subscription is canceled and will end with the current billing period.",
		}
	}

	return nil
}

func dayWord(n int) string {
	if n == 1 {
		return "day"
	}
	return "days"
}
