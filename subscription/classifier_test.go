package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"finwise/api/models"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func billingPtr(s models.BillingStatus) *models.BillingStatus { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func TestHasActiveAccessByStatus(t *testing.T) {
	tests := []struct {
		status models.SubscriptionStatus
		want   bool
	}{
		{models.StatusActive, true},
		{models.StatusTrialing, true},
		{models.StatusIncomplete, true},
		{models.StatusPaused, true},
		{models.StatusCanceled, false},
		{models.StatusUnpaid, false},
		{models.StatusIncompleteExpired, false},
		{models.StatusPastDue, false},
		{models.SubscriptionStatus("something_new"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			sub := &models.Subscription{
				UserID:   "u1",
				PlanType: models.PlanPro,
				Status:   tt.status,
			}
			assert.Equal(t, tt.want, HasActiveAccess(sub))
		})
	}
}

func TestHasActiveAccessNilRecord(t *testing.T) {
	assert.False(t, HasActiveAccess(nil))
}

func TestHasActiveAccessPaymentIssueRevokesAccess(t *testing.T) {
	// Scenario: active pro subscription with a past_due billing status.
	sub := &models.Subscription{
		UserID:        "u1",
		PlanType:      models.PlanPro,
		Status:        models.StatusActive,
		BillingStatus: billingPtr(models.BillingPastDue),
	}
	assert.False(t, HasActiveAccess(sub))

	sub.BillingStatus = billingPtr(models.BillingUnpaid)
	assert.False(t, HasActiveAccess(sub))
}

func TestHasActiveAccessCancelAtPeriodEnd(t *testing.T) {
	sub := &models.Subscription{
		UserID:            "u1",
		PlanType:          models.PlanPro,
		Status:            models.StatusActive,
		BillingStatus:     billingPtr(models.BillingCanceled),
		CancelAtPeriodEnd: true,
	}
	// Canceled-at-period-end keeps access until the period actually ends.
	assert.True(t, HasActiveAccess(sub))
}

func TestHasActiveAccessFreePlanRecord(t *testing.T) {
	// A free-plan record grants no paid access even though status is active.
	sub := &models.Subscription{UserID: "u1", PlanType: models.PlanFree, Status: models.StatusActive}
	assert.False(t, HasActiveAccess(sub))
	assert.True(t, IsFreePlan(sub))
}

func TestIsFreePlan(t *testing.T) {
	assert.True(t, IsFreePlan(nil))
	assert.True(t, IsFreePlan(&models.Subscription{PlanType: models.PlanFree, Status: models.StatusActive}))
	assert.True(t, IsFreePlan(&models.Subscription{PlanType: models.PlanPro, Status: models.StatusCanceled}))
	assert.False(t, IsFreePlan(&models.Subscription{PlanType: models.PlanBasic, Status: models.StatusActive}))
}

func TestIsActive(t *testing.T) {
	assert.False(t, IsActive(nil))
	assert.True(t, IsActive(&models.Subscription{Status: models.StatusActive}))
	assert.True(t, IsActive(&models.Subscription{Status: models.StatusTrialing}))
	assert.False(t, IsActive(&models.Subscription{Status: models.StatusPastDue}))
}

func TestTrialDaysLeft(t *testing.T) {
	tests := []struct {
		name     string
		sub      *models.Subscription
		want     int
		active   bool
		expiring bool
	}{
		{
			name: "two days left",
			sub: &models.Subscription{
				Status:   models.StatusTrialing,
				TrialEnd: timePtr(testNow.Add(48 * time.Hour)),
			},
			want: 2, active: true, expiring: true,
		},
		{
			name: "partial day rounds up",
			sub: &models.Subscription{
				Status:   models.StatusTrialing,
				TrialEnd: timePtr(testNow.Add(30 * time.Hour)),
			},
			want: 2, active: true, expiring: true,
		},
		{
			name: "well outside warning window",
			sub: &models.Subscription{
				Status:   models.StatusTrialing,
				TrialEnd: timePtr(testNow.Add(10 * 24 * time.Hour)),
			},
			want: 10, active: true, expiring: false,
		},
		{
			name: "trial already over",
			sub: &models.Subscription{
				Status:   models.StatusTrialing,
				TrialEnd: timePtr(testNow.Add(-time.Hour)),
			},
			want: 0, active: false, expiring: false,
		},
		{
			name: "not trialing",
			sub: &models.Subscription{
				Status:   models.StatusActive,
				TrialEnd: timePtr(testNow.Add(48 * time.Hour)),
			},
			want: 0, active: false, expiring: false,
		},
		{
			name: "trialing without trial end",
			sub:  &models.Subscription{Status: models.StatusTrialing},
			want: 0, active: false, expiring: false,
		},
		{name: "nil record", sub: nil, want: 0, active: false, expiring: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrialDaysLeft(tt.sub, testNow))
			assert.Equal(t, tt.active, IsTrialActive(tt.sub, testNow))
			assert.Equal(t, tt.expiring, IsTrialExpiringSoon(tt.sub, testNow, DefaultTrialWarnDays))
		})
	}
}

func TestHasPaymentIssue(t *testing.T) {
	assert.False(t, HasPaymentIssue(nil))
	assert.False(t, HasPaymentIssue(&models.Subscription{Status: models.StatusActive}))
	assert.True(t, HasPaymentIssue(&models.Subscription{BillingStatus: billingPtr(models.BillingPastDue)}))
	assert.True(t, HasPaymentIssue(&models.Subscription{BillingStatus: billingPtr(models.BillingUnpaid)}))
	assert.False(t, HasPaymentIssue(&models.Subscription{BillingStatus: billingPtr(models.BillingCanceled)}))
}

// Classifier totality: no combination of values may panic, and access plus
// plan classification always produce an answer.
func TestClassifierTotality(t *testing.T) {
	statuses := []models.SubscriptionStatus{
		models.StatusIncomplete, models.StatusIncompleteExpired, models.StatusTrialing,
		models.StatusActive, models.StatusPastDue, models.StatusCanceled,
		models.StatusUnpaid, models.StatusPaused, models.SubscriptionStatus("bogus"),
	}
	billings := []*models.BillingStatus{
		nil, billingPtr(models.BillingPastDue), billingPtr(models.BillingUnpaid),
		billingPtr(models.BillingCanceled), billingPtr(models.BillingStatus("bogus")),
	}
	plans := []models.PlanType{models.PlanFree, models.PlanBasic, models.PlanPro}
	trialEnds := []*time.Time{nil, timePtr(testNow.Add(24 * time.Hour)), timePtr(testNow.Add(-24 * time.Hour))}

	for _, st := range statuses {
		for _, bs := range billings {
			for _, pl := range plans {
				for _, te := range trialEnds {
					for _, cape := range []bool{false, true} {
						sub := &models.Subscription{
							UserID: "u1", PlanType: pl, Status: st,
							BillingStatus: bs, TrialEnd: te, CancelAtPeriodEnd: cape,
						}
						assert.NotPanics(t, func() {
							HasActiveAccess(sub)
							IsFreePlan(sub)
							SelectBanner(sub, testNow)
						})
					}
				}
			}
		}
	}
}
