package db

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finwise/api/models"
	"finwise/api/subscription"
)

var subCols = []string{
	"user_id", "plan_type", "status", "billing_status",
	"current_period_start", "current_period_end", "trial_end",
	"cancel_at_period_end", "has_used_trial",
	"stripe_customer_id", "stripe_subscription_id", "created_at", "updated_at",
}

func newStore(t *testing.T) (*SubscriptionStore, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	store := NewSubscriptionStore(conn)
	store.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return store, mock
}

func TestGetByUserIDNoRow(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectQuery("SELECT (.+) FROM subscriptions WHERE user_id").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(subCols))

	sub, err := store.GetByUserID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, sub)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByUserID(t *testing.T) {
	store, mock := newStore(t)
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM subscriptions WHERE user_id").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(subCols).AddRow(
			"u1", "pro", "active", "past_due",
			nil, nil, nil,
			false, true,
			"cus_1", "sub_1", created, created,
		))

	sub, err := store.GetByUserID(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, models.PlanPro, sub.PlanType)
	assert.True(t, sub.BillingStatusIs(models.BillingPastDue))
	require.NotNil(t, sub.StripeCustomerID)
	assert.Equal(t, "cus_1", *sub.StripeCustomerID)
}

// A transition locks the row, recomputes the full record from the fresh read
// and writes everything back inside one transaction.
func TestApplyTransitionReadComputeWrite(t *testing.T) {
	store, mock := newStore(t)
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM subscriptions WHERE user_id = (.+) FOR UPDATE").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(subCols).AddRow(
			"u1", "pro", "active", nil,
			nil, nil, nil,
			false, true,
			"cus_1", "sub_1", created, created,
		))
	mock.ExpectExec("INSERT INTO subscriptions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	next, err := store.ApplyTransition(context.Background(), "u1", subscription.Input{
		Transition: subscription.PaymentFailed,
	})
	require.NoError(t, err)
	assert.True(t, next.BillingStatusIs(models.BillingPastDue))
	assert.Equal(t, models.StatusActive, next.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// trial_start on a user with no existing row creates the record in the same
// transaction.
func TestApplyTransitionCreatesRow(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FOR UPDATE").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(subCols))
	mock.ExpectExec("INSERT INTO subscriptions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	next, err := store.ApplyTransition(context.Background(), "u1", subscription.Input{
		Transition: subscription.TrialStart,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PlanBasic, next.PlanType)
	assert.Equal(t, models.StatusTrialing, next.Status)
	assert.True(t, next.HasUsedTrial)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A failed write rolls the transaction back and surfaces the error so the
// webhook delivery is retried by Stripe.
func TestApplyTransitionWriteFailureRollsBack(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FOR UPDATE").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(subCols))
	mock.ExpectExec("INSERT INTO subscriptions").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := store.ApplyTransition(context.Background(), "u1", subscription.Input{
		Transition: subscription.PaymentSucceeded,
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPeriodEndCandidates(t *testing.T) {
	store, mock := newStore(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT user_id FROM subscriptions").
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u1").AddRow("u2"))

	ids, err := store.ListPeriodEndCandidates(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, ids)
}
