package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"finwise/api/models"
	"finwise/api/subscription"
)

const subscriptionColumns = `user_id, plan_type, status, billing_status,
		current_period_start, current_period_end, trial_end,
		cancel_at_period_end, has_used_trial,
		stripe_customer_id, stripe_subscription_id, created_at, updated_at`

// SubscriptionStore owns all writes to the subscriptions table. Reads are
// free for anyone; every lifecycle mutation goes through ApplyTransition so
// partial-field races cannot happen.
type SubscriptionStore struct {
	conn *sql.DB

	// now is swappable in tests.
	now func() time.Time
}

func NewSubscriptionStore(conn *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{conn: conn, now: time.Now}
}

// GetByUserID returns the user's subscription record, or (nil, nil) when the
// user has no row. Callers treat the absent record as the free-plan default.
func (s *SubscriptionStore) GetByUserID(ctx context.Context, userID string) (*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1`
	return scanSubscription(s.conn.QueryRowContext(ctx, query, userID))
}

// GetUserIDByCustomerID resolves a Stripe customer id to the owning user.
// Returns an error when no linkage exists; webhook deliveries must fail loud
// in that case so Stripe retries them.
func (s *SubscriptionStore) GetUserIDByCustomerID(ctx context.Context, customerID string) (string, error) {
	var userID string
	err := s.conn.QueryRowContext(ctx,
		`SELECT user_id FROM subscriptions WHERE stripe_customer_id = $1`, customerID,
	).Scan(&userID)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("no user linked to stripe customer %s", customerID)
	}
	if err != nil {
		return "", fmt.Errorf("error resolving stripe customer %s: %w", customerID, err)
	}
	return userID, nil
}

// ApplyTransition runs one lifecycle transition atomically: it locks the
// user's row, recomputes the full successor record from the fresh read, and
// writes it back in the same transaction. Concurrent transitions on the same
// user serialize on the row lock, so last-write-wins always operates on
// current state, never on stale in-memory copies.
func (s *SubscriptionStore) ApplyTransition(ctx context.Context, userID string, in subscription.Input) (*models.Subscription, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("error starting transition for user %s: %w", userID, err)
	}
	defer tx.Rollback()

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1 FOR UPDATE`
	current, err := scanSubscription(tx.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("error reading subscription for user %s: %w", userID, err)
	}

	now := s.now().UTC()
	next := subscription.Apply(current, in, now)
	next.UserID = userID

	_, err = tx.ExecContext(ctx, `
		INSERT INTO subscriptions (
			user_id, plan_type, status, billing_status,
			current_period_start, current_period_end, trial_end,
			cancel_at_period_end, has_used_trial,
			stripe_customer_id, stripe_subscription_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		ON CONFLICT (user_id) DO UPDATE SET
			plan_type = EXCLUDED.plan_type,
			status = EXCLUDED.status,
			billing_status = EXCLUDED.billing_status,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			trial_end = EXCLUDED.trial_end,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			has_used_trial = EXCLUDED.has_used_trial,
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			updated_at = EXCLUDED.updated_at`,
		userID, next.PlanType, next.Status, billingValue(next.BillingStatus),
		next.CurrentPeriodStart, next.CurrentPeriodEnd, next.TrialEnd,
		next.CancelAtPeriodEnd, next.HasUsedTrial,
		next.StripeCustomerID, next.StripeSubscriptionID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("error writing subscription for user %s: %w", userID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing transition for user %s: %w", userID, err)
	}

	next.UpdatedAt = now
	return &next, nil
}

// ListPeriodEndCandidates returns the user ids whose billing period has
// elapsed while billing_status was stuck in past_due or canceled. The
// period-end sweeper feeds these through ApplyTransition one by one.
func (s *SubscriptionStore) ListPeriodEndCandidates(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT user_id FROM subscriptions
		WHERE billing_status IN ('past_due', 'canceled')
		  AND current_period_end IS NOT NULL
		  AND current_period_end <= $1`, now)
	if err != nil {
		return nil, fmt.Errorf("error listing period-end candidates: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, id)
	}
	return userIDs, rows.Err()
}

// DeleteByUserID removes the subscription row outright. Only the GDPR hard
// delete pipeline calls this; lifecycle cancellation never deletes rows.
func (s *SubscriptionStore) DeleteByUserID(ctx context.Context, userID string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM subscriptions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("error deleting subscription for user %s: %w", userID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var sub models.Subscription
	var billingStatus, stripeCustomer, stripeSubID sql.NullString
	var periodStart, periodEnd, trialEnd sql.NullTime
	err := row.Scan(
		&sub.UserID, &sub.PlanType, &sub.Status, &billingStatus,
		&periodStart, &periodEnd, &trialEnd,
		&sub.CancelAtPeriodEnd, &sub.HasUsedTrial,
		&stripeCustomer, &stripeSubID, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if billingStatus.Valid {
		bs := models.BillingStatus(billingStatus.String)
		sub.BillingStatus = &bs
	}
	if periodStart.Valid {
		sub.CurrentPeriodStart = &periodStart.Time
	}
	if periodEnd.Valid {
		sub.CurrentPeriodEnd = &periodEnd.Time
	}
	if trialEnd.Valid {
		sub.TrialEnd = &trialEnd.Time
	}
	if stripeCustomer.Valid {
		sub.StripeCustomerID = &stripeCustomer.String
	}
	if stripeSubID.Valid {
		sub.StripeSubscriptionID = &stripeSubID.String
	}
	return &sub, nil
}

func billingValue(bs *models.BillingStatus) interface{} {
	if bs == nil {
		return nil
	}
	return string(*bs)
}
