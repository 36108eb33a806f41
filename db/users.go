package db

import (
	"context"
	"database/sql"
	"fmt"

	"finwise/api/models"
)

// UserStore handles the users table and the GDPR hard-delete pipeline.
type UserStore struct {
	conn *sql.DB
}

func NewUserStore(conn *sql.DB) *UserStore {
	return &UserStore{conn: conn}
}

// Ensure upserts the user row from verified JWT claims. Called on first
// authenticated request so foreign keys always have a target.
func (s *UserStore) Ensure(ctx context.Context, userID, email string) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO users (id, email, status)
		VALUES ($1, $2, 'active')
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email`,
		userID, email,
	)
	if err != nil {
		return fmt.Errorf("error ensuring user %s: %w", userID, err)
	}
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, userID string) (*models.User, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, email, status, created_at FROM users WHERE id = $1`, userID)

	user := &models.User{}
	err := row.Scan(&user.UserID, &user.Email, &user.Status, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found: %s", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("error getting user by ID %s: %w", userID, err)
	}
	return user, nil
}

// DeleteUserData removes all of a user's relational data in one transaction
// and marks the user row deleted. Returns the Stripe subscription id, if any,
// so the caller can cancel it upstream after the local delete commits.
func (s *UserStore) DeleteUserData(ctx context.Context, userID string) (stripeSubID *string, err error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	var subID sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT stripe_subscription_id FROM subscriptions WHERE user_id = $1`, userID,
	).Scan(&subID)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	err = nil

	if _, err = tx.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = $1`, userID); err != nil {
		return nil, err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM accounts WHERE user_id = $1`, userID); err != nil {
		return nil, err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM subscriptions WHERE user_id = $1`, userID); err != nil {
		return nil, err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE users SET status = 'deleted' WHERE id = $1`, userID); err != nil {
		return nil, err
	}

	if subID.Valid {
		stripeSubID = &subID.String
	}
	return stripeSubID, nil
}
