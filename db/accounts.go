package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"finwise/api/models"
)

// AccountStore handles CRUD on financial accounts.
type AccountStore struct {
	conn *sql.DB
}

func NewAccountStore(conn *sql.DB) *AccountStore {
	return &AccountStore{conn: conn}
}

func (s *AccountStore) Create(ctx context.Context, userID, name, accountType, currency string, balance float64) (*models.Account, error) {
	account := &models.Account{
		ID:       uuid.NewString(),
		UserID:   userID,
		Name:     name,
		Type:     accountType,
		Currency: currency,
		Balance:  balance,
	}

	err := s.conn.QueryRowContext(ctx, `
		INSERT INTO accounts (id, user_id, name, type, currency, balance)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		account.ID, userID, name, accountType, currency, balance,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("error creating account for user %s: %w", userID, err)
	}
	return account, nil
}

func (s *AccountStore) ListByUserID(ctx context.Context, userID string) ([]models.Account, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, user_id, name, type, currency, balance, created_at, updated_at
		FROM accounts WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing accounts for user %s: %w", userID, err)
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Type, &a.Currency,
			&a.Balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// Update modifies an account only when it belongs to userID.
func (s *AccountStore) Update(ctx context.Context, userID, accountID, name string, balance float64) error {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE accounts SET name = $1, balance = $2, updated_at = $3
		WHERE id = $4 AND user_id = $5`,
		name, balance, time.Now().UTC(), accountID, userID)
	if err != nil {
		return fmt.Errorf("error updating account %s: %w", accountID, err)
	}
	return requireRow(res, accountID)
}

func (s *AccountStore) Delete(ctx context.Context, userID, accountID string) error {
	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM accounts WHERE id = $1 AND user_id = $2`, accountID, userID)
	if err != nil {
		return fmt.Errorf("error deleting account %s: %w", accountID, err)
	}
	return requireRow(res, accountID)
}

// ErrNotFound is returned when a row-scoped update or delete matches nothing,
// either because the id is unknown or it belongs to a different user.
var ErrNotFound = fmt.Errorf("record not found")

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
