package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"finwise/api/models"
)

// TransactionStore handles CRUD on ledger transactions.
type TransactionStore struct {
	conn *sql.DB
}

func NewTransactionStore(conn *sql.DB) *TransactionStore {
	return &TransactionStore{conn: conn}
}

func (s *TransactionStore) Create(ctx context.Context, txn *models.Transaction) (*models.Transaction, error) {
	txn.ID = uuid.NewString()

	err := s.conn.QueryRowContext(ctx, `
		INSERT INTO transactions (id, account_id, user_id, amount, category, description, occurred_at)
		SELECT $1, $2, $3, $4, $5, $6, $7
		WHERE EXISTS (SELECT 1 FROM accounts WHERE id = $2 AND user_id = $3)
		RETURNING created_at`,
		txn.ID, txn.AccountID, txn.UserID, txn.Amount, txn.Category, txn.Description, txn.OccurredAt,
	).Scan(&txn.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: account %s", ErrNotFound, txn.AccountID)
	}
	if err != nil {
		return nil, fmt.Errorf("error creating transaction for user %s: %w", txn.UserID, err)
	}
	return txn, nil
}

// ListByUserID returns the user's most recent transactions, optionally
// filtered by account, newest first.
func (s *TransactionStore) ListByUserID(ctx context.Context, userID, accountID string, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, account_id, user_id, amount, category, description, occurred_at, created_at
		FROM transactions WHERE user_id = $1`
	args := []interface{}{userID}
	if accountID != "" {
		query += ` AND account_id = $2`
		args = append(args, accountID)
	}
	query += fmt.Sprintf(` ORDER BY occurred_at DESC LIMIT %d`, limit)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing transactions for user %s: %w", userID, err)
	}
	defer rows.Close()

	txns := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.UserID, &t.Amount, &t.Category,
			&t.Description, &t.OccurredAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func (s *TransactionStore) Update(ctx context.Context, userID, txnID string, amount float64, category, description string, occurredAt time.Time) error {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE transactions SET amount = $1, category = $2, description = $3, occurred_at = $4
		WHERE id = $5 AND user_id = $6`,
		amount, category, description, occurredAt, txnID, userID)
	if err != nil {
		return fmt.Errorf("error updating transaction %s: %w", txnID, err)
	}
	return requireRow(res, txnID)
}

func (s *TransactionStore) Delete(ctx context.Context, userID, txnID string) error {
	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = $1 AND user_id = $2`, txnID, userID)
	if err != nil {
		return fmt.Errorf("error deleting transaction %s: %w", txnID, err)
	}
	return requireRow(res, txnID)
}
