package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const debitSQL = `
UPDATE accounts
SET balance = CASE WHEN unlimited THEN balance ELSE balance - $2 END,
    updated_at = NOW()
WHERE id = $1 AND (unlimited OR balance >= $2)
RETURNING balance;
`

const creditSQL = `
UPDATE accounts
SET balance = balance + $2, updated_at = NOW()
WHERE id = $1
RETURNING balance;
`

// UpsertAccount creates the account for a phone number with the starting
// grant, or refreshes identity fields if it already exists. The balance of
// an existing account is never reset.
func (r *PostgresRepository) UpsertAccount(ctx context.Context, id, phoneNumber string, startingGrant int64) (*Account, error) {
	const q = `
INSERT INTO accounts (id, phone_number, balance, unlimited)
VALUES ($1, $2, $3, FALSE)
ON CONFLICT (id) DO UPDATE SET
    phone_number = EXCLUDED.phone_number,
    updated_at = NOW()
RETURNING id, phone_number, balance, unlimited, push_token, created_at, updated_at;
`
	row := r.pool.QueryRow(ctx, q, id, phoneNumber, startingGrant)
	var a Account
	if err := row.Scan(&a.ID, &a.PhoneNumber, &a.Balance, &a.Unlimited, &a.PushToken, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert account: %w", err)
	}
	return &a, nil
}

// GetAccount returns the account by identifier.
func (r *PostgresRepository) GetAccount(ctx context.Context, id string) (*Account, error) {
	const q = `
SELECT id, phone_number, balance, unlimited, push_token, created_at, updated_at
FROM accounts
WHERE id = $1
LIMIT 1;
`
	return r.scanAccount(r.pool.QueryRow(ctx, q, id))
}

// GetAccountByPhone returns the account registered for a normalized phone number.
func (r *PostgresRepository) GetAccountByPhone(ctx context.Context, phoneNumber string) (*Account, error) {
	const q = `
SELECT id, phone_number, balance, unlimited, push_token, created_at, updated_at
FROM accounts
WHERE phone_number = $1
LIMIT 1;
`
	return r.scanAccount(r.pool.QueryRow(ctx, q, phoneNumber))
}

func (r *PostgresRepository) scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	if err := row.Scan(&a.ID, &a.PhoneNumber, &a.Balance, &a.Unlimited, &a.PushToken, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

// TryDebit atomically subtracts amount from the balance, failing when funds
// are insufficient. Unlimited accounts always succeed with their balance
// untouched. Returns the balance after the debit.
func (r *PostgresRepository) TryDebit(ctx context.Context, id string, amount int64) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, debitSQL, id, amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, r.debitFailure(ctx, id)
	}
	if err != nil {
		return 0, fmt.Errorf("debit account: %w", err)
	}
	return balance, nil
}

// debitFailure distinguishes a missing account from an insufficient balance
// after a conditional debit matched no row.
func (r *PostgresRepository) debitFailure(ctx context.Context, id string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1);`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check account exists: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrInsufficientFunds
}

// Credit atomically adds amount to the balance and returns the new balance.
func (r *PostgresRepository) Credit(ctx context.Context, id string, amount int64) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, creditSQL, id, amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("credit account: %w", err)
	}
	return balance, nil
}

// Transfer moves amount between two accounts inside a single transaction, so
// a credit failure rolls the debit back.
func (r *PostgresRepository) Transfer(ctx context.Context, senderID, recipientID string, amount int64) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		var senderBalance int64
		err := tx.QueryRow(ctx, debitSQL, senderID, amount).Scan(&senderBalance)
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1);`, senderID).Scan(&exists); err != nil {
				return fmt.Errorf("check sender exists: %w", err)
			}
			if !exists {
				return ErrNotFound
			}
			return ErrInsufficientFunds
		}
		if err != nil {
			return fmt.Errorf("debit sender: %w", err)
		}

		var recipientBalance int64
		err = tx.QueryRow(ctx, creditSQL, recipientID, amount).Scan(&recipientBalance)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("credit recipient: %w", err)
		}
		return nil
	})
}

// SetUnlimited flips the unlimited flag for an account.
func (r *PostgresRepository) SetUnlimited(ctx context.Context, id string, unlimited bool) error {
	const q = `UPDATE accounts SET unlimited = $2, updated_at = NOW() WHERE id = $1;`
	ct, err := r.pool.Exec(ctx, q, id, unlimited)
	if err != nil {
		return fmt.Errorf("set unlimited: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPushToken stores the device push token for an account.
func (r *PostgresRepository) SetPushToken(ctx context.Context, id, token string) error {
	const q = `UPDATE accounts SET push_token = $2, updated_at = NOW() WHERE id = $1;`
	ct, err := r.pool.Exec(ctx, q, id, token)
	if err != nil {
		return fmt.Errorf("set push token: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
