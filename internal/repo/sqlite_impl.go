package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const sqliteDebitSQL = `
UPDATE accounts
SET balance = CASE WHEN unlimited THEN balance ELSE balance - ? END,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND (unlimited OR balance >= ?)
RETURNING balance;
`

const sqliteCreditSQL = `
UPDATE accounts
SET balance = balance + ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
RETURNING balance;
`

// -- Accounts --

func (r *SQLiteRepository) UpsertAccount(ctx context.Context, id, phoneNumber string, startingGrant int64) (*Account, error) {
	const q = `
INSERT INTO accounts (id, phone_number, balance, unlimited)
VALUES (?, ?, ?, 0)
ON CONFLICT (id) DO UPDATE SET
    phone_number = excluded.phone_number,
    updated_at = CURRENT_TIMESTAMP
RETURNING id, phone_number, balance, unlimited, push_token, created_at, updated_at;
`
	row := r.db.QueryRowContext(ctx, q, id, phoneNumber, startingGrant)
	var a Account
	if err := row.Scan(&a.ID, &a.PhoneNumber, &a.Balance, &a.Unlimited, &a.PushToken, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert account: %w", err)
	}
	return &a, nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id string) (*Account, error) {
	const q = `
SELECT id, phone_number, balance, unlimited, push_token, created_at, updated_at
FROM accounts
WHERE id = ?
LIMIT 1;
`
	return scanSQLiteAccount(r.db.QueryRowContext(ctx, q, id))
}

func (r *SQLiteRepository) GetAccountByPhone(ctx context.Context, phoneNumber string) (*Account, error) {
	const q = `
SELECT id, phone_number, balance, unlimited, push_token, created_at, updated_at
FROM accounts
WHERE phone_number = ?
LIMIT 1;
`
	return scanSQLiteAccount(r.db.QueryRowContext(ctx, q, phoneNumber))
}

func scanSQLiteAccount(row *sql.Row) (*Account, error) {
	var a Account
	if err := row.Scan(&a.ID, &a.PhoneNumber, &a.Balance, &a.Unlimited, &a.PushToken, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

func (r *SQLiteRepository) TryDebit(ctx context.Context, id string, amount int64) (int64, error) {
	var balance int64
	err := r.db.QueryRowContext(ctx, sqliteDebitSQL, amount, id, amount).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, r.debitFailure(ctx, id)
	}
	if err != nil {
		return 0, fmt.Errorf("debit account: %w", err)
	}
	return balance, nil
}

func (r *SQLiteRepository) debitFailure(ctx context.Context, id string) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE id = ? LIMIT 1;`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check account exists: %w", err)
	}
	return ErrInsufficientFunds
}

func (r *SQLiteRepository) Credit(ctx context.Context, id string, amount int64) (int64, error) {
	var balance int64
	err := r.db.QueryRowContext(ctx, sqliteCreditSQL, amount, id).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("credit account: %w", err)
	}
	return balance, nil
}

func (r *SQLiteRepository) Transfer(ctx context.Context, senderID, recipientID string, amount int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var senderBalance int64
		err := tx.QueryRowContext(ctx, sqliteDebitSQL, amount, senderID, amount).Scan(&senderBalance)
		if errors.Is(err, sql.ErrNoRows) {
			var one int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE id = ? LIMIT 1;`, senderID).Scan(&one)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("check sender exists: %w", err)
			}
			return ErrInsufficientFunds
		}
		if err != nil {
			return fmt.Errorf("debit sender: %w", err)
		}

		var recipientBalance int64
		err = tx.QueryRowContext(ctx, sqliteCreditSQL, amount, recipientID).Scan(&recipientBalance)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("credit recipient: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) SetUnlimited(ctx context.Context, id string, unlimited bool) error {
	const q = `UPDATE accounts SET unlimited = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?;`
	ct, err := r.db.ExecContext(ctx, q, unlimited, id)
	if err != nil {
		return fmt.Errorf("set unlimited: %w", err)
	}
	if n, _ := ct.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) SetPushToken(ctx context.Context, id, token string) error {
	const q = `UPDATE accounts SET push_token = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?;`
	ct, err := r.db.ExecContext(ctx, q, token, id)
	if err != nil {
		return fmt.Errorf("set push token: %w", err)
	}
	if n, _ := ct.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// -- Mailbox --

func (r *SQLiteRepository) DepositMailbox(ctx context.Context, phoneNumber string, item MailboxItem) error {
	const q = `
INSERT INTO mailboxes (phone_number, item_kind, message, sender_ref, state, received_at)
VALUES (?, ?, ?, ?, 'pending', CURRENT_TIMESTAMP)
ON CONFLICT (phone_number) DO UPDATE SET
    item_kind = excluded.item_kind,
    message = excluded.message,
    sender_ref = excluded.sender_ref,
    state = 'pending',
    received_at = CURRENT_TIMESTAMP;
`
	if _, err := r.db.ExecContext(ctx, q, phoneNumber, item.ItemKind, item.Message, item.SenderRef); err != nil {
		return fmt.Errorf("deposit mailbox: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) TakeMailbox(ctx context.Context, phoneNumber string) (*MailboxItem, error) {
	const q = `
UPDATE mailboxes
SET state = 'seen'
WHERE phone_number = ? AND state = 'pending'
RETURNING item_kind, message, sender_ref, received_at;
`
	var item MailboxItem
	err := r.db.QueryRowContext(ctx, q, phoneNumber).Scan(&item.ItemKind, &item.Message, &item.SenderRef, &item.ReceivedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("take mailbox: %w", err)
	}
	return &item, nil
}

func (r *SQLiteRepository) ClearMailbox(ctx context.Context, phoneNumber string) error {
	const q = `DELETE FROM mailboxes WHERE phone_number = ?;`
	if _, err := r.db.ExecContext(ctx, q, phoneNumber); err != nil {
		return fmt.Errorf("clear mailbox: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) AppendMemory(ctx context.Context, phoneNumber, itemKind, message string) error {
	const q = `
INSERT INTO memory_bank (id, phone_number, item_kind, message)
VALUES (?, ?, ?, ?);
`
	if _, err := r.db.ExecContext(ctx, q, uuid.NewString(), phoneNumber, itemKind, message); err != nil {
		return fmt.Errorf("append memory: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListMemory(ctx context.Context, phoneNumber string, limit int) ([]MemoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT id, phone_number, item_kind, message, saved_at
FROM memory_bank
WHERE phone_number = ?
ORDER BY saved_at ASC, rowid ASC
LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, phoneNumber, limit)
	if err != nil {
		return nil, fmt.Errorf("list memory: %w", err)
	}
	defer rows.Close()

	var entries []MemoryEntry
	for rows.Next() {
		var e MemoryEntry
		if err := rows.Scan(&e.ID, &e.PhoneNumber, &e.ItemKind, &e.Message, &e.SavedAt); err != nil {
			return nil, fmt.Errorf("scan memory entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memory entries: %w", err)
	}
	return entries, nil
}

// -- Purchases --

func (r *SQLiteRepository) ApplyPurchase(ctx context.Context, eventID, accountID string, coins int64) (bool, error) {
	applied := false
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		const insertQ = `
INSERT INTO purchase_events (event_id, account_id, coins)
VALUES (?, ?, ?)
ON CONFLICT (event_id) DO NOTHING;
`
		ct, err := tx.ExecContext(ctx, insertQ, eventID, accountID, coins)
		if err != nil {
			return fmt.Errorf("record purchase event: %w", err)
		}
		if n, _ := ct.RowsAffected(); n == 0 {
			return nil
		}

		var balance int64
		err = tx.QueryRowContext(ctx, sqliteCreditSQL, coins, accountID).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("credit purchase: %w", err)
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (r *SQLiteRepository) GetPurchaseEvent(ctx context.Context, eventID string) (*PurchaseEvent, error) {
	const q = `
SELECT event_id, account_id, coins, processed_at
FROM purchase_events
WHERE event_id = ?
LIMIT 1;
`
	var ev PurchaseEvent
	err := r.db.QueryRowContext(ctx, q, eventID).Scan(&ev.EventID, &ev.AccountID, &ev.Coins, &ev.ProcessedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get purchase event: %w", err)
	}
	return &ev, nil
}
