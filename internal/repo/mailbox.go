package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DepositMailbox writes the payload into the recipient's single mailbox
// slot, overwriting whatever was there. Last writer wins.
func (r *PostgresRepository) DepositMailbox(ctx context.Context, phoneNumber string, item MailboxItem) error {
	const q = `
INSERT INTO mailboxes (phone_number, item_kind, message, sender_ref, state, received_at)
VALUES ($1, $2, $3, $4, 'pending', NOW())
ON CONFLICT (phone_number) DO UPDATE SET
    item_kind = EXCLUDED.item_kind,
    message = EXCLUDED.message,
    sender_ref = EXCLUDED.sender_ref,
    state = 'pending',
    received_at = NOW();
`
	if _, err := r.pool.Exec(ctx, q, phoneNumber, item.ItemKind, item.Message, item.SenderRef); err != nil {
		return fmt.Errorf("deposit mailbox: %w", err)
	}
	return nil
}

// TakeMailbox atomically flips a pending slot to seen and returns its
// payload. Only the first reader after a deposit gets the item; everyone
// else observes an empty mailbox until the next deposit.
func (r *PostgresRepository) TakeMailbox(ctx context.Context, phoneNumber string) (*MailboxItem, error) {
	const q = `
UPDATE mailboxes
SET state = 'seen'
WHERE phone_number = $1 AND state = 'pending'
RETURNING item_kind, message, sender_ref, received_at;
`
	var item MailboxItem
	err := r.pool.QueryRow(ctx, q, phoneNumber).Scan(&item.ItemKind, &item.Message, &item.SenderRef, &item.ReceivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("take mailbox: %w", err)
	}
	return &item, nil
}

// ClearMailbox removes the slot regardless of its state.
func (r *PostgresRepository) ClearMailbox(ctx context.Context, phoneNumber string) error {
	const q = `DELETE FROM mailboxes WHERE phone_number = $1;`
	if _, err := r.pool.Exec(ctx, q, phoneNumber); err != nil {
		return fmt.Errorf("clear mailbox: %w", err)
	}
	return nil
}

// AppendMemory stores a payload into the user's append-only memory bank.
func (r *PostgresRepository) AppendMemory(ctx context.Context, phoneNumber, itemKind, message string) error {
	const q = `
INSERT INTO memory_bank (id, phone_number, item_kind, message)
VALUES ($1, $2, $3, $4);
`
	if _, err := r.pool.Exec(ctx, q, uuid.NewString(), phoneNumber, itemKind, message); err != nil {
		return fmt.Errorf("append memory: %w", err)
	}
	return nil
}

// ListMemory returns the memory bank history for a user in insertion order.
// The seq tiebreak keeps entries saved within the same timestamp tick stable.
func (r *PostgresRepository) ListMemory(ctx context.Context, phoneNumber string, limit int) ([]MemoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT id, phone_number, item_kind, message, saved_at
FROM memory_bank
WHERE phone_number = $1
ORDER BY saved_at ASC, seq ASC
LIMIT $2;
`
	rows, err := r.pool.Query(ctx, q, phoneNumber, limit)
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
