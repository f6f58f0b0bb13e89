package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ApplyPurchase credits coins for a payment-provider event exactly once.
// Recording the event id and crediting the balance happen in the same
// transaction. Returns false when the event was already processed.
func (r *PostgresRepository) ApplyPurchase(ctx context.Context, eventID, accountID string, coins int64) (bool, error) {
	applied := false
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		const insertQ = `
INSERT INTO purchase_events (event_id, account_id, coins)
VALUES ($1, $2, $3)
ON CONFLICT (event_id) DO NOTHING;
`
		ct, err := tx.Exec(ctx, insertQ, eventID, accountID, coins)
		if err != nil {
			return fmt.Errorf("record purchase event: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return nil
		}

		var balance int64
		err = tx.QueryRow(ctx, creditSQL, accountID, coins).Scan(&balance)
		if errors.Is(err, pgx.ErrNoRows) {
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

// GetPurchaseEvent retrieves a reconciled event by provider event id.
func (r *PostgresRepository) GetPurchaseEvent(ctx context.Context, eventID string) (*PurchaseEvent, error) {
	const q = `
SELECT event_id, account_id, coins, processed_at
FROM purchase_events
WHERE event_id = $1
LIMIT 1;
`
	var ev PurchaseEvent
	err := r.pool.QueryRow(ctx, q, eventID).Scan(&ev.EventID, &ev.AccountID, &ev.Coins, &ev.ProcessedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get purchase event: %w", err)
	}
	return &ev, nil
}
