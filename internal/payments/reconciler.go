package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"giftgram/internal/repo"
)

var (
	// ErrUnknownAmount indicates the paid amount maps to no coin bundle.
	ErrUnknownAmount = errors.New("unrecognized payment amount")

	// ErrUnknownAccount indicates the checkout referenced a missing account.
	ErrUnknownAccount = errors.New("unknown purchase account")
)

// Outcome describes what reconciliation did with an event.
type Outcome string

const (
	// OutcomeApplied means the event credited coins.
	OutcomeApplied Outcome = "applied"
	// OutcomeSkipped means the event id was already processed.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeIgnored means the event type is not one we reconcile.
	OutcomeIgnored Outcome = "ignored"
)

const (
	eventCheckoutCompleted = "checkout.session.completed"
	paymentStatusPaid      = "paid"
)

// PurchaseApplier credits a provider event exactly once. The ledger service
// implements it on top of the repository and handles cache invalidation.
type PurchaseApplier interface {
	ApplyPurchase(ctx context.Context, eventID, accountID string, coins int64) (bool, error)
}

// Reconciler converts completed checkout events into coin credits, exactly
// once per provider event id.
type Reconciler struct {
	purchases PurchaseApplier
	bundles   map[int64]int64
	logger    *slog.Logger
}

// NewReconciler creates a reconciler crediting through the given applier.
// bundles maps a paid amount (provider minor units) to a coin bundle size.
func NewReconciler(purchases PurchaseApplier, bundles map[int64]int64, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		purchases: purchases,
		bundles:   bundles,
		logger:    logger.With("component", "reconciler"),
	}
}

// ProcessEvent reconciles one verified event. Redelivered events are skipped
// because the event id insert and the balance credit share a transaction.
func (r *Reconciler) ProcessEvent(ctx context.Context, event Event) (Outcome, error) {
	if event.Type != eventCheckoutCompleted {
		r.logger.Debug("ignoring webhook event", "type", event.Type)
		return OutcomeIgnored, nil
	}
	if event.ID == "" {
		return "", fmt.Errorf("event missing id")
	}

	session := event.Data.Object
	// Async payment methods complete the session before the money clears;
	// those sessions must not credit until the provider reports them paid.
	if session.PaymentStatus != paymentStatusPaid {
		r.logger.Info("ignoring unpaid checkout session",
			"event_id", event.ID, "payment_status", session.PaymentStatus)
		return OutcomeIgnored, nil
	}

	coins, ok := r.bundles[session.AmountTotal]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownAmount, session.AmountTotal)
	}
	if session.ClientReferenceID == "" {
		return "", fmt.Errorf("%w: empty client reference", ErrUnknownAccount)
	}

	applied, err := r.purchases.ApplyPurchase(ctx, event.ID, session.ClientReferenceID, coins)
	if errors.Is(err, repo.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", ErrUnknownAccount, session.ClientReferenceID)
	}
	if err != nil {
		return "", fmt.Errorf("apply purchase: %w", err)
	}
	if !applied {
		r.logger.Info("duplicate purchase event skipped", "event_id", event.ID)
		return OutcomeSkipped, nil
	}

	r.logger.Info("purchase credited",
		"event_id", event.ID,
		"account_id", session.ClientReferenceID,
		"coins", coins,
	)
	return OutcomeApplied, nil
}
