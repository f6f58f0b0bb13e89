package ledger

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"giftgram/internal/cache"
	"giftgram/internal/identity"
	"giftgram/internal/metrics"
	"giftgram/internal/pricing"
	"giftgram/internal/push"
	"giftgram/internal/repo"
)

// UnlimitedBalance is the sentinel balance reported for unlimited accounts.
const UnlimitedBalance int64 = math.MaxInt64

const (
	balanceCacheKeyPrefix = "giftgram:balance:"
	notifyTimeout         = 15 * time.Second
)

// Notifier delivers a best-effort push notification to one device token.
type Notifier interface {
	Notify(ctx context.Context, token string, n push.Notification) error
}

// Config carries ledger policy knobs.
type Config struct {
	StartingGrant int64
	UnlockCode    string
	// AllowAutoVivify creates a zero-balance account when gifting to an
	// unregistered phone number instead of rejecting the gift.
	AllowAutoVivify bool
	BalanceCacheTTL time.Duration
}

// BalanceSnapshot is the cached/read view of an account balance.
type BalanceSnapshot struct {
	AccountID string `json:"accountId"`
	Balance   int64  `json:"balance"`
	Unlimited bool   `json:"unlimited"`
}

// Service orchestrates pricing, balance mutation, mailbox delivery and
// notification dispatch.
type Service struct {
	repository repo.Repository
	prices     *pricing.Table
	notifier   Notifier
	cache      *cache.Redis
	metrics    *metrics.Metrics
	logger     *slog.Logger
	cfg        Config
}

// New creates the ledger service. cache and notifier may be nil.
func New(repository repo.Repository, prices *pricing.Table, notifier Notifier, redis *cache.Redis, metricRegistry *metrics.Metrics, logger *slog.Logger, cfg Config) *Service {
	return &Service{
		repository: repository,
		prices:     prices,
		notifier:   notifier,
		cache:      redis,
		metrics:    metricRegistry,
		logger:     logger.With("component", "ledger"),
		cfg:        cfg,
	}
}

// Register creates the account for a phone number with the starting grant.
// Registering an existing number refreshes identity fields only.
func (s *Service) Register(ctx context.Context, phoneNumber string) (*repo.Account, error) {
	normalized := identity.NormalizePhone(phoneNumber)
	account, err := s.repository.UpsertAccount(ctx, identity.AccountID(phoneNumber), normalized, s.cfg.StartingGrant)
	if err != nil {
		return nil, fmt.Errorf("register account: %w", err)
	}
	s.invalidateBalance(ctx, account.ID)
	return account, nil
}

// Send prices the item, debits the sender, deposits the payload into the
// recipient's mailbox and dispatches a push notification out-of-band.
// Returns the sender's balance after the debit.
func (s *Service) Send(ctx context.Context, senderID, recipientPhone, itemKind, message string) (int64, error) {
	recipient, err := s.repository.GetAccountByPhone(ctx, identity.NormalizePhone(recipientPhone))
	if errors.Is(err, repo.ErrNotFound) {
		s.countSend("invalid_recipient")
		return 0, ErrInvalidRecipient
	}
	if err != nil {
		return 0, fmt.Errorf("resolve recipient: %w", err)
	}

	sender, err := s.repository.GetAccount(ctx, senderID)
	if errors.Is(err, repo.ErrNotFound) {
		return 0, err
	}
	if err != nil {
		return 0, fmt.Errorf("resolve sender: %w", err)
	}

	cost := s.prices.Cost(itemKind, message)

	newBalance, err := s.repository.TryDebit(ctx, senderID, cost)
	if errors.Is(err, repo.ErrInsufficientFunds) {
		s.countSend("insufficient_funds")
		return 0, ErrInsufficientFunds
	}
	if err != nil {
		return 0, fmt.Errorf("debit sender: %w", err)
	}

	item := repo.MailboxItem{
		ItemKind:  itemKind,
		Message:   message,
		SenderRef: senderID,
	}
	if err := s.repository.DepositMailbox(ctx, recipient.PhoneNumber, item); err != nil {
		// The debit already happened; compensate so funds are not lost.
		if _, creditErr := s.repository.Credit(ctx, senderID, cost); creditErr != nil {
			s.logger.Error("deposit failed and refund failed, balance needs manual reconciliation",
				"sender_id", senderID, "cost", cost, "deposit_error", err, "refund_error", creditErr)
		}
		s.countSend("deposit_failed")
		return 0, fmt.Errorf("deposit mailbox: %w", err)
	}

	s.invalidateBalance(ctx, senderID)
	s.countSend("ok")
	s.logger.Info("item sent", "sender_id", senderID, "kind", itemKind, "cost", cost)

	s.dispatchNotification(recipient)

	// Unlimited senders report the sentinel, matching the balance endpoint.
	if sender.Unlimited {
		newBalance = UnlimitedBalance
	}
	return newBalance, nil
}

// dispatchNotification fires the push asynchronously. Failures are logged
// and never affect the send outcome.
func (s *Service) dispatchNotification(recipient *repo.Account) {
	if s.notifier == nil || recipient.PushToken == nil || *recipient.PushToken == "" {
		return
	}
	token := *recipient.PushToken

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		err := s.notifier.Notify(ctx, token, push.Notification{
			Title: "Incoming gram!",
			Body:  "Someone sent you a gram",
			Sound: "ringtone.mp3",
			Route: "Received",
		})
		if errors.Is(err, push.ErrInvalidToken) {
			s.logger.Warn("skipping push, stored token invalid", "account_id", recipient.ID)
			return
		}
		if err != nil {
			s.logger.Warn("push notification failed", "account_id", recipient.ID, "error", err)
			if s.metrics != nil {
				s.metrics.Errors.WithLabelValues("push").Inc()
			}
		}
	}()
}

// Gift transfers coins between two accounts. Debit and credit run in one
// store transaction, so no debit survives a failed credit.
func (s *Service) Gift(ctx context.Context, senderID, recipientPhone string, amount int64) error {
	if amount <= 0 {
		s.countGift("invalid_amount")
		return ErrInvalidAmount
	}

	normalized := identity.NormalizePhone(recipientPhone)
	recipient, err := s.repository.GetAccountByPhone(ctx, normalized)
	if errors.Is(err, repo.ErrNotFound) {
		if !s.cfg.AllowAutoVivify {
			s.countGift("invalid_recipient")
			return ErrInvalidRecipient
		}
		// Explicit vivify policy: create an empty account for the target,
		// then run the normal transfer against it.
		recipient, err = s.repository.UpsertAccount(ctx, identity.AccountID(recipientPhone), normalized, 0)
		if err != nil {
			return fmt.Errorf("vivify recipient: %w", err)
		}
		s.logger.Info("auto-vivified gift recipient", "recipient_id", recipient.ID)
	} else if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}

	err = s.repository.Transfer(ctx, senderID, recipient.ID, amount)
	switch {
	case errors.Is(err, repo.ErrInsufficientFunds):
		s.countGift("insufficient_funds")
		return ErrInsufficientFunds
	case errors.Is(err, repo.ErrNotFound):
		s.countGift("not_found")
		return err
	case err != nil:
		return fmt.Errorf("transfer: %w", err)
	}

	s.invalidateBalance(ctx, senderID, recipient.ID)
	s.countGift("ok")
	s.logger.Info("coins gifted", "sender_id", senderID, "recipient_id", recipient.ID, "amount", amount)
	return nil
}

// ApplyPurchase credits a reconciled purchase exactly once and drops the
// stale cached balance. Returns false when the event was already processed.
func (s *Service) ApplyPurchase(ctx context.Context, eventID, accountID string, coins int64) (bool, error) {
	applied, err := s.repository.ApplyPurchase(ctx, eventID, accountID, coins)
	if err != nil {
		return false, err
	}
	if applied {
		s.invalidateBalance(ctx, accountID)
	}
	return applied, nil
}

// Balance returns the account's spendable balance, the sentinel for
// unlimited accounts. Served from cache when fresh.
func (s *Service) Balance(ctx context.Context, accountID string) (*BalanceSnapshot, error) {
	key := balanceCacheKeyPrefix + accountID
	if s.cache != nil {
		var cached BalanceSnapshot
		ok, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("balance cache read failed", "error", err)
		} else if ok {
			return &cached, nil
		}
	}

	account, err := s.repository.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	snapshot := &BalanceSnapshot{
		AccountID: account.ID,
		Balance:   account.Balance,
		Unlimited: account.Unlimited,
	}
	if account.Unlimited {
		snapshot.Balance = UnlimitedBalance
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, snapshot, s.cfg.BalanceCacheTTL); err != nil {
			s.logger.Warn("balance cache write failed", "error", err)
		}
	}
	return snapshot, nil
}

// Redeem flips the account to unlimited when the unlock code matches.
func (s *Service) Redeem(ctx context.Context, accountID, code string) error {
	if s.cfg.UnlockCode == "" || subtle.ConstantTimeCompare([]byte(code), []byte(s.cfg.UnlockCode)) != 1 {
		return ErrInvalidCode
	}
	if err := s.repository.SetUnlimited(ctx, accountID, true); err != nil {
		return err
	}
	s.invalidateBalance(ctx, accountID)
	s.logger.Info("account unlocked", "account_id", accountID)
	return nil
}

// TakeMailbox pops the pending payload for a phone number, if any. Only the
// first read after a deposit returns the item.
func (s *Service) TakeMailbox(ctx context.Context, phoneNumber string) (*repo.MailboxItem, error) {
	item, err := s.repository.TakeMailbox(ctx, identity.NormalizePhone(phoneNumber))
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		result := "empty"
		if item != nil {
			result = "delivered"
		}
		s.metrics.MailboxTakes.WithLabelValues(result).Inc()
	}
	return item, nil
}

// FlushMailbox explicitly empties the slot for a phone number.
func (s *Service) FlushMailbox(ctx context.Context, phoneNumber string) error {
	return s.repository.ClearMailbox(ctx, identity.NormalizePhone(phoneNumber))
}

// ArchiveMailbox copies a previously taken payload into the memory bank.
func (s *Service) ArchiveMailbox(ctx context.Context, phoneNumber, itemKind, message string) error {
	return s.repository.AppendMemory(ctx, identity.NormalizePhone(phoneNumber), itemKind, message)
}

// Memory returns the archived payload history for a phone number.
func (s *Service) Memory(ctx context.Context, phoneNumber string, limit int) ([]repo.MemoryEntry, error) {
	return s.repository.ListMemory(ctx, identity.NormalizePhone(phoneNumber), limit)
}

// RegisterPushToken stores the device token used for delivery notifications.
func (s *Service) RegisterPushToken(ctx context.Context, accountID, token string) error {
	if !push.ValidToken(token) {
		return push.ErrInvalidToken
	}
	return s.repository.SetPushToken(ctx, accountID, token)
}

func (s *Service) invalidateBalance(ctx context.Context, accountIDs ...string) {
	if s.cache == nil {
		return
	}
	keys := make([]string, 0, len(accountIDs))
	for _, id := range accountIDs {
		keys = append(keys, balanceCacheKeyPrefix+id)
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("balance cache invalidation failed", "error", err)
	}
}

func (s *Service) countSend(outcome string) {
	if s.metrics != nil {
		s.metrics.Sends.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) countGift(outcome string) {
	if s.metrics != nil {
		s.metrics.Gifts.WithLabelValues(outcome).Inc()
	}
}
