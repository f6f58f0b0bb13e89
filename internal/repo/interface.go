package repo

import (
	"context"
	"io/fs"
)

// Repository defines the interface for data persistence.
type Repository interface {
	// Lifecycle
	Close()
	Ping(ctx context.Context) error
	RunMigrations(ctx context.Context, filesystem fs.FS) error

	// Accounts
	UpsertAccount(ctx context.Context, id, phoneNumber string, startingGrant int64) (*Account, error)
	GetAccount(ctx context.Context, id string) (*Account, error)
	GetAccountByPhone(ctx context.Context, phoneNumber string) (*Account, error)
	TryDebit(ctx context.Context, id string, amount int64) (int64, error)
	Credit(ctx context.Context, id string, amount int64) (int64, error)
	Transfer(ctx context.Context, senderID, recipientID string, amount int64) error
	SetUnlimited(ctx context.Context, id string, unlimited bool) error
	SetPushToken(ctx context.Context, id, token string) error

	// Mailbox
	DepositMailbox(ctx context.Context, phoneNumber string, item MailboxItem) error
	TakeMailbox(ctx context.Context, phoneNumber string) (*MailboxItem, error)
	ClearMailbox(ctx context.Context, phoneNumber string) error
	AppendMemory(ctx context.Context, phoneNumber, itemKind, message string) error
	ListMemory(ctx context.Context, phoneNumber string, limit int) ([]MemoryEntry, error)

	// Purchases
	ApplyPurchase(ctx context.Context, eventID, accountID string, coins int64) (bool, error)
	GetPurchaseEvent(ctx context.Context, eventID string) (*PurchaseEvent, error)
}
