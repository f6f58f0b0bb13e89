package repo

import "time"

// Account represents the accounts table row.
type Account struct {
	ID          string
	PhoneNumber string
	Balance     int64
	Unlimited   bool
	PushToken   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MailboxItem is the payload held in a recipient's single-slot mailbox.
type MailboxItem struct {
	ItemKind   string
	Message    string
	SenderRef  string
	ReceivedAt time.Time
}

// MemoryEntry is one archived payload in a user's memory bank.
type MemoryEntry struct {
	ID          string
	PhoneNumber string
	ItemKind    string
	Message     string
	SavedAt     time.Time
}

// PurchaseEvent records an already reconciled payment-provider event.
type PurchaseEvent struct {
	EventID     string
	AccountID   string
	Coins       int64
	ProcessedAt time.Time
}
