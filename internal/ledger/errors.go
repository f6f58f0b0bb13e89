package ledger

import (
	"errors"

	"giftgram/internal/repo"
)

var (
	// ErrInsufficientFunds mirrors the store-level debit failure.
	ErrInsufficientFunds = repo.ErrInsufficientFunds

	// ErrInvalidRecipient indicates the target phone number has no account.
	ErrInvalidRecipient = errors.New("invalid recipient")

	// ErrInvalidAmount indicates a non-positive gift amount.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidCode indicates the unlock code did not match.
	ErrInvalidCode = errors.New("invalid unlock code")
)
