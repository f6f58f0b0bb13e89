package repo

import "errors"

var (
	// ErrNotFound indicates the referenced account does not exist.
	ErrNotFound = errors.New("account not found")

	// ErrInsufficientFunds indicates a debit would take the balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")
)
