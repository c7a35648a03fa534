package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

var (
	// ErrSourceUnavailable means the debited account is missing or not active.
	ErrSourceUnavailable = errors.New("source account unavailable")

	// ErrDestinationUnavailable means the credited account is missing or not active.
	ErrDestinationUnavailable = errors.New("destination account unavailable")

	// ErrInsufficientFunds means the debit would take the balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")
)
