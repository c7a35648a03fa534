package services

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the auth and ledger services report.
type Kind string

const (
	KindInvalidInput        Kind = "invalid_input"
	KindInvalidCredentials  Kind = "invalid_credentials"
	KindAccountDisabled     Kind = "account_disabled"
	KindDeliveryFailed      Kind = "delivery_failed"
	KindChallengeNotFound   Kind = "challenge_not_found"
	KindChallengeExpired    Kind = "challenge_expired"
	KindChallengeMismatch   Kind = "challenge_mismatch"
	KindUnauthenticated     Kind = "unauthenticated"
	KindForbidden           Kind = "forbidden"
	KindMissingFields       Kind = "missing_fields"
	KindInvalidAmount       Kind = "invalid_amount"
	KindSameAccount         Kind = "same_account"
	KindSourceNotFound      Kind = "source_not_found"
	KindDestinationNotFound Kind = "destination_not_found"
	KindInsufficientFunds   Kind = "insufficient_funds"
	KindTransactionFailed   Kind = "transaction_failed"
	KindStoreUnavailable    Kind = "store_unavailable"
)

var defaultMessages = map[Kind]string{
	KindInvalidInput:        "missing required fields",
	KindInvalidCredentials:  "invalid credentials",
	KindAccountDisabled:     "account disabled",
	KindDeliveryFailed:      "failed to deliver verification code",
	KindChallengeNotFound:   "invalid code",
	KindChallengeExpired:    "code expired",
	KindChallengeMismatch:   "incorrect code",
	KindUnauthenticated:     "not authenticated",
	KindForbidden:           "admin access required",
	KindMissingFields:       "missing transfer fields",
	KindInvalidAmount:       "invalid amount",
	KindSameAccount:         "source and destination accounts are identical",
	KindSourceNotFound:      "invalid source account",
	KindDestinationNotFound: "invalid destination account",
	KindInsufficientFunds:   "insufficient funds",
	KindTransactionFailed:   "transaction failed",
	KindStoreUnavailable:    "database unavailable",
}

// Error is a classified service failure. Message is safe to show to clients;
// Err carries the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Message: defaultMessages[kind], Err: cause}
}

// KindOf returns the kind of a service error, or "" for anything else.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// MessageOf returns the client-facing message of a service error.
func MessageOf(err error) string {
	var se *Error
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return "internal error"
}
