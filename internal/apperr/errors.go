// Package apperr defines the error kinds surfaced by the ledger. Every kind has a
// stable machine-readable code and a human-readable description; anything that is
// not an *Error is reported as Internal so storage or driver details never leak.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the stable, machine-readable error code.
type Kind string

const (
	UserNotFound               Kind = "USER_NOT_FOUND"
	AccountNotFound            Kind = "ACCOUNT_NOT_FOUND"
	TransactionNotFound        Kind = "TRANSACTION_NOT_FOUND"
	OwnerMismatch              Kind = "USER_ACCOUNT_UN_MATCH"
	AccountClosed              Kind = "ACCOUNT_CLOSED"
	AlreadyClosed              Kind = "ACCOUNT_ALREADY_UNREGISTERED"
	NonZeroBalance             Kind = "BALANCE_NOT_EMPTY"
	InsufficientBalance        Kind = "AMOUNT_EXCEED_BALANCE"
	TooManyAccounts            Kind = "MAX_ACCOUNT_PER_USER_10"
	PartialCancelNotAllowed    Kind = "CANCEL_MUST_FULLY"
	TransactionAccountMismatch Kind = "TRANSACTION_ACCOUNT_UN_MATCH"
	CancelWindowExpired        Kind = "TOO_OLD_ORDER_TO_CANCEL"
	LockBusy                   Kind = "ACCOUNT_TRANSACTION_LOCK"
	InfrastructureUnavailable  Kind = "INFRASTRUCTURE_UNAVAILABLE"
	InvalidRequest             Kind = "INVALID_REQUEST"
	Internal                   Kind = "INTERNAL_SERVER_ERROR"
)

var descriptions = map[Kind]string{
	UserNotFound:               "User not found",
	AccountNotFound:            "Account not found",
	TransactionNotFound:        "Transaction not found",
	OwnerMismatch:              "User and account owner do not match",
	AccountClosed:              "Account is not active",
	AlreadyClosed:              "Account is already unregistered",
	NonZeroBalance:             "Account balance is not empty",
	InsufficientBalance:        "Amount exceeds account balance",
	TooManyAccounts:            "A user can own at most 10 accounts",
	PartialCancelNotAllowed:    "Partial cancellation is not allowed",
	TransactionAccountMismatch: "Transaction does not belong to this account",
	CancelWindowExpired:        "Transactions older than one year cannot be cancelled",
	LockBusy:                   "Account is in use by another transaction",
	InfrastructureUnavailable:  "A backing service is unavailable",
	InvalidRequest:             "Invalid request",
	Internal:                   "Internal server error",
}

// Description returns the human-readable text for the kind.
func (k Kind) Description() string {
	if d, ok := descriptions[k]; ok {
		return d
	}
	return descriptions[Internal]
}

// Error is a classified ledger error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.New(k)) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New returns an error of the given kind with its default description.
func New(kind Kind) *Error {
	return &Error{Kind: kind, Message: kind.Description()}
}

// Newf returns an error of the given kind with a custom message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind.
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Message: kind.Description(), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}
