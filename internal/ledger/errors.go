package ledger

import "errors"

// Business-rule errors returned by the Account aggregate. The engine
// classifies these as BusinessRule failures (spec §7): caught inside the
// locked storage transaction, never surfaced as a 4xx on their own.
// ErrValidation marks a malformed request caught during Transaction
// construction, before any persistence — spec §7's Validation class.
var ErrValidation = errors.New("validation error")

var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientAvailable = errors.New("insufficient available balance")
	ErrInsufficientReserved = errors.New("insufficient reserved balance")
	ErrInvalidReservation   = errors.New("invalid reservation amount")
	ErrAccountNotActive     = errors.New("account is not active")
	ErrInvalidAmount        = errors.New("amount must be greater than zero")
	ErrNonReversible        = errors.New("transaction type is not reversible")
	ErrAlreadyReversed      = errors.New("transaction has already been reversed")
	ErrNotCompleted         = errors.New("original transaction is not completed")
)
