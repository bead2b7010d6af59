package engine

import "time"

// Request is the decoded form of the §6 ProcessTransaction wire request.
// AccountID/TargetAccountID may be either an opaque account id or a
// client-supplied external identity (§4.6 step 1). Amount is already an
// integer minor-unit value; the engine performs no further rescaling.
type Request struct {
	Operation             string
	AccountID             string
	Amount                int64
	Currency              string
	ReferenceID           string
	TargetAccountID       string
	OriginalTransactionID string
	Metadata              string
}

// Result is the §6 ProcessTransaction response projection.
type Result struct {
	TransactionID    string
	Status           string // success | failed | pending
	Balance          int64
	ReservedBalance  int64
	AvailableBalance int64
	Timestamp        time.Time
	ErrorMessage     string
	// Replayed is true when this Result reflects a pre-existing
	// transaction (an idempotent resubmission or a storage-level
	// duplicate-reference race), not a transaction created by this call —
	// the HTTP layer uses it to pick 200 vs 201 per spec.md §6.
	Replayed bool
}
