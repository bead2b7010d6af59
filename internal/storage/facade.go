// Package storage defines the Storage Transaction Facade contract of
// spec.md §4.5: begin/commit/rollback plus primitive account and
// transaction reads and writes, with optimistic-concurrency conflict
// signalling. internal/storage/memory and internal/storage/postgres are
// the two concrete backends.
package storage

import (
	"context"
	"errors"

	"ledgercore/internal/ledger"
)

// ErrConcurrencyConflict is returned when the account's Version no longer
// matches the row read earlier in the same transaction — spec.md §4.5's
// optimistic-concurrency signal. The postgres backend returns it from
// Tx.SaveAccount; the memory backend buffers writes and returns it from
// Tx.Commit.
var ErrConcurrencyConflict = errors.New("concurrency conflict: stale account version")

// ErrDuplicateReference is returned by Facade.InsertTransaction when a
// transaction with the same ReferenceID already exists — the storage-level
// unique-index race of spec.md §4.4.
var ErrDuplicateReference = errors.New("duplicate reference id")

// ErrNotFound is returned by any lookup that misses.
var ErrNotFound = errors.New("not found")

// Facade is the top-level storage contract the engine depends on. Calls
// outside Begin/Commit/Rollback run each in their own implicit
// transaction; calls against a Tx share one.
type Facade interface {
	// GetAccountByID loads an account by its opaque identity.
	GetAccountByID(ctx context.Context, id string) (*ledger.Account, error)
	// GetAccountByExternalID loads an account by client-supplied external
	// identity.
	GetAccountByExternalID(ctx context.Context, externalID string) (*ledger.Account, error)
	// CreateAccount persists a brand new account outside any engine-held
	// lock (it does not exist yet, so there is nothing to lock).
	CreateAccount(ctx context.Context, account *ledger.Account) error

	// GetTransactionByReference looks up a transaction by its client
	// reference id — the idempotency check of spec.md §4.4.
	GetTransactionByReference(ctx context.Context, referenceID string) (*ledger.Transaction, error)
	// GetTransactionByID loads a transaction by its opaque identity.
	GetTransactionByID(ctx context.Context, id string) (*ledger.Transaction, error)
	// InsertTransaction persists a new Pending transaction and commits
	// immediately, independent of any later locked transaction — this is
	// what makes idempotency durable even if the rest of the request
	// fails (spec.md §4.6 step 7). Returns ErrDuplicateReference on a
	// unique-index race.
	InsertTransaction(ctx context.Context, tx *ledger.Transaction) error
	// SaveTransaction persists a transaction's terminal state outside of
	// any locked storage transaction (used for the Failed path after a
	// rollback, spec.md §4.6 step 9).
	SaveTransaction(ctx context.Context, tx *ledger.Transaction) error

	// Begin starts a storage transaction.
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a single atomic storage transaction spanning one or more accounts.
type Tx interface {
	// GetAccountForUpdate reloads the account with a fresh Version,
	// establishing the row lock (or its equivalent) that backs the
	// engine's per-account LockManager as a second line of defense.
	GetAccountForUpdate(ctx context.Context, id string) (*ledger.Account, error)
	// SaveAccount persists account's new state. The optimistic concurrency
	// check against the Version that was read in this Tx happens here or at
	// Commit, depending on the backend.
	SaveAccount(ctx context.Context, account *ledger.Account) error
	// GetTransactionByID reloads a transaction within this Tx's
	// isolation, used by Reversal to re-verify the original transaction
	// is still Completed under lock.
	GetTransactionByID(ctx context.Context, id string) (*ledger.Transaction, error)
	// SaveTransaction persists tx's terminal state as part of this Tx.
	SaveTransaction(ctx context.Context, tx *ledger.Transaction) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
