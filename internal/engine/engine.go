package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"ledgercore/internal/events"
	"ledgercore/internal/idempotency"
	"ledgercore/internal/ledger"
	"ledgercore/internal/metrics"
	"ledgercore/internal/storage"
)

// Engine orchestrates validate -> lock -> storage-tx -> mutate -> persist
// -> publish for every inbound ProcessTransaction request, implementing
// the per-operation semantics of spec.md §4.6.
type Engine struct {
	storage storage.Facade
	locks   *LockManager
	bus     *events.Bus
}

// New wires a Facade, a LockManager and an Event Bus into an Engine.
func New(facade storage.Facade, locks *LockManager, bus *events.Bus) *Engine {
	return &Engine{storage: facade, locks: locks, bus: bus}
}

// ProcessTransaction runs the full 11-step orchestration of spec.md §4.6.
func (e *Engine) ProcessTransaction(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	defer func() {
		metrics.ObserveDuration(req.Operation, time.Since(start).Seconds())
	}()

	// Step 1: resolve account.
	account, err := e.resolveAccount(ctx, req.AccountID, true)
	if err != nil {
		return nil, err
	}

	// Step 2: idempotency check, short-circuit on a hit.
	if prior, found, err := idempotency.Lookup(ctx, e.storage, req.ReferenceID); err != nil {
		return nil, infrastructureErr(err, "idempotency lookup failed")
	} else if found {
		return e.projection(ctx, prior, account.ID)
	}

	// Step 3: parse operation.
	op, ok := ledger.ParseOperationType(req.Operation)
	if !ok {
		return nil, validationErr(nil, "unknown operation %q", req.Operation)
	}

	// Step 4: amount already integer minor units; just reject <= 0 (also
	// enforced by ledger.NewTransaction, checked again here so the error
	// class is Validation even before we touch storage).
	if req.Amount <= 0 {
		return nil, validationErr(nil, "amount must be greater than zero")
	}

	// Step 5: resolve target account for Transfer.
	var targetAccountID *string
	if op == ledger.OpTransfer {
		target, err := e.resolveAccount(ctx, req.TargetAccountID, false)
		if err != nil {
			return nil, err
		}
		targetAccountID = &target.ID
	}

	// Step 6: resolve original transaction id for Reversal (parse only).
	var originalTransactionID *string
	if op == ledger.OpReversal {
		if req.OriginalTransactionID == "" {
			return nil, validationErr(nil, "reversal requires original_transaction_id")
		}
		originalTransactionID = &req.OriginalTransactionID
	}

	var metadata *string
	if req.Metadata != "" {
		metadata = &req.Metadata
	}

	txn, err := ledger.NewTransaction(req.ReferenceID, op, req.Amount, req.Currency, account.ID, targetAccountID, originalTransactionID, metadata)
	if err != nil {
		return nil, validationErr(err, "invalid transaction request")
	}

	// Step 7: persist Pending transaction, committed independent of
	// everything below so idempotency survives later failures.
	if err := e.storage.InsertTransaction(ctx, txn); err != nil {
		if errors.Is(err, storage.ErrDuplicateReference) {
			winner, err := e.storage.GetTransactionByReference(ctx, req.ReferenceID)
			if err != nil {
				return nil, infrastructureErr(err, "failed to read winning transaction after duplicate reference")
			}
			return e.projection(ctx, winner, account.ID)
		}
		return nil, infrastructureErr(err, "failed to persist pending transaction")
	}

	// Step 8: compute the canonical lock set.
	lockIDs, lockSetErr := e.computeLockSet(ctx, txn)
	if lockSetErr != nil {
		e.failAndPublish(ctx, txn, lockSetErr)
		return e.projectionFromAccount(ctx, txn, account.ID, nil)
	}

	// Step 9: under the lock set, in a single storage transaction.
	touched, applyErr := e.applyUnderLock(ctx, lockIDs, txn)
	if applyErr != nil {
		e.failAndPublish(ctx, txn, applyErr)
		return e.projectionFromAccount(ctx, txn, account.ID, nil)
	}

	metrics.RecordOperation(string(op), "success")
	for _, acc := range touched {
		metrics.ObserveAccountBalance(acc.Balance)
	}

	// Step 10: publish success event.
	e.publish(txn, string(txn.Status), "")

	// Step 11: projection.
	return e.projectionFromAccount(ctx, txn, account.ID, touched)
}

// resolveAccount implements spec.md §4.6 step 1/5: an opaque id (a valid
// ULID) is looked up by id and must exist; anything else is treated as a
// client external identity and, for the primary account (autoVivify),
// created fresh with zero credit limit if missing.
func (e *Engine) resolveAccount(ctx context.Context, rawID string, autoVivify bool) (*ledger.Account, error) {
	if rawID == "" {
		return nil, validationErr(nil, "account id must not be empty")
	}

	if _, err := ulid.ParseStrict(rawID); err == nil {
		account, err := e.storage.GetAccountByID(ctx, rawID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, notFoundErr("account %q not found", rawID)
			}
			return nil, infrastructureErr(err, "failed to load account %q", rawID)
		}
		return account, nil
	}

	account, err := e.storage.GetAccountByExternalID(ctx, rawID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, infrastructureErr(err, "failed to load account by external id %q", rawID)
	}
	if !autoVivify {
		return nil, notFoundErr("account %q not found", rawID)
	}

	fresh := ledger.NewAccount(&rawID, 0)
	if err := e.storage.CreateAccount(ctx, fresh); err != nil {
		// Lost a create race against a concurrent caller with the same
		// external id; re-read the winner.
		if existing, readErr := e.storage.GetAccountByExternalID(ctx, rawID); readErr == nil {
			return existing, nil
		}
		return nil, infrastructureErr(err, "failed to create account for external id %q", rawID)
	}
	return fresh, nil
}

// computeLockSet resolves which account ids must be locked for txn. For a
// Reversal it must read the original transaction (outside any lock, purely
// to discover which accounts its effect touched) so that a Reversal of a
// Transfer locks both original accounts (spec.md §4.6).
func (e *Engine) computeLockSet(ctx context.Context, txn *ledger.Transaction) ([]string, *Error) {
	switch txn.OperationType {
	case ledger.OpTransfer:
		return []string{txn.AccountID, *txn.TargetAccountID}, nil
	case ledger.OpReversal:
		original, err := e.storage.GetTransactionByID(ctx, *txn.OriginalTransactionID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, notFoundErr("original transaction %q not found", *txn.OriginalTransactionID)
			}
			return nil, infrastructureErr(err, "failed to load original transaction")
		}
		ids := []string{original.AccountID}
		if original.OperationType == ledger.OpTransfer && original.TargetAccountID != nil {
			ids = append(ids, *original.TargetAccountID)
		}
		return ids, nil
	default:
		return []string{txn.AccountID}, nil
	}
}

// applyUnderLock runs step 9: reload fresh accounts, apply the
// per-operation effect, persist, and commit or roll back atomically. It
// returns the accounts it touched (keyed by id) for the response
// projection.
func (e *Engine) applyUnderLock(ctx context.Context, lockIDs []string, txn *ledger.Transaction) (map[string]*ledger.Account, *Error) {
	var touched map[string]*ledger.Account

	lockErr := e.locks.WithLock(ctx, lockIDs, func() error {
		tx, err := e.storage.Begin(ctx)
		if err != nil {
			return infrastructureErr(err, "failed to begin storage transaction")
		}

		accounts := make(map[string]*ledger.Account, len(lockIDs))
		for _, id := range lockIDs {
			acc, err := tx.GetAccountForUpdate(ctx, id)
			if err != nil {
				_ = tx.Rollback(ctx)
				if errors.Is(err, storage.ErrNotFound) {
					return notFoundErr("account %q not found", id)
				}
				return infrastructureErr(err, "failed to reload account %q", id)
			}
			accounts[id] = acc
		}

		if err := e.applyEffect(ctx, tx, txn, accounts); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}

		if err := txn.MarkCompleted(); err != nil {
			_ = tx.Rollback(ctx)
			return newErr(ClassBusinessRule, 200, err, "%v", err)
		}

		for _, acc := range accounts {
			if err := tx.SaveAccount(ctx, acc); err != nil {
				_ = tx.Rollback(ctx)
				if errors.Is(err, storage.ErrConcurrencyConflict) {
					return newErr(ClassConcurrency, 409, err, "concurrency conflict saving account %q", acc.ID)
				}
				return infrastructureErr(err, "failed to save account %q", acc.ID)
			}
		}
		if err := tx.SaveTransaction(ctx, txn); err != nil {
			_ = tx.Rollback(ctx)
			return infrastructureErr(err, "failed to save transaction")
		}

		if err := tx.Commit(ctx); err != nil {
			return infrastructureErr(err, "failed to commit storage transaction")
		}

		touched = accounts
		return nil
	})

	if lockErr != nil {
		// Nothing was committed: undo an in-memory MarkCompleted so the
		// caller can record the transaction as Failed.
		if txn.Status == ledger.StatusCompleted {
			txn.Status = ledger.StatusPending
		}
		var engineErr *Error
		if errors.As(lockErr, &engineErr) {
			return nil, engineErr
		}
		return nil, infrastructureErr(lockErr, "lock acquisition failed")
	}
	return touched, nil
}

// applyEffect implements the per-operation effects table of spec.md §4.6.
func (e *Engine) applyEffect(ctx context.Context, tx storage.Tx, txn *ledger.Transaction, accounts map[string]*ledger.Account) error {
	switch txn.OperationType {
	case ledger.OpCredit:
		return businessRuleErr(accounts[txn.AccountID].AddCredit(txn.Amount))
	case ledger.OpDebit:
		return businessRuleErr(accounts[txn.AccountID].Debit(txn.Amount))
	case ledger.OpReserve:
		return businessRuleErr(accounts[txn.AccountID].Reserve(txn.Amount))
	case ledger.OpCapture:
		return businessRuleErr(accounts[txn.AccountID].Capture(txn.Amount))
	case ledger.OpTransfer:
		source, target := accounts[txn.AccountID], accounts[*txn.TargetAccountID]
		if err := source.Debit(txn.Amount); err != nil {
			return businessRuleErr(err)
		}
		if err := target.AddCredit(txn.Amount); err != nil {
			return businessRuleErr(err)
		}
		return nil
	case ledger.OpReversal:
		return e.applyReversal(ctx, tx, txn, accounts)
	default:
		return validationErr(nil, "unknown operation %q", txn.OperationType)
	}
}

// applyReversal inverts the original transaction's effect (spec.md §4.6)
// and marks it Reversed. It re-reads the original under the storage
// transaction's isolation to guard against a concurrent double reversal.
func (e *Engine) applyReversal(ctx context.Context, tx storage.Tx, txn *ledger.Transaction, accounts map[string]*ledger.Account) error {
	original, err := tx.GetTransactionByID(ctx, *txn.OriginalTransactionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return notFoundErr("original transaction %q not found", *txn.OriginalTransactionID)
		}
		return infrastructureErr(err, "failed to reload original transaction")
	}

	if original.Status == ledger.StatusReversed {
		return businessRuleErr(ledger.ErrAlreadyReversed)
	}
	if original.Status != ledger.StatusCompleted {
		return businessRuleErr(ledger.ErrNotCompleted)
	}

	source := accounts[original.AccountID]
	switch original.OperationType {
	case ledger.OpCredit:
		err = source.Debit(original.Amount)
	case ledger.OpDebit:
		err = source.AddCredit(original.Amount)
	case ledger.OpReserve:
		err = source.ReleaseReservation(original.Amount)
	case ledger.OpCapture:
		// Restores the prior reserved amount. Spec §9 leaves behavior
		// unspecified if the reservation was independently mutated since
		// the capture; this applies both halves unconditionally as
		// written.
		if err = source.AddCredit(original.Amount); err == nil {
			err = source.Reserve(original.Amount)
		}
	case ledger.OpTransfer:
		target := accounts[*original.TargetAccountID]
		if err = target.Debit(original.Amount); err == nil {
			err = source.AddCredit(original.Amount)
		}
	case ledger.OpReversal:
		err = ledger.ErrNonReversible
	default:
		err = fmt.Errorf("unknown original operation %q", original.OperationType)
	}
	if err != nil {
		return businessRuleErr(err)
	}

	if err := original.MarkReversed(); err != nil {
		return businessRuleErr(err)
	}
	return tx.SaveTransaction(ctx, original)
}

func businessRuleErr(err error) error {
	if err == nil {
		return nil
	}
	return newErr(ClassBusinessRule, 200, err, "%v", err)
}

// failAndPublish implements the failure half of spec.md §4.6 step 9: the
// Pending transaction (already durably visible from step 7) is marked
// Failed and persisted outside of any rolled-back storage transaction,
// then a Failed event is published.
func (e *Engine) failAndPublish(ctx context.Context, txn *ledger.Transaction, cause error) {
	reason := cause.Error()
	if markErr := txn.MarkFailed(reason); markErr != nil {
		// Not Pending (already terminal) — nothing further to record.
		return
	}
	if err := e.storage.SaveTransaction(ctx, txn); err != nil {
		metrics.RecordOperation(string(txn.OperationType), "persist_error")
	}
	metrics.RecordOperation(string(txn.OperationType), "failed")
	fingerprint := idempotency.AuditFingerprint(string(txn.OperationType), txn.AccountID, txn.Amount)
	e.publish(txn, string(txn.Status), fingerprint)
}

func (e *Engine) publish(txn *ledger.Transaction, status, fingerprint string) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.NewEvent(events.TransactionProcessed, txn.ID, txn.ReferenceID, txn.AccountID, status, fingerprint))
}

// projectionFromAccount builds the §6 projection for txn, preferring
// balances from touched (the accounts mutated this request) and falling
// back to a fresh read for the requested account.
func (e *Engine) projectionFromAccount(ctx context.Context, txn *ledger.Transaction, accountID string, touched map[string]*ledger.Account) (*Result, error) {
	return e.projectionWithReplay(ctx, txn, accountID, touched, false)
}

func (e *Engine) projectionWithReplay(ctx context.Context, txn *ledger.Transaction, accountID string, touched map[string]*ledger.Account, replayed bool) (*Result, error) {
	var account *ledger.Account
	if touched != nil {
		account = touched[accountID]
	}
	if account == nil {
		loaded, err := e.storage.GetAccountByID(ctx, accountID)
		if err != nil {
			return nil, infrastructureErr(err, "failed to load account for projection")
		}
		account = loaded
	}

	result := &Result{
		TransactionID:    txn.ID,
		Status:           txn.ResponseStatus(),
		Balance:          account.Balance,
		ReservedBalance:  account.ReservedBalance,
		AvailableBalance: account.AvailableBalance(),
		Timestamp:        txn.Timestamp,
		Replayed:         replayed,
	}
	if txn.ErrorMessage != nil {
		result.ErrorMessage = *txn.ErrorMessage
	}
	return result, nil
}

// projection is the idempotent-replay and duplicate-reference path: return
// the prior transaction's outcome and the account's current balances,
// without any mutation (spec.md §4.4).
func (e *Engine) projection(ctx context.Context, prior *ledger.Transaction, accountID string) (*Result, error) {
	return e.projectionWithReplay(ctx, prior, accountID, nil, true)
}
