// Package idempotency implements the lookup half of spec.md §4.4: given a
// storage.Facade and a client reference id, decide whether a transaction
// has already been processed before the engine does any work.
//
// Key generation (the teacher's internal/pkg/idempotency.GenerateKey) does
// not apply here — the spec's reference id already *is* the idempotency
// key, supplied by the client rather than derived from the request body.
// That hashing idea is repurposed into AuditFingerprint, called from
// internal/engine's failAndPublish to tag outbound Kafka failure events
// (internal/events.Event.Fingerprint) with a stable fingerprint of the
// request shape for log correlation, without participating in the dedup
// decision itself.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"ledgercore/internal/ledger"
	"ledgercore/internal/storage"
)

// Lookup returns the prior transaction for referenceID, or (nil, false) if
// none exists yet.
func Lookup(ctx context.Context, facade storage.Facade, referenceID string) (*ledger.Transaction, bool, error) {
	tx, err := facade.GetTransactionByReference(ctx, referenceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return tx, true, nil
}

// AuditFingerprint is a deterministic, non-secret hash of an operation's
// shape (type, account, amount) used only to correlate failure events in
// logs/Kafka — never for deduplication.
func AuditFingerprint(operationType string, accountID string, amount int64) string {
	data := fmt.Sprintf("%s:%s:%d", operationType, accountID, amount)
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}
