package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgercore/internal/events"
	"ledgercore/internal/storage/memory"
)

func newTestEngine() *Engine {
	facade := memory.New()
	bus := events.New(64, events.NewRecordingSink())
	return New(facade, NewLockManager(), bus)
}

// TestS1CreditThenDebit is spec.md §8 scenario S1.
func TestS1CreditThenDebit(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()

	r1, err := eng.ProcessTransaction(ctx, Request{
		Operation: "credit", AccountID: "cust-1", Amount: 100000, Currency: "USD", ReferenceID: "s1-credit",
	})
	require.NoError(t, err)
	assert.Equal(t, "success", r1.Status)
	assert.Equal(t, int64(100000), r1.Balance)

	r2, err := eng.ProcessTransaction(ctx, Request{
		Operation: "debit", AccountID: "cust-1", Amount: 30000, Currency: "USD", ReferenceID: "s1-debit",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(70000), r2.Balance)
	assert.Equal(t, int64(70000), r2.AvailableBalance)
}

// TestS2DebitBeyondAvailableFailsWithoutTouchingBalance exercises the
// second half of spec.md §8 scenario S2: a debit that would exceed
// balance+creditLimit is recorded as a Failed transaction, not a Go
// error, and must not mutate the account.
func TestS2DebitBeyondAvailableFailsWithoutTouchingBalance(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()

	_, err := eng.ProcessTransaction(ctx, Request{
		Operation: "credit", AccountID: "cust-2", Amount: 10000, Currency: "USD", ReferenceID: "s2-credit",
	})
	require.NoError(t, err)

	result, err := eng.ProcessTransaction(ctx, Request{
		Operation: "debit", AccountID: "cust-2", Amount: 40000, Currency: "USD", ReferenceID: "s2-debit-fail",
	})
	require.NoError(t, err, "business-rule failures return a response, not a Go error")
	assert.Equal(t, "failed", result.Status)
	assert.NotEmpty(t, result.ErrorMessage)
	assert.Equal(t, int64(10000), result.Balance, "a failed debit must not mutate the balance")
}

// TestS3ReserveCaptureRelease is spec.md §8 scenario S3.
func TestS3ReserveCaptureRelease(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()

	_, err := eng.ProcessTransaction(ctx, Request{
		Operation: "credit", AccountID: "cust-3", Amount: 200, Currency: "USD", ReferenceID: "s3-credit",
	})
	require.NoError(t, err)

	reserve, err := eng.ProcessTransaction(ctx, Request{
		Operation: "reserve", AccountID: "cust-3", Amount: 100, Currency: "USD", ReferenceID: "s3-reserve",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), reserve.ReservedBalance)
	assert.Equal(t, int64(100), reserve.AvailableBalance)

	capture, err := eng.ProcessTransaction(ctx, Request{
		Operation: "capture", AccountID: "cust-3", Amount: 50, Currency: "USD", ReferenceID: "s3-capture",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(150), capture.Balance)
	assert.Equal(t, int64(50), capture.ReservedBalance)
}

// TestS4IdempotentReplay is spec.md §8 invariant 4: two requests sharing a
// reference_id yield exactly one transaction id.
func TestS4IdempotentReplay(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()

	req := Request{Operation: "credit", AccountID: "cust-4", Amount: 500, Currency: "USD", ReferenceID: "s4-ref"}

	first, err := eng.ProcessTransaction(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := eng.ProcessTransaction(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.TransactionID, second.TransactionID)
	assert.Equal(t, first.Balance, second.Balance)
}

// TestS5ReversalRestoresPriorState is spec.md §8 invariant 5.
func TestS5ReversalRestoresPriorState(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()

	_, err := eng.ProcessTransaction(ctx, Request{
		Operation: "credit", AccountID: "cust-5", Amount: 1000, Currency: "USD", ReferenceID: "s5-seed",
	})
	require.NoError(t, err)

	debit, err := eng.ProcessTransaction(ctx, Request{
		Operation: "debit", AccountID: "cust-5", Amount: 400, Currency: "USD", ReferenceID: "s5-debit",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(600), debit.Balance)

	reversal, err := eng.ProcessTransaction(ctx, Request{
		Operation: "reversal", AccountID: "cust-5", Amount: 400, Currency: "USD",
		ReferenceID: "s5-reversal", OriginalTransactionID: debit.TransactionID,
	})
	require.NoError(t, err)
	assert.Equal(t, "success", reversal.Status)
	assert.Equal(t, int64(1000), reversal.Balance)
}

func TestReversalOfReversalIsRejected(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()

	_, err := eng.ProcessTransaction(ctx, Request{
		Operation: "credit", AccountID: "cust-5b", Amount: 1000, Currency: "USD", ReferenceID: "rr-credit",
	})
	require.NoError(t, err)
	reversal, err := eng.ProcessTransaction(ctx, Request{
		Operation: "reversal", AccountID: "cust-5b", Amount: 1000, Currency: "USD",
		ReferenceID: "rr-reversal", OriginalTransactionID: mustTxnID(t, eng, ctx, "cust-5b", "rr-credit"),
	})
	require.NoError(t, err)
	require.Equal(t, "success", reversal.Status)

	doubleReversal, err := eng.ProcessTransaction(ctx, Request{
		Operation: "reversal", AccountID: "cust-5b", Amount: 1000, Currency: "USD",
		ReferenceID: "rr-reversal-2", OriginalTransactionID: reversal.TransactionID,
	})
	require.NoError(t, err)
	assert.Equal(t, "failed", doubleReversal.Status)
}

func mustTxnID(t *testing.T, eng *Engine, ctx context.Context, _, referenceID string) string {
	t.Helper()
	prior, err := eng.storage.GetTransactionByReference(ctx, referenceID)
	require.NoError(t, err)
	return prior.ID
}

// TestS6ConcurrentTransfersConserveTotal is spec.md §8 invariants 3 and 7:
// N concurrent transfers A->B and N concurrent transfers B->A for equal
// amounts leave both balances where they started.
func TestS6ConcurrentTransfersConserveTotal(t *testing.T) {
	eng := newTestEngine()
	ctx := context.Background()

	_, err := eng.ProcessTransaction(ctx, Request{
		Operation: "credit", AccountID: "acct-A", Amount: 100000, Currency: "USD", ReferenceID: "s6-seed-a",
	})
	require.NoError(t, err)
	_, err = eng.ProcessTransaction(ctx, Request{
		Operation: "credit", AccountID: "acct-B", Amount: 100000, Currency: "USD", ReferenceID: "s6-seed-b",
	})
	require.NoError(t, err)

	n := 50
	amount := int64(100)
	var wg sync.WaitGroup
	wg.Add(2 * n)

	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			_, err := eng.ProcessTransaction(ctx, Request{
				Operation: "transfer", AccountID: "acct-A", TargetAccountID: "acct-B",
				Amount: amount, Currency: "USD", ReferenceID: refID("s6-ab", i),
			})
			require.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := eng.ProcessTransaction(ctx, Request{
				Operation: "transfer", AccountID: "acct-B", TargetAccountID: "acct-A",
				Amount: amount, Currency: "USD", ReferenceID: refID("s6-ba", i),
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	// N transfers each way at equal amounts must leave both balances
	// where they started, and the combined total conserved throughout.
	accA, err := eng.storage.GetAccountByID(ctx, mustResolvedID(t, eng, ctx, "acct-A"))
	require.NoError(t, err)
	accB, err := eng.storage.GetAccountByID(ctx, mustResolvedID(t, eng, ctx, "acct-B"))
	require.NoError(t, err)

	assert.Equal(t, int64(200000), accA.Balance+accB.Balance, "total balance must be conserved across concurrent transfers")
	assert.Equal(t, int64(100000), accA.Balance, "equal and opposite transfer volume must net to zero")
	assert.Equal(t, int64(100000), accB.Balance)
}

func refID(prefix string, i int) string {
	return fmt.Sprintf("%s-%d", prefix, i)
}

func mustResolvedID(t *testing.T, eng *Engine, ctx context.Context, externalID string) string {
	t.Helper()
	acc, err := eng.storage.GetAccountByExternalID(ctx, externalID)
	require.NoError(t, err)
	return acc.ID
}

func TestUnknownOperationIsValidationError(t *testing.T) {
	eng := newTestEngine()
	_, err := eng.ProcessTransaction(context.Background(), Request{
		Operation: "withdrawal", AccountID: "cust-x", Amount: 100, Currency: "USD", ReferenceID: "bad-op",
	})
	require.Error(t, err)
	assert.True(t, IsClass(err, ClassValidation))
}

func TestOpaqueAccountIDNotFound(t *testing.T) {
	eng := newTestEngine()
	_, err := eng.ProcessTransaction(context.Background(), Request{
		Operation: "credit", AccountID: "01ARZ3NDEKTSV4RRFFQ69G5FAV", Amount: 100, Currency: "USD", ReferenceID: "opaque-miss",
	})
	require.Error(t, err)
	assert.True(t, IsClass(err, ClassNotFound))
}
