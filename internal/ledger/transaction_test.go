package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOperationTypeCaseInsensitive(t *testing.T) {
	for _, raw := range []string{"Credit", "CREDIT", "credit"} {
		op, ok := ParseOperationType(raw)
		require.True(t, ok)
		assert.Equal(t, OpCredit, op)
	}

	_, ok := ParseOperationType("withdrawal")
	assert.False(t, ok)
}

func TestNewTransactionRequiresTargetForTransfer(t *testing.T) {
	_, err := NewTransaction("ref-1", OpTransfer, 100, "USD", "acc-1", nil, nil, nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewTransactionRequiresOriginalForReversal(t *testing.T) {
	_, err := NewTransaction("ref-1", OpReversal, 100, "USD", "acc-1", nil, nil, nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewTransactionRejectsNonPositiveAmount(t *testing.T) {
	_, err := NewTransaction("ref-1", OpCredit, 0, "USD", "acc-1", nil, nil, nil)
	assert.ErrorIs(t, err, ErrValidation)
}

// TestReversedMapsToSuccess is the explicit regression test for the §9
// wire bug fix: a Reversed transaction must project as "success", never
// "pending".
func TestReversedMapsToSuccess(t *testing.T) {
	txn, err := NewTransaction("ref-1", OpCredit, 100, "USD", "acc-1", nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, txn.MarkCompleted())
	assert.Equal(t, "success", txn.ResponseStatus())

	require.NoError(t, txn.MarkReversed())
	assert.Equal(t, StatusReversed, txn.Status)
	assert.Equal(t, "success", txn.ResponseStatus())
}

func TestMarkReversedRejectsNonCompleted(t *testing.T) {
	txn, err := NewTransaction("ref-1", OpCredit, 100, "USD", "acc-1", nil, nil, nil)
	require.NoError(t, err)

	err = txn.MarkReversed()
	assert.ErrorIs(t, err, ErrNotCompleted)
}

func TestMarkReversedRejectsDoubleReversal(t *testing.T) {
	txn, err := NewTransaction("ref-1", OpCredit, 100, "USD", "acc-1", nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, txn.MarkCompleted())
	require.NoError(t, txn.MarkReversed())

	err = txn.MarkReversed()
	assert.ErrorIs(t, err, ErrAlreadyReversed)
}

func TestMarkFailedSetsErrorMessage(t *testing.T) {
	txn, err := NewTransaction("ref-1", OpCredit, 100, "USD", "acc-1", nil, nil, nil)
	require.NoError(t, err)

	require.NoError(t, txn.MarkFailed("insufficient funds"))
	assert.Equal(t, StatusFailed, txn.Status)
	require.NotNil(t, txn.ErrorMessage)
	assert.Equal(t, "insufficient funds", *txn.ErrorMessage)
	assert.Equal(t, "failed", txn.ResponseStatus())
}
