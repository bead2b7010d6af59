package ledger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAccount(balance, creditLimit int64) *Account {
	a := NewAccount(nil, creditLimit)
	a.Balance = balance
	return a
}

func TestAccountAddCredit(t *testing.T) {
	tests := []struct {
		name    string
		initial int64
		amount  int64
		want    int64
		wantErr error
	}{
		{"valid", 1000, 500, 1500, nil},
		{"zero rejected", 1000, 0, 1000, ErrInvalidAmount},
		{"negative rejected", 1000, -100, 1000, ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := newTestAccount(tt.initial, 0)
			err := acc.AddCredit(tt.amount)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, acc.Balance)
		})
	}
}

func TestAccountDebitWithinCreditLimit(t *testing.T) {
	// S2: balance 100.00 after credit, creditLimit 500.00.
	acc := newTestAccount(0, 50000)
	require.NoError(t, acc.AddCredit(10000))

	require.NoError(t, acc.Debit(40000))
	assert.Equal(t, int64(-30000), acc.Balance)

	err := acc.Debit(30000)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, int64(-30000), acc.Balance, "failed debit must not mutate balance")
}

func TestAccountReserveCaptureRelease(t *testing.T) {
	// S3: reserve/capture/release invariants.
	acc := newTestAccount(200, 0)

	require.NoError(t, acc.Reserve(100))
	assert.Equal(t, int64(100), acc.ReservedBalance)
	assert.Equal(t, int64(100), acc.AvailableBalance())

	require.NoError(t, acc.Capture(50))
	assert.Equal(t, int64(150), acc.Balance)
	assert.Equal(t, int64(50), acc.ReservedBalance)
	assert.Equal(t, int64(100), acc.AvailableBalance())

	require.NoError(t, acc.ReleaseReservation(50))
	assert.Equal(t, int64(0), acc.ReservedBalance)
}

func TestAccountReserveRejectsBeyondAvailable(t *testing.T) {
	acc := newTestAccount(200, 0)
	err := acc.Reserve(300)
	assert.ErrorIs(t, err, ErrInsufficientAvailable)
	assert.Equal(t, int64(0), acc.ReservedBalance)
}

func TestAccountCaptureRejectsBeyondReserved(t *testing.T) {
	acc := newTestAccount(200, 0)
	require.NoError(t, acc.Reserve(100))

	err := acc.Capture(150)
	assert.ErrorIs(t, err, ErrInsufficientReserved)
}

func TestAccountRejectsMutationWhenNotActive(t *testing.T) {
	acc := newTestAccount(100, 0)
	acc.Status = AccountSuspended

	err := acc.AddCredit(10)
	assert.ErrorIs(t, err, ErrAccountNotActive)
}

func TestAccountConcurrentAddCredit(t *testing.T) {
	acc := newTestAccount(0, 0)
	var wg sync.WaitGroup
	var mu sync.Mutex
	n := 200

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			mu.Lock()
			defer mu.Unlock()
			require.NoError(t, acc.AddCredit(1))
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(n), acc.Balance)
}
