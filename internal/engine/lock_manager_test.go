package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithLockSerializesSameAccount(t *testing.T) {
	lm := NewLockManager()
	var counter int
	var wg sync.WaitGroup
	n := 100

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			err := lm.WithLock(context.Background(), []string{"acc-1"}, func() error {
				current := counter
				time.Sleep(time.Microsecond)
				counter = current + 1
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, n, counter)
}

func TestWithLockCanonicalOrderPreventsDeadlock(t *testing.T) {
	lm := NewLockManager()
	var wg sync.WaitGroup
	n := 50
	wg.Add(2 * n)

	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_ = lm.WithLock(context.Background(), []string{"A", "B"}, func() error {
				time.Sleep(time.Microsecond)
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			_ = lm.WithLock(context.Background(), []string{"B", "A"}, func() error {
				time.Sleep(time.Microsecond)
				return nil
			})
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("deadlocked: A->B and B->A lock sets did not converge on canonical order")
	}
}

func TestWithLockHonorsContextCancellation(t *testing.T) {
	lm := NewLockManager()

	release := make(chan struct{})
	holding := make(chan struct{})
	go func() {
		_ = lm.WithLock(context.Background(), []string{"acc-1"}, func() error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := lm.WithLock(ctx, []string{"acc-1"}, func() error {
		t.Fatal("work must not run once ctx is cancelled before acquisition completes")
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestCanonicalOrderDedupesAndSorts(t *testing.T) {
	assert.Equal(t, []string{"A", "B", "C"}, canonicalOrder([]string{"C", "A", "B", "A"}))
}
