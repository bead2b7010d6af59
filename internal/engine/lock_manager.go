package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"ledgercore/internal/metrics"
)

// LockManager provides cooperative, per-process mutual exclusion keyed by
// account id. Each key gets its own weighted semaphore of size 1 — a bare
// sync.Mutex can't honor ctx.Done() while blocked, so acquisition goes
// through semaphore.Weighted.Acquire instead, the same ctx-cancellable
// binary lock shape as the teacher's accountMutexes map[int]*sync.Mutex
// in its postgres repository, generalized to support cancellation.
//
// Multi-account acquisition always happens in canonical (lexicographic) id
// order and releases in reverse order, which makes cyclic waits impossible:
// two concurrent transfers A->B and B->A always acquire A before B.
//
// Locks are process-local (spec.md §4.3's explicit limitation) — horizontal
// replication needs a distributed lock with the same ordering discipline.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*semaphore.Weighted
}

// NewLockManager returns an empty lock manager. Keys are created lazily on
// first use and retained for the process lifetime.
func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]*semaphore.Weighted)}
}

func (m *LockManager) semaphoreFor(id string) *semaphore.Weighted {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.locks[id]
	if !ok {
		s = semaphore.NewWeighted(1)
		m.locks[id] = s
	}
	return s
}

// canonicalOrder returns the unique, sorted account ids from ids.
func canonicalOrder(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	ordered := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)
	return ordered
}

// WithLock acquires exclusive access to every id in ids, in canonical
// order, then invokes work. All locks are released on every exit path,
// including when ctx is cancelled mid-acquisition or work panics.
func (m *LockManager) WithLock(ctx context.Context, ids []string, work func() error) error {
	start := time.Now()
	ordered := canonicalOrder(ids)
	acquired := make([]*semaphore.Weighted, 0, len(ordered))

	defer func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].Release(1)
		}
	}()

	for _, id := range ordered {
		s := m.semaphoreFor(id)
		if err := s.Acquire(ctx, 1); err != nil {
			return err
		}
		acquired = append(acquired, s)
	}
	metrics.ObserveLockWait(time.Since(start).Seconds())

	return work()
}
