// Package memory is an in-process storage.Facade backend, used by engine
// unit tests and as a standalone deployment mode. It is grounded on the
// teacher's src/db/inMemoryDB.go, generalized from a single-field account
// map to the full Account/Transaction model and the Tx-scoped optimistic
// concurrency contract of storage.Facade.
package memory

import (
	"context"
	"sync"

	"ledgercore/internal/ledger"
	"ledgercore/internal/storage"
)

// Store is an in-memory Facade implementation. All state lives behind a
// single RWMutex; the per-account LockManager in the engine is what
// actually serializes concurrent mutations, so Store's own lock only
// needs to protect its maps, not business invariants.
type Store struct {
	mu           sync.RWMutex
	accounts     map[string]*ledger.Account
	byExternal   map[string]string // externalID -> id
	transactions map[string]*ledger.Transaction
	byReference  map[string]string // referenceID -> id
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		accounts:     make(map[string]*ledger.Account),
		byExternal:   make(map[string]string),
		transactions: make(map[string]*ledger.Transaction),
		byReference:  make(map[string]string),
	}
}

func cloneAccount(a *ledger.Account) *ledger.Account {
	cp := *a
	return &cp
}

func cloneTransaction(t *ledger.Transaction) *ledger.Transaction {
	cp := *t
	return &cp
}

func (s *Store) GetAccountByID(_ context.Context, id string) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneAccount(a), nil
}

func (s *Store) GetAccountByExternalID(_ context.Context, externalID string) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byExternal[externalID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneAccount(s.accounts[id]), nil
}

func (s *Store) CreateAccount(_ context.Context, account *ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = cloneAccount(account)
	if account.ExternalID != nil {
		s.byExternal[*account.ExternalID] = account.ID
	}
	return nil
}

func (s *Store) GetTransactionByReference(_ context.Context, referenceID string) (*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byReference[referenceID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneTransaction(s.transactions[id]), nil
}

func (s *Store) GetTransactionByID(_ context.Context, id string) (*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneTransaction(t), nil
}

func (s *Store) InsertTransaction(_ context.Context, tx *ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byReference[tx.ReferenceID]; exists {
		return storage.ErrDuplicateReference
	}
	s.transactions[tx.ID] = cloneTransaction(tx)
	s.byReference[tx.ReferenceID] = tx.ID
	return nil
}

func (s *Store) SaveTransaction(_ context.Context, tx *ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[tx.ID]; !ok {
		return storage.ErrNotFound
	}
	s.transactions[tx.ID] = cloneTransaction(tx)
	return nil
}

func (s *Store) Begin(_ context.Context) (storage.Tx, error) {
	return &memTx{store: s, reads: make(map[string]int64)}, nil
}

// memTx buffers writes and applies them atomically at Commit, after
// re-validating every account's Version against the live store — the
// in-memory analogue of a real transaction's isolation.
type memTx struct {
	store   *Store
	reads   map[string]int64 // account id -> version at read time
	writes  []*ledger.Account
	txWrite []*ledger.Transaction
	done    bool
}

func (tx *memTx) GetAccountForUpdate(_ context.Context, id string) (*ledger.Account, error) {
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	a, ok := tx.store.accounts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	tx.reads[id] = a.Version
	return cloneAccount(a), nil
}

func (tx *memTx) SaveAccount(_ context.Context, account *ledger.Account) error {
	tx.writes = append(tx.writes, cloneAccount(account))
	return nil
}

func (tx *memTx) GetTransactionByID(_ context.Context, id string) (*ledger.Transaction, error) {
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	t, ok := tx.store.transactions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneTransaction(t), nil
}

func (tx *memTx) SaveTransaction(_ context.Context, t *ledger.Transaction) error {
	tx.txWrite = append(tx.txWrite, cloneTransaction(t))
	return nil
}

func (tx *memTx) Commit(_ context.Context) error {
	if tx.done {
		return nil
	}
	tx.done = true

	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	for _, w := range tx.writes {
		current, ok := tx.store.accounts[w.ID]
		if !ok {
			return storage.ErrNotFound
		}
		if current.Version != tx.reads[w.ID] {
			return storage.ErrConcurrencyConflict
		}
	}

	for _, w := range tx.writes {
		w.Version++
		tx.store.accounts[w.ID] = w
	}
	for _, t := range tx.txWrite {
		tx.store.transactions[t.ID] = t
	}
	return nil
}

func (tx *memTx) Rollback(_ context.Context) error {
	tx.done = true
	return nil
}
