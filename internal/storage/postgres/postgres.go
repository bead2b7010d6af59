// Package postgres implements storage.Facade against PostgreSQL with
// pgxpool, grounded on the teacher's AtomicTransfer/AtomicWithdraw
// (SELECT ... FOR UPDATE, §4.5's "second line of defense" version column)
// and on other_examples' ledgerops transfer.go (pgconn.PgError code 23505
// detection for the idempotency unique-key race).
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ledgercore/internal/ledger"
	"ledgercore/internal/storage"
)

// uniqueViolation is Postgres' SQLSTATE for a unique_violation.
const uniqueViolation = "23505"

// Store implements storage.Facade against a pgxpool.Pool.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an already-configured pool. Callers typically build the pool
// via NewPool below.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewPool creates and pings a connection pool from cfg.
func NewPool(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Schema is the DDL this package expects. Applying it is a migration-tool
// concern (out of scope per spec.md §1); it is exposed here so tests and
// operators have a single source of truth.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id text PRIMARY KEY,
	external_id text UNIQUE,
	balance bigint NOT NULL DEFAULT 0,
	reserved_balance bigint NOT NULL DEFAULT 0,
	credit_limit bigint NOT NULL DEFAULT 0,
	status text NOT NULL,
	version bigint NOT NULL DEFAULT 1,
	created_at timestamptz NOT NULL,
	updated_at timestamptz NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	id text PRIMARY KEY,
	reference_id text NOT NULL UNIQUE,
	operation_type text NOT NULL,
	amount bigint NOT NULL,
	currency text NOT NULL,
	account_id text NOT NULL REFERENCES accounts(id) ON DELETE RESTRICT,
	target_account_id text REFERENCES accounts(id) ON DELETE RESTRICT,
	original_transaction_id text REFERENCES transactions(id) ON DELETE RESTRICT,
	metadata text,
	"timestamp" timestamptz NOT NULL,
	status text NOT NULL,
	error_message text,
	version bigint NOT NULL DEFAULT 1
);
`

func (s *Store) GetAccountByID(ctx context.Context, id string) (*ledger.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx, selectAccountByID, id))
}

func (s *Store) GetAccountByExternalID(ctx context.Context, externalID string) (*ledger.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx, selectAccountByExternalID, externalID))
}

func (s *Store) CreateAccount(ctx context.Context, a *ledger.Account) error {
	_, err := s.pool.Exec(ctx, insertAccount,
		a.ID, a.ExternalID, a.Balance, a.ReservedBalance, a.CreditLimit,
		string(a.Status), a.Version, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *Store) GetTransactionByReference(ctx context.Context, referenceID string) (*ledger.Transaction, error) {
	return scanTransaction(s.pool.QueryRow(ctx, selectTxByReference, referenceID))
}

func (s *Store) GetTransactionByID(ctx context.Context, id string) (*ledger.Transaction, error) {
	return scanTransaction(s.pool.QueryRow(ctx, selectTxByID, id))
}

func (s *Store) InsertTransaction(ctx context.Context, t *ledger.Transaction) error {
	_, err := s.pool.Exec(ctx, insertTx,
		t.ID, t.ReferenceID, string(t.OperationType), t.Amount, t.Currency,
		t.AccountID, t.TargetAccountID, t.OriginalTransactionID, t.Metadata,
		t.Timestamp, string(t.Status), t.ErrorMessage, t.Version,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return storage.ErrDuplicateReference
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *Store) SaveTransaction(ctx context.Context, t *ledger.Transaction) error {
	_, err := s.pool.Exec(ctx, updateTx, string(t.Status), t.ErrorMessage, t.ID)
	if err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	return nil
}

func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

type pgTx struct {
	tx pgx.Tx
}

// GetAccountForUpdate locks the row with SELECT ... FOR UPDATE, the same
// mechanism the teacher's AtomicTransfer uses, in addition to (not instead
// of) the engine's process-local LockManager.
func (t *pgTx) GetAccountForUpdate(ctx context.Context, id string) (*ledger.Account, error) {
	return scanAccount(t.tx.QueryRow(ctx, selectAccountForUpdate, id))
}

// SaveAccount updates the row only if its version still matches what was
// read, then advances it — the optimistic-concurrency check of spec.md
// §4.5. A zero-row update means someone else committed first.
func (t *pgTx) SaveAccount(ctx context.Context, a *ledger.Account) error {
	tag, err := t.tx.Exec(ctx, updateAccount,
		a.Balance, a.ReservedBalance, a.CreditLimit, string(a.Status), a.UpdatedAt,
		a.ID, a.Version,
	)
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrConcurrencyConflict
	}
	a.Version++
	return nil
}

// GetTransactionByID reloads a transaction inside this Tx's isolation —
// used by Reversal to re-verify the original is still Completed under
// lock before inverting its effect.
func (t *pgTx) GetTransactionByID(ctx context.Context, id string) (*ledger.Transaction, error) {
	return scanTransaction(t.tx.QueryRow(ctx, selectTxByID, id))
}

func (t *pgTx) SaveTransaction(ctx context.Context, tr *ledger.Transaction) error {
	_, err := t.tx.Exec(ctx, updateTxInTx, string(tr.Status), tr.ErrorMessage, tr.ID)
	if err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	return nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *pgTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
