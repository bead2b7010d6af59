package ledger

import "time"

// AccountStatus is the lifecycle state of an Account. Only Active accounts
// accept mutating operations.
type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountSuspended AccountStatus = "suspended"
	AccountClosed    AccountStatus = "closed"
)

// Account is the balance aggregate. Balance, ReservedBalance and
// CreditLimit are integer minor units (cents) throughout — the engine never
// rescales them; only the wire boundary speaks of "minor units" explicitly.
//
// Version is the optimistic-concurrency token: it must advance by exactly
// one on every persisted mutation, and a commit whose Version no longer
// matches the row it read is rejected (ErrConcurrencyConflict, see the
// storage package).
type Account struct {
	ID              string
	ExternalID      *string
	Balance         int64
	ReservedBalance int64
	CreditLimit     int64
	Status          AccountStatus
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewAccount constructs a fresh Active account with zero balances.
// CreditLimit may be zero; it is never negative.
func NewAccount(externalID *string, creditLimit int64) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:          NewID(),
		ExternalID:  externalID,
		CreditLimit: creditLimit,
		Status:      AccountActive,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// AvailableBalance is the amount freely spendable without touching credit.
func (a *Account) AvailableBalance() int64 {
	return a.Balance - a.ReservedBalance
}

func (a *Account) checkMutable(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if a.Status != AccountActive {
		return ErrAccountNotActive
	}
	return nil
}

// AddCredit increases the balance unconditionally (beyond the active/amount
// checks every operation shares).
func (a *Account) AddCredit(amount int64) error {
	if err := a.checkMutable(amount); err != nil {
		return err
	}
	a.Balance += amount
	a.touch()
	return nil
}

// Debit decreases the balance, allowed to go negative within CreditLimit.
func (a *Account) Debit(amount int64) error {
	if err := a.checkMutable(amount); err != nil {
		return err
	}
	if amount > a.AvailableBalance()+a.CreditLimit {
		return ErrInsufficientFunds
	}
	a.Balance -= amount
	a.touch()
	return nil
}

// Reserve holds amount against the available balance without touching it.
func (a *Account) Reserve(amount int64) error {
	if err := a.checkMutable(amount); err != nil {
		return err
	}
	if amount > a.AvailableBalance() {
		return ErrInsufficientAvailable
	}
	a.ReservedBalance += amount
	a.touch()
	return nil
}

// Capture converts a reservation into a debit.
func (a *Account) Capture(amount int64) error {
	if err := a.checkMutable(amount); err != nil {
		return err
	}
	if amount > a.ReservedBalance {
		return ErrInsufficientReserved
	}
	a.ReservedBalance -= amount
	a.Balance -= amount
	a.touch()
	return nil
}

// ReleaseReservation gives back a held amount without affecting balance.
func (a *Account) ReleaseReservation(amount int64) error {
	if err := a.checkMutable(amount); err != nil {
		return err
	}
	if amount > a.ReservedBalance {
		return ErrInvalidReservation
	}
	a.ReservedBalance -= amount
	a.touch()
	return nil
}

func (a *Account) touch() {
	a.UpdatedAt = time.Now().UTC()
}
