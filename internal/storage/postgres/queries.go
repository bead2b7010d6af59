package postgres

import (
	"ledgercore/internal/ledger"
)

const (
	selectAccountByID = `
		SELECT id, external_id, balance, reserved_balance, credit_limit, status, version, created_at, updated_at
		FROM accounts WHERE id = $1`

	selectAccountByExternalID = `
		SELECT id, external_id, balance, reserved_balance, credit_limit, status, version, created_at, updated_at
		FROM accounts WHERE external_id = $1`

	selectAccountForUpdate = `
		SELECT id, external_id, balance, reserved_balance, credit_limit, status, version, created_at, updated_at
		FROM accounts WHERE id = $1 FOR UPDATE`

	insertAccount = `
		INSERT INTO accounts (id, external_id, balance, reserved_balance, credit_limit, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	updateAccount = `
		UPDATE accounts
		SET balance = $1, reserved_balance = $2, credit_limit = $3, status = $4, updated_at = $5, version = version + 1
		WHERE id = $6 AND version = $7`

	selectTxByReference = `
		SELECT id, reference_id, operation_type, amount, currency, account_id, target_account_id,
		       original_transaction_id, metadata, "timestamp", status, error_message, version
		FROM transactions WHERE reference_id = $1`

	selectTxByID = `
		SELECT id, reference_id, operation_type, amount, currency, account_id, target_account_id,
		       original_transaction_id, metadata, "timestamp", status, error_message, version
		FROM transactions WHERE id = $1`

	insertTx = `
		INSERT INTO transactions (id, reference_id, operation_type, amount, currency, account_id,
			target_account_id, original_transaction_id, metadata, "timestamp", status, error_message, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	updateTx = `
		UPDATE transactions SET status = $1, error_message = $2 WHERE id = $3`

	updateTxInTx = updateTx
)

// row is the subset of pgx.Row/pgx.Rows that Scan needs.
type row interface {
	Scan(dest ...interface{}) error
}

func scanAccount(r row) (*ledger.Account, error) {
	var a ledger.Account
	var status string
	if err := r.Scan(&a.ID, &a.ExternalID, &a.Balance, &a.ReservedBalance, &a.CreditLimit,
		&status, &a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, mapScanErr(err)
	}
	a.Status = ledger.AccountStatus(status)
	return &a, nil
}

func scanTransaction(r row) (*ledger.Transaction, error) {
	var t ledger.Transaction
	var op, status string
	if err := r.Scan(&t.ID, &t.ReferenceID, &op, &t.Amount, &t.Currency, &t.AccountID,
		&t.TargetAccountID, &t.OriginalTransactionID, &t.Metadata, &t.Timestamp,
		&status, &t.ErrorMessage, &t.Version); err != nil {
		return nil, mapScanErr(err)
	}
	t.OperationType = ledger.OperationType(op)
	t.Status = ledger.TransactionStatus(status)
	return &t, nil
}
