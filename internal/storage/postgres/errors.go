package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"

	"ledgercore/internal/storage"
)

func mapScanErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}
