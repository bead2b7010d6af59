package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ledgercore/internal/ledger"
	"ledgercore/internal/logging"
	"ledgercore/internal/storage"
)

type transactionDocument struct {
	ID                    string `json:"id"`
	ReferenceID           string `json:"reference_id"`
	Operation             string `json:"operation"`
	Amount                int64  `json:"amount"`
	Currency              string `json:"currency"`
	AccountID             string `json:"account_id"`
	TargetAccountID       string `json:"target_account_id,omitempty"`
	OriginalTransactionID string `json:"original_transaction_id,omitempty"`
	Status                string `json:"status"`
	ErrorMessage          string `json:"error_message,omitempty"`
}

// GetTransaction builds the handler for GET /transactions/:id, letting a
// client retrieve the persisted Transaction document for any previously
// accepted request — the recoverability guarantee spec.md §7 calls out for
// Pending records.
func GetTransaction(facade storage.Facade, log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		txn, err := facade.GetTransactionByID(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
				return
			}
			log.Error("failed to load transaction", err, logging.Fields{"transaction_id": id})
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, toTransactionDocument(txn))
	}
}

func toTransactionDocument(t *ledger.Transaction) transactionDocument {
	doc := transactionDocument{
		ID:          t.ID,
		ReferenceID: t.ReferenceID,
		Operation:   string(t.OperationType),
		Amount:      t.Amount,
		Currency:    t.Currency,
		AccountID:   t.AccountID,
		Status:      t.ResponseStatus(),
	}
	if t.TargetAccountID != nil {
		doc.TargetAccountID = *t.TargetAccountID
	}
	if t.OriginalTransactionID != nil {
		doc.OriginalTransactionID = *t.OriginalTransactionID
	}
	if t.ErrorMessage != nil {
		doc.ErrorMessage = *t.ErrorMessage
	}
	return doc
}
