// Package handlers implements the thin Gin surface of spec.md §6: decode
// the wire request, call the engine, encode its projection. Grounded on
// the teacher's internal/api/handlers/transfer.go (closure-based handler
// capturing dependencies once at registration time, ShouldBindJSON,
// structured Warn/Error logging around failure paths).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ledgercore/internal/engine"
	"ledgercore/internal/logging"
)

// transactionRequest is the wire shape of spec.md §6's ProcessTransaction
// request: snake_case fields, amounts as integer minor units.
type transactionRequest struct {
	Operation             string `json:"operation" binding:"required"`
	AccountID             string `json:"account_id" binding:"required"`
	Amount                int64  `json:"amount" binding:"required"`
	Currency              string `json:"currency"`
	ReferenceID           string `json:"reference_id" binding:"required"`
	TargetAccountID       string `json:"target_account_id"`
	OriginalTransactionID string `json:"original_transaction_id"`
	Metadata              string `json:"metadata"`
}

type transactionResponse struct {
	TransactionID    string `json:"transaction_id"`
	Status           string `json:"status"`
	Balance          int64  `json:"balance"`
	ReservedBalance  int64  `json:"reserved_balance"`
	AvailableBalance int64  `json:"available_balance"`
	Timestamp        string `json:"timestamp"`
	ErrorMessage     string `json:"error_message,omitempty"`
}

// ProcessTransaction builds the handler for POST /transactions. It carries
// no state of its own beyond the engine it closes over — every request is
// independent.
func ProcessTransaction(eng *engine.Engine, log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req transactionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			log.Warn("invalid transaction request body", logging.Fields{
				"error": err.Error(),
				"ip":    c.ClientIP(),
			})
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}

		result, err := eng.ProcessTransaction(c.Request.Context(), engine.Request{
			Operation:             req.Operation,
			AccountID:             req.AccountID,
			Amount:                req.Amount,
			Currency:              req.Currency,
			ReferenceID:           req.ReferenceID,
			TargetAccountID:       req.TargetAccountID,
			OriginalTransactionID: req.OriginalTransactionID,
			Metadata:              req.Metadata,
		})
		if err != nil {
			writeEngineError(c, log, err)
			return
		}

		status := http.StatusCreated
		if result.Replayed {
			status = http.StatusOK
		}
		c.JSON(status, transactionResponse{
			TransactionID:    result.TransactionID,
			Status:           result.Status,
			Balance:          result.Balance,
			ReservedBalance:  result.ReservedBalance,
			AvailableBalance: result.AvailableBalance,
			Timestamp:        result.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
			ErrorMessage:     result.ErrorMessage,
		})
	}
}

func writeEngineError(c *gin.Context, log *logging.Logger, err error) {
	var engineErr *engine.Error
	if errors.As(err, &engineErr) {
		if engineErr.Status >= http.StatusInternalServerError {
			log.Error("transaction processing failed", engineErr, logging.Fields{"class": string(engineErr.Class)})
		} else {
			log.Warn("transaction rejected", logging.Fields{"class": string(engineErr.Class), "error": engineErr.Error()})
		}
		c.JSON(engineErr.Status, gin.H{"error": engineErr.Message, "class": engineErr.Class})
		return
	}
	log.Error("unexpected engine error", err, nil)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
