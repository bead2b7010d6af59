package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ledgercore/internal/ledger"
	"ledgercore/internal/logging"
	"ledgercore/internal/storage"
)

type accountResponse struct {
	ID               string `json:"id"`
	ExternalID       string `json:"external_id,omitempty"`
	Balance          int64  `json:"balance"`
	ReservedBalance  int64  `json:"reserved_balance"`
	AvailableBalance int64  `json:"available_balance"`
	CreditLimit      int64  `json:"credit_limit"`
	Status           string `json:"status"`
}

// GetAccount builds the handler for GET /accounts/:id, a read-only lookup
// by opaque account id used to poll balances outside the engine's
// mutation path.
func GetAccount(facade storage.Facade, log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		account, err := facade.GetAccountByID(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
				return
			}
			log.Error("failed to load account", err, logging.Fields{"account_id": id})
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, toAccountResponse(account))
	}
}

func toAccountResponse(a *ledger.Account) accountResponse {
	resp := accountResponse{
		ID:               a.ID,
		Balance:          a.Balance,
		ReservedBalance:  a.ReservedBalance,
		AvailableBalance: a.AvailableBalance(),
		CreditLimit:      a.CreditLimit,
		Status:           string(a.Status),
	}
	if a.ExternalID != nil {
		resp.ExternalID = *a.ExternalID
	}
	return resp
}
