package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Executor drives the ledger engine's HTTP surface: POST /transactions for
// every mutating operation and GET /accounts/:id for balance reads. Account
// identity is whatever external id the caller picks — the engine
// auto-creates an account on its first referencing transaction, so there is
// no separate account-creation call to make.
type Executor struct {
	client  *http.Client
	baseURL string
}

func New(baseURL string) *Executor {
	return &Executor{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        1000,
				MaxIdleConnsPerHost: 100,
				MaxConnsPerHost:     100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL: baseURL,
	}
}

type transactionRequest struct {
	AccountID       string `json:"account_id"`
	TargetAccountID string `json:"target_account_id,omitempty"`
	Operation       string `json:"operation"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	ReferenceID     string `json:"reference_id"`
}

func (e *Executor) Credit(ctx context.Context, accountID string, amountCents int64) error {
	return e.submit(ctx, transactionRequest{
		AccountID: accountID, Operation: "credit", Amount: amountCents, Currency: "USD",
		ReferenceID: uuid.NewString(),
	})
}

func (e *Executor) Debit(ctx context.Context, accountID string, amountCents int64) error {
	return e.submit(ctx, transactionRequest{
		AccountID: accountID, Operation: "debit", Amount: amountCents, Currency: "USD",
		ReferenceID: uuid.NewString(),
	})
}

func (e *Executor) Transfer(ctx context.Context, fromID, toID string, amountCents int64) error {
	return e.submit(ctx, transactionRequest{
		AccountID: fromID, TargetAccountID: toID, Operation: "transfer",
		Amount: amountCents, Currency: "USD", ReferenceID: uuid.NewString(),
	})
}

func (e *Executor) submit(ctx context.Context, req transactionRequest) error {
	_, err := e.post(ctx, "/transactions", req)
	return err
}

func (e *Executor) GetBalance(ctx context.Context, accountID string) (int64, error) {
	resp, err := e.get(ctx, fmt.Sprintf("/accounts/%s", accountID))
	if err != nil {
		return 0, err
	}

	var result struct {
		Balance int64 `json:"balance"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return 0, fmt.Errorf("failed to parse account response: %w", err)
	}
	return result.Balance, nil
}

func (e *Executor) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Load-Test", "true")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var respBody bytes.Buffer
	if _, err := respBody.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, respBody.String())
	}

	return respBody.Bytes(), nil
}

func (e *Executor) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", e.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Load-Test", "true")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var respBody bytes.Buffer
	if _, err := respBody.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, respBody.String())
	}

	return respBody.Bytes(), nil
}
