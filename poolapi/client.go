// Package poolapi is the typed facade over the mining pool's admin HTTP
// API: fetching pending obligations and acknowledging completed payments.
// Authentication is a bearer token; non-2xx responses are handled
// per-endpoint rather than uniformly treated as errors.
package poolapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/poolcore/disburser/amount"
	"github.com/poolcore/disburser/model"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the pool admin API's base address, e.g.
	// "https://pool.example.com".
	BaseURL string

	// PoolID identifies which pool's payments this client manages.
	PoolID string

	// APIKey is sent as a bearer token on every request.
	APIKey string

	// Timeout bounds every individual HTTP call.
	Timeout time.Duration

	// UserAgent is set on every request for log attribution on the pool
	// side.
	UserAgent string
}

// Client is the pool admin API facade.
type Client struct {
	cfg  Config
	http *http.Client
}

// New constructs a pool gateway Client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "disburser/1.0"
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("poolapi: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// TestConnection reports whether the pool admin API is reachable and
// authenticated: true iff the listing endpoint answers with a 2xx status.
func (c *Client) TestConnection(ctx context.Context) bool {
	req, err := c.newRequest(ctx, http.MethodGet,
		fmt.Sprintf("/api/admin/pools/%s/payments/pending", c.cfg.PoolID), nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// pendingObligationWire is the wire shape of one pending payment. Amount
// is decoded as json.Number, never float64, so it can be parsed exactly by
// amount.ParseDecimal.
type pendingObligationWire struct {
	ID         int64       `json:"id"`
	Address    string      `json:"address"`
	Amount     json.Number `json:"amount"`
	CreatedUTC string      `json:"createdUtc"`
}

type pendingResponseWire struct {
	PoolID   string                  `json:"poolId"`
	Payments []pendingObligationWire `json:"payments"`
}

// GetPending fetches the pool's pending payment obligations. Any non-2xx
// response is treated as "the pool has nothing pending" rather than an
// error: the pool is allowed to return an empty list, and the disburser
// must not treat that as a batch-aborting failure.
func (c *Client) GetPending(ctx context.Context) []model.Obligation {
	req, err := c.newRequest(ctx, http.MethodGet,
		fmt.Sprintf("/api/admin/pools/%s/payments/pending", c.cfg.PoolID), nil)
	if err != nil {
		log.Errorf("building pending-payments request: %v", err)
		return nil
	}
	resp, err := c.http.Do(req)
	if err != nil {
		log.Warnf("pending-payments request failed: %v", err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warnf("pending-payments returned status %d", resp.StatusCode)
		return nil
	}

	var wire pendingResponseWire
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		log.Errorf("decoding pending-payments response: %v", err)
		return nil
	}

	obligations := make([]model.Obligation, 0, len(wire.Payments))
	for _, p := range wire.Payments {
		amt, err := amount.ParseDecimal(p.Amount.String())
		if err != nil {
			log.Errorf("skipping pending payment %d: invalid amount %q: %v", p.ID, p.Amount, err)
			continue
		}
		createdAt, err := time.Parse(time.RFC3339, p.CreatedUTC)
		if err != nil {
			createdAt = time.Time{}
		}
		obligations = append(obligations, model.Obligation{
			ID:        p.ID,
			Address:   p.Address,
			Amount:    amt,
			CreatedAt: createdAt,
		})
	}
	return obligations
}

type markCompletedRequestWire struct {
	PaymentID     int64  `json:"paymentId"`
	TransactionID string `json:"transactionId"`
}

// MarkCompleted notifies the pool that obligationID was paid by
// transactionID. It returns false (not an error) if the pool rejects the
// acknowledgement; this is best-effort — the local journal is
// authoritative regardless of whether this call succeeds.
func (c *Client) MarkCompleted(ctx context.Context, obligationID int64, transactionID string) bool {
	body, err := json.Marshal(markCompletedRequestWire{PaymentID: obligationID, TransactionID: transactionID})
	if err != nil {
		log.Errorf("marshaling mark-completed body: %v", err)
		return false
	}
	req, err := c.newRequest(ctx, http.MethodPost,
		fmt.Sprintf("/api/admin/pools/%s/payments/complete", c.cfg.PoolID), bytes.NewReader(body))
	if err != nil {
		log.Errorf("building mark-completed request: %v", err)
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		log.Warnf("mark-completed request for obligation %d failed: %v", obligationID, err)
		return false
	}
	defer resp.Body.Close()
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok {
		log.Warnf("mark-completed for obligation %d rejected with status %d", obligationID, resp.StatusCode)
	}
	return ok
}
