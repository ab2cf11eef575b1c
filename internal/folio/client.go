// Package folio posts room charges to the property's billing system.
package folio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/outlet-pos/api/internal/apperr"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const defaultTimeout = 10 * time.Second

// Line is one bill line shown on the guest's folio.
type Line struct {
	Description string          `json:"description"`
	Quantity    int32           `json:"quantity"`
	Amount      decimal.Decimal `json:"amount"`
}

type chargeRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Lines  []Line          `json:"lines"`
}

type chargeResponse struct {
	ChargeID string `json:"charge_id"`
	Error    string `json:"error"`
}

// Client talks to the folio API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a folio client allowing rps requests per second.
// rps <= 0 disables throttling.
func NewClient(baseURL, apiKey string, rps float64) *Client {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: defaultTimeout},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// PostCharge posts amount to a guest folio and returns the charge id.
// The folio system treats repeated keys as the same charge. A 4xx answer
// means the folio refused the charge and is reported as VALIDATION.
func (c *Client) PostCharge(ctx context.Context, folioID string, amount decimal.Decimal, lines []Line, idempotencyKey string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("folio rate limit: %w", err)
	}

	body, err := json.Marshal(chargeRequest{Amount: amount, Lines: lines})
	if err != nil {
		return "", fmt.Errorf("encode charge: %w", err)
	}

	url := fmt.Sprintf("%s/folios/%s/charges", c.baseURL, folioID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("post charge: %w", err)
	}
	defer resp.Body.Close()

	var out chargeResponse
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil && resp.StatusCode < 300 {
			return "", fmt.Errorf("decode response: %w", err)
		}
	}

	switch {
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("folio returned %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		reason := out.Error
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		return "", apperr.Validation("folio %s refused the charge: %s", folioID, reason)
	}
	if out.ChargeID == "" {
		return "", fmt.Errorf("folio returned no charge id")
	}
	return out.ChargeID, nil
}
