// Package client provides an HTTP client for the txrank scoring service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Score holds the priority details derived for a transaction.
type Score struct {
	Signature        string `json:"signature"`
	Priority         uint64 `json:"priority"`
	ComputeUnitLimit uint64 `json:"compute_unit_limit"`
	Unresolved       bool   `json:"unresolved,omitempty"`
}

// StoredScore is a score persisted by the block-scoring worker.
type StoredScore struct {
	Signature        string     `json:"signature"`
	Slot             int64      `json:"slot"`
	BlockTime        *time.Time `json:"block_time,omitempty"`
	Priority         int64      `json:"priority"`
	ComputeUnitLimit int64      `json:"compute_unit_limit"`
	Fee              int64      `json:"fee"`
	Unresolved       bool       `json:"unresolved,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// RankingEntry is one entry of the server's in-memory ranking.
type RankingEntry struct {
	Signature        string `json:"signature"`
	Slot             uint64 `json:"slot"`
	Priority         uint64 `json:"priority"`
	ComputeUnitLimit uint64 `json:"compute_unit_limit"`
	Unresolved       bool   `json:"unresolved,omitempty"`
}

// BlockSelection is the result of a greedy block selection.
type BlockSelection struct {
	MaxComputeUnits  uint64         `json:"max_compute_units"`
	ComputeUnitsUsed uint64         `json:"compute_units_used"`
	Transactions     []RankingEntry `json:"transactions"`
}

// Client is the HTTP client for the txrank scoring service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new scoring service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Score submits a base64-encoded wire transaction for scoring and returns its
// priority details.
func (c *Client) Score(ctx context.Context, transactionBase64 string) (*Score, error) {
	reqBody := map[string]interface{}{
		"transaction": transactionBase64,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/score", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var score Score
	if err := json.NewDecoder(resp.Body).Decode(&score); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug("transaction scored", "signature", score.Signature, "priority", score.Priority)
	return &score, nil
}

// Rankings retrieves the server's current ranking in descending priority
// order. A non-positive limit returns all entries.
func (c *Client) Rankings(ctx context.Context, limit int) ([]RankingEntry, error) {
	u := c.baseURL + "/api/v1/rankings"
	if limit > 0 {
		u += "?limit=" + strconv.Itoa(limit)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var response struct {
		Rankings []RankingEntry `json:"rankings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return response.Rankings, nil
}

// SelectBlock asks the server for the highest-priority ranked transactions
// fitting within maxComputeUnits. Zero uses the server's default budget.
func (c *Client) SelectBlock(ctx context.Context, maxComputeUnits uint64) (*BlockSelection, error) {
	u := c.baseURL + "/api/v1/rankings/block"
	if maxComputeUnits > 0 {
		u += "?max_compute_units=" + strconv.FormatUint(maxComputeUnits, 10)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var selection BlockSelection
	if err := json.NewDecoder(resp.Body).Decode(&selection); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &selection, nil
}

// GetScore retrieves the persisted score for a transaction signature.
func (c *Client) GetScore(ctx context.Context, signature string) (*StoredScore, error) {
	u := fmt.Sprintf("%s/api/v1/scores/%s", c.baseURL, url.PathEscape(signature))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var score StoredScore
	if err := json.NewDecoder(resp.Body).Decode(&score); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &score, nil
}

// ListScores retrieves the top persisted scores in descending priority order.
func (c *Client) ListScores(ctx context.Context, limit, offset int) ([]StoredScore, error) {
	u, err := url.Parse(c.baseURL + "/api/v1/scores")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	q := u.Query()
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var response struct {
		Scores []StoredScore `json:"scores"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return response.Scores, nil
}

// ListScoresBySlot retrieves all persisted scores for a slot.
func (c *Client) ListScoresBySlot(ctx context.Context, slot int64) ([]StoredScore, error) {
	u := fmt.Sprintf("%s/api/v1/scores?slot=%d", c.baseURL, slot)
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var response struct {
		Scores []StoredScore `json:"scores"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return response.Scores, nil
}

// ScoreBlock asks the server to score a finalized block once. Slot zero scores
// the latest finalized block.
func (c *Client) ScoreBlock(ctx context.Context, slot uint64) error {
	body, err := json.Marshal(map[string]interface{}{"slot": slot})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/score/block", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	c.logger.Debug("block scored", "slot", slot)
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed: %s", errResp.Error)
}
