package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/simon-relay/internal/domain/model"
)

// Client talks to the relay HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client with the given per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// StartSession posts /start for username.
func (c *Client) StartSession(ctx context.Context, username string) error {
	body, err := json.Marshal(map[string]string{"username": username})
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPost, "/start", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("start %s: status %d: %s", username, resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

// StoredScores reads the persisted record count from GET /stats.
func (c *Client) StoredScores(ctx context.Context) (int64, error) {
	resp, err := c.do(ctx, http.MethodGet, "/stats", nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("stats: status %d", resp.StatusCode)
	}
	var stats struct {
		StoredScores *int64 `json:"storedScores"`
		StoreError   string `json:"storeError"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return 0, fmt.Errorf("stats: %w", err)
	}
	if stats.StoredScores == nil {
		return 0, fmt.Errorf("stats: no stored score count (%s)", stats.StoreError)
	}
	return *stats.StoredScores, nil
}

// LatestScores fetches GET /scores?limit=n.
func (c *Client) LatestScores(ctx context.Context, n int) ([]model.ScoreRecord, error) {
	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/scores?limit=%d", n), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scores: status %d", resp.StatusCode)
	}
	var out []model.ScoreRecord
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("scores: %w", err)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var r io.Reader = http.NoBody
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.client.Do(req)
}
