package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// PoolAPIClient fetches statistics from a pool's own API endpoint and
// normalizes them. Providers wrap the payload differently (bare object vs a
// "data" envelope), so both shapes are accepted.
type PoolAPIClient struct {
	client *http.Client
}

func NewPoolAPIClient(client *http.Client) *PoolAPIClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &PoolAPIClient{client: client}
}

// PoolStats is the normalized per-pool shape. Luck7d is 0 when the provider
// does not report one; the fetcher substitutes its documented approximation.
type PoolStats struct {
	Hashrate     float64    `json:"hashrate"`
	Miners       int        `json:"miners"`
	Blocks24h    int        `json:"blocks_24h"`
	Luck7d       float64    `json:"luck_7d"`
	Difficulty   float64    `json:"difficulty"`
	BlockTimeSec float64    `json:"block_time"`
	LastBlockAt  *time.Time `json:"last_block_at"`
}

type poolStatsEnvelope struct {
	Data *PoolStats `json:"data"`
	PoolStats
}

func (c *PoolAPIClient) Fetch(ctx context.Context, apiURL string) (*PoolStats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pool API: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pool API: status %d", resp.StatusCode)
	}

	var env poolStatsEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode pool stats: %w", err)
	}

	stats := env.PoolStats
	if env.Data != nil {
		stats = *env.Data
	}
	if stats.Hashrate <= 0 {
		return nil, fmt.Errorf("pool API: empty hashrate")
	}
	return &stats, nil
}
