package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const blockchairAPI = "https://api.blockchair.com"

// NetworkClient fetches chain-wide stats from a Blockchair-compatible API.
type NetworkClient struct {
	client  *http.Client
	baseURL string
}

func NewNetworkClient(baseURL string, client *http.Client) *NetworkClient {
	if baseURL == "" {
		baseURL = blockchairAPI
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &NetworkClient{client: client, baseURL: baseURL}
}

// NetworkInfo is the normalized chain-wide snapshot shape.
type NetworkInfo struct {
	Hashrate     float64
	Difficulty   float64
	BlockTimeSec float64
	PendingTxs   int
}

type networkStatsResponse struct {
	Data struct {
		Hashrate24h         string  `json:"hashrate_24h"`
		Difficulty          float64 `json:"difficulty"`
		MempoolTransactions int     `json:"mempool_transactions"`
		BlockTime           float64 `json:"block_time"`
	} `json:"data"`
}

func (c *NetworkClient) Stats(ctx context.Context) (*NetworkInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ethereum/stats", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network stats: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("network stats: status %d", resp.StatusCode)
	}

	var nr networkStatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&nr); err != nil {
		return nil, fmt.Errorf("decode network stats: %w", err)
	}
	if nr.Data.Difficulty <= 0 {
		return nil, fmt.Errorf("network stats: empty difficulty")
	}

	// hashrate_24h arrives as a decimal string (H/s)
	hashrate, err := strconv.ParseFloat(nr.Data.Hashrate24h, 64)
	if err != nil {
		return nil, fmt.Errorf("parse hashrate: %w", err)
	}

	return &NetworkInfo{
		Hashrate:     hashrate,
		Difficulty:   nr.Data.Difficulty,
		BlockTimeSec: nr.Data.BlockTime,
		PendingTxs:   nr.Data.MempoolTransactions,
	}, nil
}
