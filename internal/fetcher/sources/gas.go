package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const etherscanAPI = "https://api.etherscan.io"

// GasClient fetches the current gas price from an Etherscan-style gas oracle.
type GasClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func NewGasClient(baseURL, apiKey string, client *http.Client) *GasClient {
	if baseURL == "" {
		baseURL = etherscanAPI
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GasClient{client: client, baseURL: baseURL, apiKey: apiKey}
}

type gasOracleResponse struct {
	Status string `json:"status"`
	Result struct {
		ProposeGasPrice string `json:"ProposeGasPrice"`
	} `json:"result"`
}

// GasPrice returns the proposed gas price in gwei.
func (c *GasClient) GasPrice(ctx context.Context) (float64, error) {
	url := c.baseURL + "/api?module=gastracker&action=gasoracle"
	if c.apiKey != "" {
		url += "&apikey=" + c.apiKey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("gas oracle: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("gas oracle: status %d", resp.StatusCode)
	}

	var gr gasOracleResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return 0, fmt.Errorf("decode gas oracle: %w", err)
	}
	if gr.Status != "1" {
		return 0, fmt.Errorf("gas oracle: status %q", gr.Status)
	}
	gwei, err := strconv.ParseFloat(gr.Result.ProposeGasPrice, 64)
	if err != nil {
		return 0, fmt.Errorf("parse gas price: %w", err)
	}
	return gwei, nil
}
