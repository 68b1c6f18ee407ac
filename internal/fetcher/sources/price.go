// Package sources holds one small client per upstream API. Each client takes
// an injectable base URL and http.Client so tests can point it at a local
// httptest server.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const coingeckoAPI = "https://api.coingecko.com/api/v3"

// PriceClient fetches the ETH spot price from a CoinGecko-compatible API.
type PriceClient struct {
	client  *http.Client
	baseURL string
}

func NewPriceClient(baseURL string, client *http.Client) *PriceClient {
	if baseURL == "" {
		baseURL = coingeckoAPI
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &PriceClient{client: client, baseURL: baseURL}
}

type priceResponse struct {
	Ethereum struct {
		USD float64 `json:"usd"`
	} `json:"ethereum"`
}

func (c *PriceClient) EthPrice(ctx context.Context) (float64, error) {
	url := c.baseURL + "/simple/price?ids=ethereum&vs_currencies=usd"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("price API: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price API: status %d", resp.StatusCode)
	}

	var pr priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return 0, fmt.Errorf("decode price: %w", err)
	}
	if pr.Ethereum.USD <= 0 {
		return 0, fmt.Errorf("price API: empty price")
	}
	return pr.Ethereum.USD, nil
}
