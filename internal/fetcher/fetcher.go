// Package fetcher produces normalized dashboard, pool and network data from
// several independent upstream APIs, with a write-through TTL cache in front
// and a per-deployment fallback policy behind: stale cache, then hard-coded
// defaults (FallbackStale) or a definitive ErrNoData (FallbackStrict) so the
// API layer can answer 503 instead of serving fake numbers.
package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/web3-frozen/pool-dashboard/internal/cache"
	"github.com/web3-frozen/pool-dashboard/internal/config"
	"github.com/web3-frozen/pool-dashboard/internal/fetcher/sources"
	"github.com/web3-frozen/pool-dashboard/internal/store"
)

// ErrNoData signals that every upstream and the cache are exhausted. Only
// returned under the strict fallback policy.
var ErrNoData = errors.New("fetcher: no data available")

// Hard-coded last-resort values, used by the stale policy when an upstream
// has never answered.
const (
	fallbackEthPrice    = 3500.0
	fallbackGasGwei     = 25.0
	fallbackNetHashrate = 9e14
	fallbackDifficulty  = 1.2e16
	fallbackBlockTime   = 13.4
	fallbackPendingTxs  = 150000
)

const (
	keyEthPrice  = "eth_price"
	keyGasPrice  = "gas_price"
	keyNetwork   = "network_stats"
	keyDashboard = "dashboard_stats"
	keyPool      = "pool:" // + pool ID
)

type priceSource interface {
	EthPrice(ctx context.Context) (float64, error)
}

type gasSource interface {
	GasPrice(ctx context.Context) (float64, error)
}

type networkSource interface {
	Stats(ctx context.Context) (*sources.NetworkInfo, error)
}

type poolSource interface {
	Fetch(ctx context.Context, url string) (*sources.PoolStats, error)
}

// DashboardStats is the aggregate the frontend polls.
type DashboardStats struct {
	TotalHashrate     float64       `json:"total_hashrate"`
	TotalMiners       int           `json:"total_miners"`
	ActivePools       int           `json:"active_pools"`
	Blocks24h         int           `json:"blocks_24h"`
	RecentBlocks      []store.Block `json:"recent_blocks"`
	NetworkDifficulty float64       `json:"network_difficulty"`
	EthPrice          float64       `json:"eth_price"`
	GasPriceGwei      float64       `json:"gas_price_gwei"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// BlockEvent describes a block discovered during a snapshot.
type BlockEvent struct {
	Number     int64
	Reward     float64
	Hash       string
	Difficulty float64
	Miners     int
}

// PoolSnapshot is one pool's normalized statistics plus an optional block
// discovered in the same pass.
type PoolSnapshot struct {
	Stats    sources.PoolStats
	NewBlock *BlockEvent
}

type Service struct {
	store  *store.Store
	cache  cache.Cache
	logger *slog.Logger
	policy config.FallbackPolicy
	ttl    time.Duration

	price   priceSource
	gas     gasSource
	network networkSource
	poolAPI poolSource
	scraper poolSource // nil unless scrape fallback is enabled

	sim *simulator
}

func New(st *store.Store, c cache.Cache, cfg config.Config, logger *slog.Logger) *Service {
	s := &Service{
		store:   st,
		cache:   c,
		logger:  logger,
		policy:  cfg.FallbackPolicy,
		ttl:     cfg.CacheTTL,
		price:   sources.NewPriceClient("", nil),
		gas:     sources.NewGasClient("", "", nil),
		network: sources.NewNetworkClient("", nil),
		poolAPI: sources.NewPoolAPIClient(nil),
		sim:     newSimulator(),
	}
	if cfg.ScrapeFallback {
		s.scraper = sources.NewScraper(logger)
	}
	return s
}

// EthPrice returns the ETH spot price in USD.
func (s *Service) EthPrice(ctx context.Context) (float64, error) {
	return s.cachedFloat(ctx, keyEthPrice, s.price.EthPrice, fallbackEthPrice)
}

// GasPrice returns the current gas price in gwei.
func (s *Service) GasPrice(ctx context.Context) (float64, error) {
	return s.cachedFloat(ctx, keyGasPrice, s.gas.GasPrice, fallbackGasGwei)
}

// NetworkInfo returns chain-wide totals.
func (s *Service) NetworkInfo(ctx context.Context) (*sources.NetworkInfo, error) {
	if b, ok := s.cache.Get(ctx, keyNetwork); ok {
		var info sources.NetworkInfo
		if json.Unmarshal(b, &info) == nil {
			return &info, nil
		}
	}

	info, err := s.network.Stats(ctx)
	if err == nil {
		if b, merr := json.Marshal(info); merr == nil {
			s.cache.Set(ctx, keyNetwork, b, s.ttl)
		}
		return info, nil
	}
	s.logger.Warn("network stats fetch failed", "error", err)

	if b, ok := s.cache.GetStale(ctx, keyNetwork); ok {
		var stale sources.NetworkInfo
		if json.Unmarshal(b, &stale) == nil {
			return &stale, nil
		}
	}
	if s.policy == config.FallbackStrict {
		return nil, ErrNoData
	}
	return &sources.NetworkInfo{
		Hashrate:     fallbackNetHashrate,
		Difficulty:   fallbackDifficulty,
		BlockTimeSec: fallbackBlockTime,
		PendingTxs:   fallbackPendingTxs,
	}, nil
}

// PoolSnapshot returns one pool's current statistics. Pools without an API
// URL are simulated from per-pool variation state. A failure here is
// per-pool: the caller isolates it, there is no policy fallback to fake data.
func (s *Service) PoolSnapshot(ctx context.Context, pool store.Pool) (*PoolSnapshot, error) {
	if pool.APIURL == "" {
		return s.sim.snapshot(pool), nil
	}

	key := keyPool + pool.ID
	if b, ok := s.cache.Get(ctx, key); ok {
		var stats sources.PoolStats
		if json.Unmarshal(b, &stats) == nil {
			return &PoolSnapshot{Stats: stats}, nil
		}
	}

	stats, err := s.poolAPI.Fetch(ctx, pool.APIURL)
	if err != nil && s.scraper != nil {
		s.logger.Warn("pool API failed, trying scrape fallback", "pool", pool.Name, "error", err)
		stats, err = s.scraper.Fetch(ctx, pool.APIURL)
	}
	if err == nil {
		if stats.Luck7d <= 0 {
			// Providers rarely report luck; a randomized value around 100 is
			// the documented approximation, not a bug.
			stats.Luck7d = s.sim.randomLuck()
		}
		if b, merr := json.Marshal(stats); merr == nil {
			s.cache.Set(ctx, key, b, s.ttl)
		}
		return &PoolSnapshot{Stats: *stats}, nil
	}
	s.logger.Warn("pool fetch failed", "pool", pool.Name, "error", err)

	if b, ok := s.cache.GetStale(ctx, key); ok {
		var stale sources.PoolStats
		if json.Unmarshal(b, &stale) == nil {
			return &PoolSnapshot{Stats: stale}, nil
		}
	}
	return nil, fmt.Errorf("pool %s: %w", pool.Name, err)
}

// DashboardStats aggregates the pool list plus independently fetched price
// and network values: parallel fan-out, one join point, pointwise sums.
func (s *Service) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	if b, ok := s.cache.Get(ctx, keyDashboard); ok {
		var ds DashboardStats
		if json.Unmarshal(b, &ds) == nil {
			return &ds, nil
		}
	}

	pools, err := s.store.ListActivePools(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		ds    = DashboardStats{ActivePools: len(pools), UpdatedAt: time.Now().UTC()}
		snaps = make([]*PoolSnapshot, len(pools))
	)

	for i, p := range pools {
		wg.Add(1)
		go func(i int, p store.Pool) {
			defer wg.Done()
			snap, err := s.PoolSnapshot(ctx, p)
			if err != nil {
				s.logger.Warn("dashboard pool fetch failed", "pool", p.Name, "error", err)
				return
			}
			snaps[i] = snap
		}(i, p)
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		price, err := s.EthPrice(ctx)
		if err == nil {
			mu.Lock()
			ds.EthPrice = price
			mu.Unlock()
		}
	}()
	go func() {
		defer wg.Done()
		gwei, err := s.GasPrice(ctx)
		if err == nil {
			mu.Lock()
			ds.GasPriceGwei = gwei
			mu.Unlock()
		}
	}()
	go func() {
		defer wg.Done()
		info, err := s.NetworkInfo(ctx)
		if err == nil {
			mu.Lock()
			ds.NetworkDifficulty = info.Difficulty
			mu.Unlock()
		}
	}()

	wg.Wait()

	ok := 0
	for _, snap := range snaps {
		if snap == nil {
			continue
		}
		ok++
		ds.TotalHashrate += snap.Stats.Hashrate
		ds.TotalMiners += snap.Stats.Miners
		ds.Blocks24h += snap.Stats.Blocks24h
	}

	noData := len(pools) > 0 && ok == 0
	if noData {
		if b, found := s.cache.GetStale(ctx, keyDashboard); found {
			var stale DashboardStats
			if json.Unmarshal(b, &stale) == nil {
				return &stale, nil
			}
		}
		if s.policy == config.FallbackStrict {
			return nil, ErrNoData
		}
	}

	if blocks, berr := s.store.RecentBlocks(ctx, 10); berr == nil {
		ds.RecentBlocks = blocks
	}

	// A zeroed aggregate from a fully failed pass is served but never cached:
	// it must not become the next pass's "last known good".
	if !noData {
		if b, merr := json.Marshal(ds); merr == nil {
			s.cache.Set(ctx, keyDashboard, b, s.ttl)
		}
	}
	return &ds, nil
}

func (s *Service) cachedFloat(ctx context.Context, key string, fetch func(context.Context) (float64, error), fallback float64) (float64, error) {
	if b, ok := s.cache.Get(ctx, key); ok {
		var v float64
		if json.Unmarshal(b, &v) == nil {
			return v, nil
		}
	}

	v, err := fetch(ctx)
	if err == nil {
		if b, merr := json.Marshal(v); merr == nil {
			s.cache.Set(ctx, key, b, s.ttl)
		}
		return v, nil
	}
	s.logger.Warn("upstream fetch failed", "key", key, "error", err)

	if b, ok := s.cache.GetStale(ctx, key); ok {
		var stale float64
		if json.Unmarshal(b, &stale) == nil {
			return stale, nil
		}
	}
	if s.policy == config.FallbackStrict {
		return 0, ErrNoData
	}
	return fallback, nil
}
