// Package collector runs the periodic collection loop: every interval it
// snapshots each active pool plus the network, persists the results, and
// pushes live updates to connected WebSocket clients.
package collector

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/web3-frozen/pool-dashboard/internal/fetcher"
	"github.com/web3-frozen/pool-dashboard/internal/fetcher/sources"
	"github.com/web3-frozen/pool-dashboard/internal/metrics"
	"github.com/web3-frozen/pool-dashboard/internal/store"
)

// Snapshotter is the slice of the fetcher the collector consumes.
type Snapshotter interface {
	PoolSnapshot(ctx context.Context, pool store.Pool) (*fetcher.PoolSnapshot, error)
	NetworkInfo(ctx context.Context) (*sources.NetworkInfo, error)
	GasPrice(ctx context.Context) (float64, error)
}

// Broadcaster pushes collected data to live subscribers. The WebSocket hub
// implements it; a no-op is fine in tests.
type Broadcaster interface {
	BroadcastPoolUpdate(pool store.Pool, stat store.PoolStatistic)
	BroadcastNetworkUpdate(ns store.NetworkStats)
	BroadcastNewBlock(b store.Block)
}

type Collector struct {
	store    *store.Store
	fetcher  Snapshotter
	hub      Broadcaster
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(st *store.Store, f Snapshotter, hub Broadcaster, logger *slog.Logger, interval time.Duration) *Collector {
	return &Collector{
		store:    st,
		fetcher:  f,
		hub:      hub,
		logger:   logger,
		interval: interval,
	}
}

// Start launches the collection loop. The first pass runs immediately, then
// one per interval. Calling Start on a running collector is a logged no-op.
func (c *Collector) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		c.logger.Warn("collector already running")
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	c.running = true

	go func() {
		defer close(c.done)
		c.logger.Info("collector started", "interval", c.interval)

		c.Collect(ctx)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Collect(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for the in-flight pass to finish. Safe to
// call on a stopped collector.
func (c *Collector) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done
	c.logger.Info("collector stopped")
}

// Collect runs one pass. A failing pool is logged and skipped, never aborting
// the rest of the pass.
func (c *Collector) Collect(ctx context.Context) {
	pools, err := c.store.ListActivePools(ctx)
	if err != nil {
		c.logger.Error("collector: list pools", "error", err)
		return
	}

	for _, pool := range pools {
		if err := c.collectPool(ctx, pool); err != nil {
			metrics.CollectorPoolErrors.Inc()
			c.logger.Warn("collector: pool failed", "pool", pool.Name, "error", err)
		}
	}

	c.collectNetwork(ctx)
	metrics.CollectorPasses.Inc()
}

func (c *Collector) collectPool(ctx context.Context, pool store.Pool) error {
	snap, err := c.fetcher.PoolSnapshot(ctx, pool)
	if err != nil {
		return err
	}

	stat := store.PoolStatistic{
		PoolID:        pool.ID,
		Hashrate:      snap.Stats.Hashrate,
		Miners:        snap.Stats.Miners,
		BlocksFound24: snap.Stats.Blocks24h,
		Luck7d:        snap.Stats.Luck7d,
		Difficulty:    snap.Stats.Difficulty,
		BlockTimeSec:  snap.Stats.BlockTimeSec,
		LastBlockAt:   snap.Stats.LastBlockAt,
	}
	if err := c.store.InsertStatistic(ctx, &stat); err != nil {
		return err
	}
	if c.hub != nil {
		c.hub.BroadcastPoolUpdate(pool, stat)
	}

	if snap.NewBlock != nil {
		block := store.Block{
			PoolID:     pool.ID,
			Number:     snap.NewBlock.Number,
			Reward:     snap.NewBlock.Reward,
			Miners:     snap.NewBlock.Miners,
			Difficulty: snap.NewBlock.Difficulty,
			Hash:       snap.NewBlock.Hash,
		}
		switch err := c.store.InsertBlock(ctx, &block); {
		case errors.Is(err, store.ErrDuplicate):
			// Same block reported twice across passes; first insert wins.
		case err != nil:
			return err
		default:
			if c.hub != nil {
				c.hub.BroadcastNewBlock(block)
			}
		}
	}
	return nil
}

func (c *Collector) collectNetwork(ctx context.Context) {
	info, err := c.fetcher.NetworkInfo(ctx)
	if err != nil {
		c.logger.Warn("collector: network stats unavailable", "error", err)
		return
	}
	gwei, err := c.fetcher.GasPrice(ctx)
	if err != nil {
		c.logger.Warn("collector: gas price unavailable", "error", err)
	}

	ns := store.NetworkStats{
		Hashrate:     info.Hashrate,
		Difficulty:   info.Difficulty,
		BlockTimeSec: info.BlockTimeSec,
		PendingTxs:   info.PendingTxs,
		GasPriceGwei: gwei,
	}
	if err := c.store.InsertNetworkStats(ctx, &ns); err != nil {
		c.logger.Error("collector: insert network stats", "error", err)
		return
	}
	if c.hub != nil {
		c.hub.BroadcastNetworkUpdate(ns)
	}
}
