package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/web3-frozen/pool-dashboard/internal/fetcher"
	"github.com/web3-frozen/pool-dashboard/internal/fetcher/sources"
	"github.com/web3-frozen/pool-dashboard/internal/store"
)

// StatsSource is the slice of the fetcher the stats endpoints consume.
type StatsSource interface {
	DashboardStats(ctx context.Context) (*fetcher.DashboardStats, error)
	NetworkInfo(ctx context.Context) (*sources.NetworkInfo, error)
	GasPrice(ctx context.Context) (float64, error)
}

func Dashboard(f StatsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds, err := f.DashboardStats(r.Context())
		if errors.Is(err, fetcher.ErrNoData) {
			respondError(w, http.StatusServiceUnavailable, "no data available")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to build dashboard stats")
			return
		}
		respondOK(w, ds)
	}
}

func Network(f StatsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := f.NetworkInfo(r.Context())
		if errors.Is(err, fetcher.ErrNoData) {
			respondError(w, http.StatusServiceUnavailable, "no data available")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to load network stats")
			return
		}
		gwei, _ := f.GasPrice(r.Context())
		respondOK(w, map[string]any{
			"hashrate":       info.Hashrate,
			"difficulty":     info.Difficulty,
			"block_time_sec": info.BlockTimeSec,
			"pending_txs":    info.PendingTxs,
			"gas_price_gwei": gwei,
		})
	}
}

// NetworkHistory serves persisted network snapshots, oldest first.
func NetworkHistory(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", 500, 2000)
		stats, err := s.NetworkStatsSince(r.Context(), time.Now().UTC().Add(-24*time.Hour), limit)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to load network history")
			return
		}
		if stats == nil {
			stats = []store.NetworkStats{}
		}
		respondOK(w, stats)
	}
}

// StatsPools is the per-pool aggregate view backed by persisted snapshots
// rather than live fetches.
func StatsPools(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pools, err := s.ActivePoolsWithStats(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to load pool stats")
			return
		}
		if pools == nil {
			pools = []store.PoolWithStats{}
		}
		respondOK(w, pools)
	}
}
