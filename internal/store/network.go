package store

import (
	"context"
	"time"
)

func (s *Store) InsertNetworkStats(ctx context.Context, n *NetworkStats) error {
	if n.ID == "" {
		n.ID = s.dialect.NewID()
	}
	if n.RecordedAt.IsZero() {
		n.RecordedAt = time.Now().UTC()
	}
	q := s.db.Rebind(`INSERT INTO network_stats (id, recorded_at, hashrate, difficulty, block_time_sec, pending_txs, gas_price_gwei)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, q,
		n.ID, n.RecordedAt, n.Hashrate, n.Difficulty, n.BlockTimeSec, n.PendingTxs, n.GasPriceGwei)
	return s.mapErr(err)
}

func (s *Store) LatestNetworkStats(ctx context.Context) (*NetworkStats, error) {
	var n NetworkStats
	err := s.db.GetContext(ctx, &n, `
		SELECT id, recorded_at, hashrate, difficulty, block_time_sec, pending_txs, gas_price_gwei
		FROM network_stats ORDER BY recorded_at DESC LIMIT 1`)
	if err != nil {
		return nil, s.mapErr(err)
	}
	return &n, nil
}

// NetworkStatsSince returns snapshots newer than since, oldest first.
func (s *Store) NetworkStatsSince(ctx context.Context, since time.Time, limit int) ([]NetworkStats, error) {
	var stats []NetworkStats
	q := s.db.Rebind(`SELECT id, recorded_at, hashrate, difficulty, block_time_sec, pending_txs, gas_price_gwei
		FROM network_stats WHERE recorded_at >= ?
		ORDER BY recorded_at ASC LIMIT ?`)
	err := s.db.SelectContext(ctx, &stats, q, since, limit)
	return stats, err
}
