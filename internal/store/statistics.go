package store

import (
	"context"
	"time"
)

func (s *Store) InsertStatistic(ctx context.Context, st *PoolStatistic) error {
	if st.ID == "" {
		st.ID = s.dialect.NewID()
	}
	if st.RecordedAt.IsZero() {
		st.RecordedAt = time.Now().UTC()
	}
	q := s.db.Rebind(`INSERT INTO pool_statistics
		(id, pool_id, recorded_at, hashrate, miners, blocks_found_24h, luck_7d, difficulty, block_time_sec, last_block_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, q,
		st.ID, st.PoolID, st.RecordedAt, st.Hashrate, st.Miners, st.BlocksFound24,
		st.Luck7d, st.Difficulty, st.BlockTimeSec, st.LastBlockAt)
	return s.mapErr(err)
}

// LatestStatistics returns up to n most recent rows for a pool, newest first.
// The alert engine reads n=1 or n=2.
func (s *Store) LatestStatistics(ctx context.Context, poolID string, n int) ([]PoolStatistic, error) {
	var stats []PoolStatistic
	q := s.db.Rebind(`SELECT id, pool_id, recorded_at, hashrate, miners, blocks_found_24h, luck_7d, difficulty, block_time_sec, last_block_at
		FROM pool_statistics WHERE pool_id = ?
		ORDER BY recorded_at DESC LIMIT ?`)
	err := s.db.SelectContext(ctx, &stats, q, poolID, n)
	return stats, err
}

// StatisticsSince returns a pool's statistics newer than since, oldest first.
func (s *Store) StatisticsSince(ctx context.Context, poolID string, since time.Time, limit int) ([]PoolStatistic, error) {
	var stats []PoolStatistic
	q := s.db.Rebind(`SELECT id, pool_id, recorded_at, hashrate, miners, blocks_found_24h, luck_7d, difficulty, block_time_sec, last_block_at
		FROM pool_statistics WHERE pool_id = ? AND recorded_at >= ?
		ORDER BY recorded_at ASC LIMIT ?`)
	err := s.db.SelectContext(ctx, &stats, q, poolID, since, limit)
	return stats, err
}
