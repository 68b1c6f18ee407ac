package store

import (
	"context"
	"fmt"
	"time"
)

func (s *Store) CreatePool(ctx context.Context, p *Pool) error {
	if p.ID == "" {
		p.ID = s.dialect.NewID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	q := s.db.Rebind(`INSERT INTO pools (id, name, api_url, fee_pct, payout_method, status, min_payout, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, q,
		p.ID, p.Name, p.APIURL, p.FeePct, p.PayoutMethod, p.Status, p.MinPayout, p.CreatedAt)
	return s.mapErr(err)
}

func (s *Store) GetPool(ctx context.Context, id string) (*Pool, error) {
	var p Pool
	q := s.db.Rebind(`SELECT id, name, api_url, fee_pct, payout_method, status, min_payout, created_at
		FROM pools WHERE id = ?`)
	if err := s.db.GetContext(ctx, &p, q, id); err != nil {
		return nil, s.mapErr(err)
	}
	return &p, nil
}

func (s *Store) ListActivePools(ctx context.Context) ([]Pool, error) {
	var pools []Pool
	err := s.db.SelectContext(ctx, &pools,
		`SELECT id, name, api_url, fee_pct, payout_method, status, min_payout, created_at
		FROM pools WHERE status = 'active' ORDER BY name`)
	return pools, err
}

func (s *Store) UpdatePoolStatus(ctx context.Context, id, status string) error {
	q := s.db.Rebind(`UPDATE pools SET status = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, q, status, id)
	if err != nil {
		return s.mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const poolWithStatsColumns = `
	p.id, p.name, p.api_url, p.fee_pct, p.payout_method, p.status, p.min_payout, p.created_at,
	s.hashrate, s.miners, s.blocks_found_24h, s.luck_7d, s.difficulty, s.block_time_sec, s.recorded_at`

// ActivePoolsWithStats returns active pools with their most recent statistic
// joined in (stat columns nil for pools not yet collected).
func (s *Store) ActivePoolsWithStats(ctx context.Context) ([]PoolWithStats, error) {
	var pools []PoolWithStats
	err := s.db.SelectContext(ctx, &pools, fmt.Sprintf(`
		SELECT %s
		FROM pools p
		LEFT JOIN pool_statistics s ON s.id = (
			SELECT id FROM pool_statistics WHERE pool_id = p.id
			ORDER BY recorded_at DESC LIMIT 1)
		WHERE p.status = 'active'
		ORDER BY p.name`, poolWithStatsColumns))
	return pools, err
}

// GetPoolWithStats returns one pool (any status) with its latest statistic.
func (s *Store) GetPoolWithStats(ctx context.Context, id string) (*PoolWithStats, error) {
	var p PoolWithStats
	q := s.db.Rebind(fmt.Sprintf(`
		SELECT %s
		FROM pools p
		LEFT JOIN pool_statistics s ON s.id = (
			SELECT id FROM pool_statistics WHERE pool_id = p.id
			ORDER BY recorded_at DESC LIMIT 1)
		WHERE p.id = ?`, poolWithStatsColumns))
	if err := s.db.GetContext(ctx, &p, q, id); err != nil {
		return nil, s.mapErr(err)
	}
	return &p, nil
}
