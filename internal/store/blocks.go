package store

import (
	"context"
	"time"
)

func (s *Store) InsertBlock(ctx context.Context, b *Block) error {
	if b.ID == "" {
		b.ID = s.dialect.NewID()
	}
	if b.MinedAt.IsZero() {
		b.MinedAt = time.Now().UTC()
	}
	q := s.db.Rebind(`INSERT INTO blocks (id, pool_id, number, mined_at, reward, miners, difficulty, hash, uncle)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, q,
		b.ID, b.PoolID, b.Number, b.MinedAt, b.Reward, b.Miners, b.Difficulty, b.Hash, b.Uncle)
	return s.mapErr(err)
}

// ListBlocks returns a pool's blocks newest first plus the total count for
// pagination.
func (s *Store) ListBlocks(ctx context.Context, poolID string, limit, offset int) ([]Block, int, error) {
	var total int
	q := s.db.Rebind(`SELECT COUNT(*) FROM blocks WHERE pool_id = ?`)
	if err := s.db.GetContext(ctx, &total, q, poolID); err != nil {
		return nil, 0, err
	}

	var blocks []Block
	q = s.db.Rebind(`SELECT id, pool_id, number, mined_at, reward, miners, difficulty, hash, uncle
		FROM blocks WHERE pool_id = ?
		ORDER BY mined_at DESC LIMIT ? OFFSET ?`)
	if err := s.db.SelectContext(ctx, &blocks, q, poolID, limit, offset); err != nil {
		return nil, 0, err
	}
	return blocks, total, nil
}

// BlocksSince returns blocks mined after since, newest first. poolID empty
// means all pools.
func (s *Store) BlocksSince(ctx context.Context, poolID string, since time.Time) ([]Block, error) {
	var blocks []Block
	if poolID == "" {
		q := s.db.Rebind(`SELECT id, pool_id, number, mined_at, reward, miners, difficulty, hash, uncle
			FROM blocks WHERE mined_at >= ? ORDER BY mined_at DESC`)
		err := s.db.SelectContext(ctx, &blocks, q, since)
		return blocks, err
	}
	q := s.db.Rebind(`SELECT id, pool_id, number, mined_at, reward, miners, difficulty, hash, uncle
		FROM blocks WHERE pool_id = ? AND mined_at >= ? ORDER BY mined_at DESC`)
	err := s.db.SelectContext(ctx, &blocks, q, poolID, since)
	return blocks, err
}

// RecentBlocks returns the newest blocks across all pools.
func (s *Store) RecentBlocks(ctx context.Context, limit int) ([]Block, error) {
	var blocks []Block
	q := s.db.Rebind(`SELECT id, pool_id, number, mined_at, reward, miners, difficulty, hash, uncle
		FROM blocks ORDER BY mined_at DESC LIMIT ?`)
	err := s.db.SelectContext(ctx, &blocks, q, limit)
	return blocks, err
}

func (s *Store) CountBlocksSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	q := s.db.Rebind(`SELECT COUNT(*) FROM blocks WHERE mined_at >= ?`)
	err := s.db.GetContext(ctx, &count, q, since)
	return count, err
}
