package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/web3-frozen/pool-dashboard/internal/store"
)

// Default thresholds applied when a subscription does not carry one.
const (
	defaultHashrateDropPct = 20.0 // percent drop between consecutive snapshots
	defaultOfflineMinutes  = 10.0 // minutes without a fresh snapshot
	defaultLuckFloor       = 85.0 // 7d luck percent
)

// newBlockWindow bounds how far back a block counts as "new". Wider than the
// evaluation interval so a block is never missed between passes; the cooldown
// keeps the overlap from double-firing.
const newBlockWindow = 2 * time.Minute

type evaluation struct {
	fired   bool
	value   float64
	poolID  *string
	subject string
	message string
}

func (e *Engine) evaluate(ctx context.Context, sub store.SubscriptionWithPool) (evaluation, error) {
	switch sub.AlertType {
	case store.AlertHashrateDrop:
		return e.evalHashrateDrop(ctx, sub)
	case store.AlertPoolOffline:
		return e.evalPoolOffline(ctx, sub)
	case store.AlertLuckStreak:
		return e.evalLuckStreak(ctx, sub)
	case store.AlertNewBlock:
		return e.evalNewBlock(ctx, sub)
	case store.AlertProfitability:
		// Reserved extension point: accepted at subscribe time, never fires.
		return evaluation{}, nil
	}
	return evaluation{}, fmt.Errorf("unknown alert type %q", sub.AlertType)
}

// scopedPools resolves the pools a subscription watches: its own pool, or
// every active pool for a global subscription.
func (e *Engine) scopedPools(ctx context.Context, sub store.SubscriptionWithPool) ([]store.Pool, error) {
	if sub.PoolID != nil {
		p, err := e.store.GetPool(ctx, *sub.PoolID)
		if err != nil {
			return nil, err
		}
		return []store.Pool{*p}, nil
	}
	return e.store.ListActivePools(ctx)
}

func threshold(sub store.SubscriptionWithPool, fallback float64) float64 {
	if sub.Threshold != nil && *sub.Threshold > 0 {
		return *sub.Threshold
	}
	return fallback
}

// evalHashrateDrop compares the two most recent snapshots of each watched
// pool and fires when the percentage drop exceeds the threshold.
func (e *Engine) evalHashrateDrop(ctx context.Context, sub store.SubscriptionWithPool) (evaluation, error) {
	thr := threshold(sub, defaultHashrateDropPct)
	pools, err := e.scopedPools(ctx, sub)
	if err != nil {
		return evaluation{}, err
	}

	for _, pool := range pools {
		stats, err := e.store.LatestStatistics(ctx, pool.ID, 2)
		if err != nil {
			return evaluation{}, err
		}
		if len(stats) < 2 || stats[1].Hashrate <= 0 {
			continue
		}
		drop := (stats[1].Hashrate - stats[0].Hashrate) / stats[1].Hashrate * 100
		if drop > thr {
			return evaluation{
				fired:   true,
				value:   drop,
				poolID:  &pool.ID,
				subject: fmt.Sprintf("Hashrate drop on %s", pool.Name),
				message: fmt.Sprintf("%s hashrate dropped %.1f%% between snapshots (threshold %.1f%%)", pool.Name, drop, thr),
			}, nil
		}
	}
	return evaluation{}, nil
}

// evalPoolOffline fires when a watched pool's newest snapshot is older than
// the threshold in minutes. A pool with no snapshots at all is not "offline",
// it has simply never been collected.
func (e *Engine) evalPoolOffline(ctx context.Context, sub store.SubscriptionWithPool) (evaluation, error) {
	thr := threshold(sub, defaultOfflineMinutes)
	pools, err := e.scopedPools(ctx, sub)
	if err != nil {
		return evaluation{}, err
	}

	for _, pool := range pools {
		stats, err := e.store.LatestStatistics(ctx, pool.ID, 1)
		if err != nil {
			return evaluation{}, err
		}
		if len(stats) == 0 {
			continue
		}
		age := e.now().Sub(stats[0].RecordedAt).Minutes()
		if age > thr {
			return evaluation{
				fired:   true,
				value:   age,
				poolID:  &pool.ID,
				subject: fmt.Sprintf("%s appears offline", pool.Name),
				message: fmt.Sprintf("%s has not reported statistics for %.0f minutes (threshold %.0f)", pool.Name, age, thr),
			}, nil
		}
	}
	return evaluation{}, nil
}

// evalLuckStreak fires when a watched pool's latest 7d luck is below the
// threshold.
func (e *Engine) evalLuckStreak(ctx context.Context, sub store.SubscriptionWithPool) (evaluation, error) {
	thr := threshold(sub, defaultLuckFloor)
	pools, err := e.scopedPools(ctx, sub)
	if err != nil {
		return evaluation{}, err
	}

	for _, pool := range pools {
		stats, err := e.store.LatestStatistics(ctx, pool.ID, 1)
		if err != nil {
			return evaluation{}, err
		}
		if len(stats) == 0 || stats[0].Luck7d <= 0 {
			continue
		}
		if stats[0].Luck7d < thr {
			return evaluation{
				fired:   true,
				value:   stats[0].Luck7d,
				poolID:  &pool.ID,
				subject: fmt.Sprintf("Unlucky streak on %s", pool.Name),
				message: fmt.Sprintf("%s 7d luck is %.1f%%, below %.1f%%", pool.Name, stats[0].Luck7d, thr),
			}, nil
		}
	}
	return evaluation{}, nil
}

// evalNewBlock fires when a watched pool mined a block within the window.
func (e *Engine) evalNewBlock(ctx context.Context, sub store.SubscriptionWithPool) (evaluation, error) {
	poolID := ""
	if sub.PoolID != nil {
		poolID = *sub.PoolID
	}
	blocks, err := e.store.BlocksSince(ctx, poolID, e.now().Add(-newBlockWindow))
	if err != nil {
		return evaluation{}, err
	}
	if len(blocks) == 0 {
		return evaluation{}, nil
	}

	b := blocks[0]
	name := b.PoolID
	if sub.PoolName != nil {
		name = *sub.PoolName
	} else if p, err := e.store.GetPool(ctx, b.PoolID); err == nil {
		name = p.Name
	}
	return evaluation{
		fired:   true,
		value:   float64(b.Number),
		poolID:  &b.PoolID,
		subject: fmt.Sprintf("New block by %s", name),
		message: fmt.Sprintf("%s mined block #%d (reward %.3f ETH)", name, b.Number, b.Reward),
	}, nil
}
