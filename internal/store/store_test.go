package store

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "sqlite", ":memory:", slog.Default())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func mustCreatePool(t *testing.T, s *Store, name, status string) *Pool {
	t.Helper()
	p := &Pool{Name: name, FeePct: 1.0, PayoutMethod: PayoutPPLNS, Status: status, MinPayout: 0.01}
	if err := s.CreatePool(context.Background(), p); err != nil {
		t.Fatalf("CreatePool(%s): %v", name, err)
	}
	return p
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "oracle", "x", slog.Default()); err == nil {
		t.Error("Open with unknown driver: want error")
	}
}

func TestMigrateIdempotent(t *testing.T) {
	s := setupTestStore(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Errorf("second Migrate: %v", err)
	}
}

func TestSeedOnlyWhenEmpty(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.Seed(ctx); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	first, err := s.ListActivePools(ctx)
	if err != nil {
		t.Fatalf("ListActivePools: %v", err)
	}
	if len(first) == 0 {
		t.Fatal("seed inserted no active pools")
	}

	// Second seed must be a no-op.
	if err := s.Seed(ctx); err != nil {
		t.Fatalf("second Seed: %v", err)
	}
	second, _ := s.ListActivePools(ctx)
	if len(second) != len(first) {
		t.Errorf("pools after reseed = %d, want %d", len(second), len(first))
	}
}

func TestGetPoolNotFound(t *testing.T) {
	s := setupTestStore(t)
	if _, err := s.GetPool(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPool missing = %v, want ErrNotFound", err)
	}
}

func TestPoolIDsAreOpaqueHex(t *testing.T) {
	s := setupTestStore(t)
	p := mustCreatePool(t, s, "Alpha", StatusActive)
	if len(p.ID) != 32 {
		t.Errorf("sqlite pool id length = %d, want 32 hex chars", len(p.ID))
	}
}

func TestActivePoolsWithStats(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	active := mustCreatePool(t, s, "Active", StatusActive)
	mustCreatePool(t, s, "Down", StatusInactive)

	// Two snapshots; the join must pick the newer one.
	old := &PoolStatistic{PoolID: active.ID, RecordedAt: time.Now().Add(-time.Hour).UTC(), Hashrate: 100, Miners: 1, Luck7d: 99}
	if err := s.InsertStatistic(ctx, old); err != nil {
		t.Fatalf("InsertStatistic: %v", err)
	}
	fresh := &PoolStatistic{PoolID: active.ID, RecordedAt: time.Now().UTC(), Hashrate: 200, Miners: 2, Luck7d: 101}
	if err := s.InsertStatistic(ctx, fresh); err != nil {
		t.Fatalf("InsertStatistic: %v", err)
	}

	pools, err := s.ActivePoolsWithStats(ctx)
	if err != nil {
		t.Fatalf("ActivePoolsWithStats: %v", err)
	}
	if len(pools) != 1 {
		t.Fatalf("len = %d, want 1 (inactive pool excluded)", len(pools))
	}
	if pools[0].Hashrate == nil || *pools[0].Hashrate != 200 {
		t.Errorf("joined hashrate = %v, want 200", pools[0].Hashrate)
	}
}

func TestPoolWithNoStats(t *testing.T) {
	s := setupTestStore(t)
	p := mustCreatePool(t, s, "Fresh", StatusActive)

	got, err := s.GetPoolWithStats(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetPoolWithStats: %v", err)
	}
	if got.Hashrate != nil {
		t.Errorf("hashrate = %v, want nil for uncollected pool", got.Hashrate)
	}
}

func TestLatestStatisticsOrder(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := mustCreatePool(t, s, "Alpha", StatusActive)

	base := time.Now().UTC()
	for i, hr := range []float64{1000, 800} {
		st := &PoolStatistic{PoolID: p.ID, RecordedAt: base.Add(time.Duration(i) * time.Minute), Hashrate: hr}
		if err := s.InsertStatistic(ctx, st); err != nil {
			t.Fatalf("InsertStatistic: %v", err)
		}
	}

	stats, err := s.LatestStatistics(ctx, p.ID, 2)
	if err != nil {
		t.Fatalf("LatestStatistics: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("len = %d, want 2", len(stats))
	}
	if stats[0].Hashrate != 800 || stats[1].Hashrate != 1000 {
		t.Errorf("order = [%v, %v], want newest first [800, 1000]", stats[0].Hashrate, stats[1].Hashrate)
	}
}

func TestStatisticCascadeDelete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	// A statistic for a pool that never existed must be rejected.
	err := s.InsertStatistic(ctx, &PoolStatistic{PoolID: "ghost", Hashrate: 1})
	if err == nil {
		t.Error("InsertStatistic for unknown pool: want FK error")
	}
	if errors.Is(err, ErrDuplicate) {
		t.Errorf("FK violation mapped to ErrDuplicate: %v", err)
	}
}

func TestSubscriptionUnknownPoolNotDuplicate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	// Racing a subscribe against a pool delete must surface as a plain error,
	// not a 409-shaped duplicate.
	ghost := "ghost"
	sub := &AlertSubscription{Email: "a@b.com", PoolID: &ghost, AlertType: AlertNewBlock, IsActive: true}
	err := s.CreateSubscription(ctx, sub)
	if err == nil {
		t.Fatal("CreateSubscription for unknown pool: want FK error")
	}
	if errors.Is(err, ErrDuplicate) {
		t.Errorf("FK violation mapped to ErrDuplicate: %v", err)
	}
}

func TestBlockUniquePerPool(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := mustCreatePool(t, s, "Alpha", StatusActive)

	b := &Block{PoolID: p.ID, Number: 42, Reward: 2.0, Hash: "0xabc"}
	if err := s.InsertBlock(ctx, b); err != nil {
		t.Fatalf("InsertBlock: %v", err)
	}
	dup := &Block{PoolID: p.ID, Number: 42}
	if err := s.InsertBlock(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate block = %v, want ErrDuplicate", err)
	}
}

func TestListBlocksPagination(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := mustCreatePool(t, s, "Alpha", StatusActive)

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		b := &Block{PoolID: p.ID, Number: int64(i), MinedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.InsertBlock(ctx, b); err != nil {
			t.Fatalf("InsertBlock: %v", err)
		}
	}

	blocks, total, err := s.ListBlocks(ctx, p.ID, 2, 1)
	if err != nil {
		t.Fatalf("ListBlocks: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(blocks) != 2 {
		t.Fatalf("len = %d, want 2", len(blocks))
	}
	// Newest first, offset 1 skips block number 4.
	if blocks[0].Number != 3 {
		t.Errorf("first block number = %d, want 3", blocks[0].Number)
	}
}

func TestSubscriptionDuplicate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := mustCreatePool(t, s, "Alpha", StatusActive)

	sub := &AlertSubscription{Email: "a@b.c", PoolID: &p.ID, AlertType: AlertHashrateDrop, IsActive: true}
	if err := s.CreateSubscription(ctx, sub); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	dup := &AlertSubscription{Email: "a@b.c", PoolID: &p.ID, AlertType: AlertHashrateDrop, IsActive: true}
	if err := s.CreateSubscription(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate subscription = %v, want ErrDuplicate", err)
	}
}

func TestGlobalSubscriptionDuplicate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	// pool_id NULL still participates in uniqueness.
	sub := &AlertSubscription{Email: "a@b.c", AlertType: AlertNewBlock, IsActive: true}
	if err := s.CreateSubscription(ctx, sub); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	dup := &AlertSubscription{Email: "a@b.c", AlertType: AlertNewBlock, IsActive: true}
	if err := s.CreateSubscription(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate global subscription = %v, want ErrDuplicate", err)
	}
}

func TestUpdateSubscriptionPartial(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	th := 15.0
	sub := &AlertSubscription{Email: "a@b.c", AlertType: AlertLuckStreak, Threshold: &th, IsActive: true}
	if err := s.CreateSubscription(ctx, sub); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}

	inactive := false
	got, err := s.UpdateSubscription(ctx, sub.ID, nil, &inactive)
	if err != nil {
		t.Fatalf("UpdateSubscription: %v", err)
	}
	if got.IsActive {
		t.Error("IsActive = true after deactivation")
	}
	if got.Threshold == nil || *got.Threshold != 15.0 {
		t.Errorf("Threshold = %v, want untouched 15", got.Threshold)
	}
}

func TestDeleteSubscription(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	sub := &AlertSubscription{Email: "a@b.c", AlertType: AlertNewBlock, IsActive: true}
	if err := s.CreateSubscription(ctx, sub); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	if err := s.DeleteSubscription(ctx, sub.ID); err != nil {
		t.Fatalf("DeleteSubscription: %v", err)
	}
	if err := s.DeleteSubscription(ctx, sub.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}

	subs, err := s.SubscriptionsByEmail(ctx, "a@b.c")
	if err != nil {
		t.Fatalf("SubscriptionsByEmail: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("subscriptions after delete = %d, want 0", len(subs))
	}
}

func TestAlertFiredSince(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	sub := &AlertSubscription{Email: "a@b.c", AlertType: AlertPoolOffline, IsActive: true}
	if err := s.CreateSubscription(ctx, sub); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}

	fired, err := s.AlertFiredSince(ctx, sub.ID, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("AlertFiredSince: %v", err)
	}
	if fired {
		t.Error("AlertFiredSince with no history = true")
	}

	h := &AlertHistory{SubscriptionID: sub.ID, TriggeredAt: time.Now().Add(-30 * time.Minute).UTC(), Message: "offline"}
	if err := s.InsertAlertHistory(ctx, h); err != nil {
		t.Fatalf("InsertAlertHistory: %v", err)
	}

	fired, _ = s.AlertFiredSince(ctx, sub.ID, time.Now().Add(-time.Hour))
	if !fired {
		t.Error("AlertFiredSince within window = false, want true")
	}
	fired, _ = s.AlertFiredSince(ctx, sub.ID, time.Now().Add(-10*time.Minute))
	if fired {
		t.Error("AlertFiredSince outside window = true, want false")
	}
}

func TestMarkAlertDispatch(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	sub := &AlertSubscription{Email: "a@b.c", AlertType: AlertNewBlock, IsActive: true}
	if err := s.CreateSubscription(ctx, sub); err != nil {
		t.Fatalf("CreateSubscription: %v", err)
	}
	h := &AlertHistory{SubscriptionID: sub.ID, Message: "block"}
	if err := s.InsertAlertHistory(ctx, h); err != nil {
		t.Fatalf("InsertAlertHistory: %v", err)
	}

	errMsg := "smtp timeout"
	if err := s.MarkAlertDispatch(ctx, h.ID, false, &errMsg); err != nil {
		t.Fatalf("MarkAlertDispatch: %v", err)
	}

	hist, total, err := s.AlertHistoryByEmail(ctx, "a@b.c", 10, 0)
	if err != nil {
		t.Fatalf("AlertHistoryByEmail: %v", err)
	}
	if total != 1 || len(hist) != 1 {
		t.Fatalf("history total = %d len = %d, want 1/1", total, len(hist))
	}
	if hist[0].EmailSent {
		t.Error("EmailSent = true after failed dispatch")
	}
	if hist[0].ErrorMessage == nil || *hist[0].ErrorMessage != "smtp timeout" {
		t.Errorf("ErrorMessage = %v, want smtp timeout", hist[0].ErrorMessage)
	}
}

func TestNetworkStatsRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.LatestNetworkStats(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("LatestNetworkStats empty = %v, want ErrNotFound", err)
	}

	n := &NetworkStats{Hashrate: 9e14, Difficulty: 1.2e16, BlockTimeSec: 13.2, PendingTxs: 120000, GasPriceGwei: 25}
	if err := s.InsertNetworkStats(ctx, n); err != nil {
		t.Fatalf("InsertNetworkStats: %v", err)
	}

	got, err := s.LatestNetworkStats(ctx)
	if err != nil {
		t.Fatalf("LatestNetworkStats: %v", err)
	}
	if got.Hashrate != 9e14 || got.PendingTxs != 120000 {
		t.Errorf("round trip = %+v", got)
	}
}
