package alerts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/web3-frozen/pool-dashboard/internal/store"
)

type fakeNotifier struct {
	mu    sync.Mutex
	calls []string // recipient emails
	err   error
}

func (n *fakeNotifier) Notify(_ context.Context, to, _, _ string) error {
	n.mu.Lock()
	n.calls = append(n.calls, to)
	n.mu.Unlock()
	return n.err
}

type fakeHub struct {
	mu     sync.Mutex
	alerts []store.AlertHistory
}

func (h *fakeHub) BroadcastAlert(hist store.AlertHistory, _ store.SubscriptionWithPool) {
	h.mu.Lock()
	h.alerts = append(h.alerts, hist)
	h.mu.Unlock()
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testEngine(t *testing.T) (*Engine, *store.Store, *fakeNotifier, *fakeHub) {
	t.Helper()
	st, err := store.Open(context.Background(), "sqlite", ":memory:", discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	notifier := &fakeNotifier{}
	hub := &fakeHub{}
	e := New(st, notifier, hub, discard(), time.Minute)
	return e, st, notifier, hub
}

func createPool(t *testing.T, st *store.Store, name string) store.Pool {
	t.Helper()
	p := store.Pool{Name: name, PayoutMethod: store.PayoutPPLNS, Status: store.StatusActive}
	if err := st.CreatePool(context.Background(), &p); err != nil {
		t.Fatalf("create pool: %v", err)
	}
	return p
}

func insertStat(t *testing.T, st *store.Store, poolID string, hashrate, luck float64, at time.Time) {
	t.Helper()
	stat := store.PoolStatistic{PoolID: poolID, RecordedAt: at, Hashrate: hashrate, Miners: 100, Luck7d: luck}
	if err := st.InsertStatistic(context.Background(), &stat); err != nil {
		t.Fatalf("insert statistic: %v", err)
	}
}

func subscribe(t *testing.T, st *store.Store, email, alertType string, poolID *string, thr *float64) store.AlertSubscription {
	t.Helper()
	sub := store.AlertSubscription{Email: email, PoolID: poolID, AlertType: alertType, Threshold: thr, IsActive: true}
	if err := st.CreateSubscription(context.Background(), &sub); err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	return sub
}

func f64(v float64) *float64 { return &v }

func TestHashrateDropFires(t *testing.T) {
	e, st, notifier, hub := testEngine(t)
	pool := createPool(t, st, "Ethermine")
	now := time.Now().UTC()
	insertStat(t, st, pool.ID, 1000, 100, now.Add(-time.Minute))
	insertStat(t, st, pool.ID, 800, 100, now)
	subscribe(t, st, "miner@example.com", store.AlertHashrateDrop, &pool.ID, f64(15))

	e.Evaluate(context.Background())

	hist, total, err := st.AlertHistoryByEmail(context.Background(), "miner@example.com", 10, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if total != 1 {
		t.Fatalf("history rows = %d, want 1", total)
	}
	if hist[0].TriggerValue == nil || *hist[0].TriggerValue != 20 {
		t.Errorf("trigger value = %v, want 20", hist[0].TriggerValue)
	}
	if !hist[0].EmailSent {
		t.Error("email_sent = false, want true")
	}
	if len(notifier.calls) != 1 || notifier.calls[0] != "miner@example.com" {
		t.Errorf("notifier calls = %v", notifier.calls)
	}
	if len(hub.alerts) != 1 {
		t.Errorf("broadcasts = %d, want 1", len(hub.alerts))
	}
}

func TestHashrateDropBelowThresholdStaysQuiet(t *testing.T) {
	e, st, notifier, _ := testEngine(t)
	pool := createPool(t, st, "Ethermine")
	now := time.Now().UTC()
	insertStat(t, st, pool.ID, 1000, 100, now.Add(-time.Minute))
	insertStat(t, st, pool.ID, 900, 100, now)
	subscribe(t, st, "miner@example.com", store.AlertHashrateDrop, &pool.ID, f64(15))

	e.Evaluate(context.Background())

	_, total, _ := st.AlertHistoryByEmail(context.Background(), "miner@example.com", 10, 0)
	if total != 0 {
		t.Errorf("history rows = %d, want 0 for a 10%% drop", total)
	}
	if len(notifier.calls) != 0 {
		t.Errorf("notifier calls = %v, want none", notifier.calls)
	}
}

func TestCooldownSuppressesRepeatFiring(t *testing.T) {
	e, st, notifier, _ := testEngine(t)
	pool := createPool(t, st, "Ethermine")
	now := time.Now().UTC()
	insertStat(t, st, pool.ID, 1000, 100, now.Add(-time.Minute))
	insertStat(t, st, pool.ID, 500, 100, now)
	subscribe(t, st, "miner@example.com", store.AlertHashrateDrop, &pool.ID, f64(15))

	e.Evaluate(context.Background())
	e.Evaluate(context.Background()) // condition still true, inside cooldown

	_, total, _ := st.AlertHistoryByEmail(context.Background(), "miner@example.com", 10, 0)
	if total != 1 {
		t.Errorf("history rows = %d, want 1 (second firing suppressed)", total)
	}
	if len(notifier.calls) != 1 {
		t.Errorf("notifier calls = %d, want 1", len(notifier.calls))
	}
}

func TestCooldownExpiryAllowsRefire(t *testing.T) {
	e, st, _, _ := testEngine(t)
	pool := createPool(t, st, "Ethermine")
	base := time.Now().UTC()
	insertStat(t, st, pool.ID, 1000, 100, base.Add(-time.Minute))
	insertStat(t, st, pool.ID, 500, 100, base)
	subscribe(t, st, "miner@example.com", store.AlertHashrateDrop, &pool.ID, f64(15))

	e.Evaluate(context.Background())

	// Jump the engine clock past the cooldown window.
	e.now = func() time.Time { return base.Add(61 * time.Minute) }
	e.Evaluate(context.Background())

	_, total, _ := st.AlertHistoryByEmail(context.Background(), "miner@example.com", 10, 0)
	if total != 2 {
		t.Errorf("history rows = %d, want 2 after cooldown expiry", total)
	}
}

func TestPoolOffline(t *testing.T) {
	e, st, _, _ := testEngine(t)
	pool := createPool(t, st, "Ethermine")
	now := time.Now().UTC()
	insertStat(t, st, pool.ID, 1000, 100, now.Add(-11*time.Minute))
	subscribe(t, st, "miner@example.com", store.AlertPoolOffline, &pool.ID, nil)

	e.Evaluate(context.Background())

	hist, total, _ := st.AlertHistoryByEmail(context.Background(), "miner@example.com", 10, 0)
	if total != 1 {
		t.Fatalf("history rows = %d, want 1 for an 11-minute gap", total)
	}
	if hist[0].TriggerValue == nil || *hist[0].TriggerValue < 10 {
		t.Errorf("trigger value = %v, want minutes since last snapshot", hist[0].TriggerValue)
	}
}

func TestPoolOfflineFreshStatStaysQuiet(t *testing.T) {
	e, st, _, _ := testEngine(t)
	pool := createPool(t, st, "Ethermine")
	insertStat(t, st, pool.ID, 1000, 100, time.Now().UTC().Add(-9*time.Minute))
	subscribe(t, st, "miner@example.com", store.AlertPoolOffline, &pool.ID, nil)

	e.Evaluate(context.Background())

	_, total, _ := st.AlertHistoryByEmail(context.Background(), "miner@example.com", 10, 0)
	if total != 0 {
		t.Errorf("history rows = %d, want 0 for a 9-minute gap", total)
	}
}

func TestLuckStreak(t *testing.T) {
	e, st, _, _ := testEngine(t)
	pool := createPool(t, st, "Ethermine")
	insertStat(t, st, pool.ID, 1000, 72.5, time.Now().UTC())
	subscribe(t, st, "miner@example.com", store.AlertLuckStreak, &pool.ID, f64(80))

	e.Evaluate(context.Background())

	hist, total, _ := st.AlertHistoryByEmail(context.Background(), "miner@example.com", 10, 0)
	if total != 1 {
		t.Fatalf("history rows = %d, want 1 for luck 72.5 under floor 80", total)
	}
	if *hist[0].TriggerValue != 72.5 {
		t.Errorf("trigger value = %v, want 72.5", *hist[0].TriggerValue)
	}
}

func TestNewBlock(t *testing.T) {
	e, st, _, _ := testEngine(t)
	pool := createPool(t, st, "Ethermine")
	block := store.Block{PoolID: pool.ID, Number: 21000555, MinedAt: time.Now().UTC().Add(-time.Minute), Reward: 2.2, Hash: "0xdef"}
	if err := st.InsertBlock(context.Background(), &block); err != nil {
		t.Fatalf("insert block: %v", err)
	}
	subscribe(t, st, "miner@example.com", store.AlertNewBlock, &pool.ID, nil)

	e.Evaluate(context.Background())

	hist, total, _ := st.AlertHistoryByEmail(context.Background(), "miner@example.com", 10, 0)
	if total != 1 {
		t.Fatalf("history rows = %d, want 1 for a fresh block", total)
	}
	if *hist[0].TriggerValue != 21000555 {
		t.Errorf("trigger value = %v, want block number", *hist[0].TriggerValue)
	}
}

func TestNewBlockOldBlockStaysQuiet(t *testing.T) {
	e, st, _, _ := testEngine(t)
	pool := createPool(t, st, "Ethermine")
	block := store.Block{PoolID: pool.ID, Number: 21000556, MinedAt: time.Now().UTC().Add(-5 * time.Minute), Reward: 2.2, Hash: "0x123"}
	if err := st.InsertBlock(context.Background(), &block); err != nil {
		t.Fatalf("insert block: %v", err)
	}
	subscribe(t, st, "miner@example.com", store.AlertNewBlock, &pool.ID, nil)

	e.Evaluate(context.Background())

	_, total, _ := st.AlertHistoryByEmail(context.Background(), "miner@example.com", 10, 0)
	if total != 0 {
		t.Errorf("history rows = %d, want 0 for a 5-minute-old block", total)
	}
}

func TestProfitabilityNeverFires(t *testing.T) {
	e, st, notifier, _ := testEngine(t)
	pool := createPool(t, st, "Ethermine")
	now := time.Now().UTC()
	insertStat(t, st, pool.ID, 1000, 100, now.Add(-time.Minute))
	insertStat(t, st, pool.ID, 100, 10, now)
	subscribe(t, st, "miner@example.com", store.AlertProfitability, &pool.ID, f64(1))

	e.Evaluate(context.Background())

	_, total, _ := st.AlertHistoryByEmail(context.Background(), "miner@example.com", 10, 0)
	if total != 0 || len(notifier.calls) != 0 {
		t.Errorf("profitability_change fired (rows=%d calls=%d), must never fire", total, len(notifier.calls))
	}
}

func TestGlobalSubscriptionCoversAllPools(t *testing.T) {
	e, st, _, _ := testEngine(t)
	createPool(t, st, "Quiet")
	loud := createPool(t, st, "Loud")
	now := time.Now().UTC()
	insertStat(t, st, loud.ID, 1000, 100, now.Add(-time.Minute))
	insertStat(t, st, loud.ID, 400, 100, now)
	subscribe(t, st, "miner@example.com", store.AlertHashrateDrop, nil, f64(15))

	e.Evaluate(context.Background())

	hist, total, _ := st.AlertHistoryByEmail(context.Background(), "miner@example.com", 10, 0)
	if total != 1 {
		t.Fatalf("history rows = %d, want 1 from the global subscription", total)
	}
	if hist[0].PoolID == nil || *hist[0].PoolID != loud.ID {
		t.Errorf("history pool = %v, want the dropping pool", hist[0].PoolID)
	}
}

func TestDispatchFailureKeepsFiringRecord(t *testing.T) {
	e, st, notifier, hub := testEngine(t)
	notifier.err = errors.New("smtp down")
	pool := createPool(t, st, "Ethermine")
	now := time.Now().UTC()
	insertStat(t, st, pool.ID, 1000, 100, now.Add(-time.Minute))
	insertStat(t, st, pool.ID, 500, 100, now)
	subscribe(t, st, "miner@example.com", store.AlertHashrateDrop, &pool.ID, f64(15))

	e.Evaluate(context.Background())

	hist, total, _ := st.AlertHistoryByEmail(context.Background(), "miner@example.com", 10, 0)
	if total != 1 {
		t.Fatalf("history rows = %d, want 1 despite delivery failure", total)
	}
	if hist[0].EmailSent {
		t.Error("email_sent = true, want false")
	}
	if hist[0].ErrorMessage == nil || *hist[0].ErrorMessage != "smtp down" {
		t.Errorf("error message = %v", hist[0].ErrorMessage)
	}
	if len(hub.alerts) != 1 {
		t.Errorf("broadcasts = %d, want 1 even when mail fails", len(hub.alerts))
	}
}

func TestInactiveSubscriptionIgnored(t *testing.T) {
	e, st, notifier, _ := testEngine(t)
	pool := createPool(t, st, "Ethermine")
	now := time.Now().UTC()
	insertStat(t, st, pool.ID, 1000, 100, now.Add(-time.Minute))
	insertStat(t, st, pool.ID, 100, 100, now)

	sub := store.AlertSubscription{Email: "paused@example.com", PoolID: &pool.ID, AlertType: store.AlertHashrateDrop, Threshold: f64(15), IsActive: false}
	if err := st.CreateSubscription(context.Background(), &sub); err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	e.Evaluate(context.Background())

	if len(notifier.calls) != 0 {
		t.Errorf("notifier calls = %v, want none for an inactive subscription", notifier.calls)
	}
}
