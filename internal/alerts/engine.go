// Package alerts runs the periodic alert evaluation loop. Each pass loads the
// active subscriptions, evaluates every condition against the persisted
// statistics, and fires at most once per subscription per cooldown window.
// De-duplication is purely history-based: a firing is suppressed iff a
// history row for the subscription exists within the window.
package alerts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/web3-frozen/pool-dashboard/internal/metrics"
	"github.com/web3-frozen/pool-dashboard/internal/notify"
	"github.com/web3-frozen/pool-dashboard/internal/store"
)

const defaultCooldown = time.Hour

// Broadcaster pushes fired alerts to live subscribers.
type Broadcaster interface {
	BroadcastAlert(h store.AlertHistory, sub store.SubscriptionWithPool)
}

type Engine struct {
	store    *store.Store
	notifier notify.Notifier
	hub      Broadcaster
	logger   *slog.Logger
	interval time.Duration
	cooldown time.Duration
	now      func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(st *store.Store, notifier notify.Notifier, hub Broadcaster, logger *slog.Logger, interval time.Duration) *Engine {
	return &Engine{
		store:    st,
		notifier: notifier,
		hub:      hub,
		logger:   logger,
		interval: interval,
		cooldown: defaultCooldown,
		now:      time.Now,
	}
}

// Start launches the evaluation loop: one pass immediately, then one per
// interval. Calling Start on a running engine is a logged no-op.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		e.logger.Warn("alert engine already running")
		return
	}
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	e.running = true

	go func() {
		defer close(e.done)
		e.logger.Info("alert engine started", "interval", e.interval)

		e.Evaluate(ctx)
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.Evaluate(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for the in-flight pass. Safe on a stopped
// engine.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	cancel()
	<-done
	e.logger.Info("alert engine stopped")
}

// Evaluate runs one pass over all active subscriptions. A failing
// subscription is logged and skipped.
func (e *Engine) Evaluate(ctx context.Context) {
	subs, err := e.store.ActiveSubscriptions(ctx)
	if err != nil {
		e.logger.Error("alerts: load subscriptions", "error", err)
		return
	}

	for _, sub := range subs {
		if err := e.evaluateOne(ctx, sub); err != nil {
			e.logger.Warn("alerts: evaluation failed", "subscription", sub.ID, "type", sub.AlertType, "error", err)
		}
	}
	metrics.AlertPasses.Inc()
}

func (e *Engine) evaluateOne(ctx context.Context, sub store.SubscriptionWithPool) error {
	result, err := e.evaluate(ctx, sub)
	if err != nil || !result.fired {
		return err
	}

	recent, err := e.store.AlertFiredSince(ctx, sub.ID, e.now().Add(-e.cooldown))
	if err != nil {
		return err
	}
	if recent {
		metrics.AlertsSuppressed.Inc()
		return nil
	}

	hist := store.AlertHistory{
		SubscriptionID: sub.ID,
		PoolID:         result.poolID,
		TriggeredAt:    e.now().UTC(),
		Message:        result.message,
		TriggerValue:   &result.value,
	}
	if err := e.store.InsertAlertHistory(ctx, &hist); err != nil {
		return err
	}
	metrics.AlertsFired.WithLabelValues(sub.AlertType).Inc()
	e.logger.Info("alert fired", "type", sub.AlertType, "email", sub.Email, "message", result.message)

	// The firing record stands whether or not delivery works; dispatch
	// outcome is written back onto it.
	sent := true
	var errMsg *string
	if err := e.notifier.Notify(ctx, sub.Email, result.subject, result.message); err != nil {
		sent = false
		msg := err.Error()
		errMsg = &msg
		metrics.AlertDispatchFailures.Inc()
		e.logger.Warn("alerts: notify failed", "email", sub.Email, "error", err)
	}
	hist.EmailSent = sent
	hist.ErrorMessage = errMsg
	if err := e.store.MarkAlertDispatch(ctx, hist.ID, sent, errMsg); err != nil {
		e.logger.Warn("alerts: mark dispatch failed", "history", hist.ID, "error", err)
	}

	if e.hub != nil {
		e.hub.BroadcastAlert(hist, sub)
	}
	return nil
}
