package store

import (
	"context"
	"time"
)

func (s *Store) CreateSubscription(ctx context.Context, sub *AlertSubscription) error {
	if sub.ID == "" {
		sub.ID = s.dialect.NewID()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	q := s.db.Rebind(`INSERT INTO alert_subscriptions (id, email, pool_id, alert_type, threshold, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, q,
		sub.ID, sub.Email, sub.PoolID, sub.AlertType, sub.Threshold, sub.IsActive, sub.CreatedAt)
	return s.mapErr(err)
}

func (s *Store) GetSubscription(ctx context.Context, id string) (*AlertSubscription, error) {
	var sub AlertSubscription
	q := s.db.Rebind(`SELECT id, email, pool_id, alert_type, threshold, is_active, created_at
		FROM alert_subscriptions WHERE id = ?`)
	if err := s.db.GetContext(ctx, &sub, q, id); err != nil {
		return nil, s.mapErr(err)
	}
	return &sub, nil
}

func (s *Store) SubscriptionsByEmail(ctx context.Context, email string) ([]SubscriptionWithPool, error) {
	var subs []SubscriptionWithPool
	q := s.db.Rebind(`
		SELECT a.id, a.email, a.pool_id, a.alert_type, a.threshold, a.is_active, a.created_at, p.name AS pool_name
		FROM alert_subscriptions a
		LEFT JOIN pools p ON p.id = a.pool_id
		WHERE a.email = ?
		ORDER BY a.created_at`)
	err := s.db.SelectContext(ctx, &subs, q, email)
	return subs, err
}

// ActiveSubscriptions returns every active subscription joined with its pool
// name for alert messages. One alert pass reads this once.
func (s *Store) ActiveSubscriptions(ctx context.Context) ([]SubscriptionWithPool, error) {
	var subs []SubscriptionWithPool
	err := s.db.SelectContext(ctx, &subs, `
		SELECT a.id, a.email, a.pool_id, a.alert_type, a.threshold, a.is_active, a.created_at, p.name AS pool_name
		FROM alert_subscriptions a
		LEFT JOIN pools p ON p.id = a.pool_id
		WHERE a.is_active
		ORDER BY a.created_at`)
	return subs, err
}

// UpdateSubscription changes threshold and/or the active flag; nil fields are
// left untouched. Returns the updated row.
func (s *Store) UpdateSubscription(ctx context.Context, id string, threshold *float64, isActive *bool) (*AlertSubscription, error) {
	sub, err := s.GetSubscription(ctx, id)
	if err != nil {
		return nil, err
	}
	if threshold != nil {
		sub.Threshold = threshold
	}
	if isActive != nil {
		sub.IsActive = *isActive
	}
	q := s.db.Rebind(`UPDATE alert_subscriptions SET threshold = ?, is_active = ? WHERE id = ?`)
	if _, err := s.db.ExecContext(ctx, q, sub.Threshold, sub.IsActive, id); err != nil {
		return nil, s.mapErr(err)
	}
	return sub, nil
}

func (s *Store) DeleteSubscription(ctx context.Context, id string) error {
	q := s.db.Rebind(`DELETE FROM alert_subscriptions WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, q, id)
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

// --- Alert history ---

// AlertFiredSince reports whether a subscription has any history row newer
// than since. This query is the sole alert de-duplication mechanism.
func (s *Store) AlertFiredSince(ctx context.Context, subscriptionID string, since time.Time) (bool, error) {
	var count int
	q := s.db.Rebind(`SELECT COUNT(*) FROM alert_history WHERE subscription_id = ? AND triggered_at >= ?`)
	if err := s.db.GetContext(ctx, &count, q, subscriptionID, since); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) InsertAlertHistory(ctx context.Context, h *AlertHistory) error {
	if h.ID == "" {
		h.ID = s.dialect.NewID()
	}
	if h.TriggeredAt.IsZero() {
		h.TriggeredAt = time.Now().UTC()
	}
	q := s.db.Rebind(`INSERT INTO alert_history (id, subscription_id, pool_id, triggered_at, message, email_sent, trigger_value, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, q,
		h.ID, h.SubscriptionID, h.PoolID, h.TriggeredAt, h.Message, h.EmailSent, h.TriggerValue, h.ErrorMessage)
	return s.mapErr(err)
}

// MarkAlertDispatch records the delivery outcome on an existing history row.
// The firing record itself is never rolled back on dispatch failure.
func (s *Store) MarkAlertDispatch(ctx context.Context, historyID string, sent bool, errMsg *string) error {
	q := s.db.Rebind(`UPDATE alert_history SET email_sent = ?, error_message = ? WHERE id = ?`)
	_, err := s.db.ExecContext(ctx, q, sent, errMsg, historyID)
	return s.mapErr(err)
}

// AlertHistoryByEmail returns firing records for all of an email's
// subscriptions, newest first, with the total for pagination.
func (s *Store) AlertHistoryByEmail(ctx context.Context, email string, limit, offset int) ([]AlertHistory, int, error) {
	var total int
	q := s.db.Rebind(`
		SELECT COUNT(*)
		FROM alert_history h
		JOIN alert_subscriptions a ON a.id = h.subscription_id
		WHERE a.email = ?`)
	if err := s.db.GetContext(ctx, &total, q, email); err != nil {
		return nil, 0, err
	}

	var hist []AlertHistory
	q = s.db.Rebind(`
		SELECT h.id, h.subscription_id, h.pool_id, h.triggered_at, h.message, h.email_sent, h.trigger_value, h.error_message
		FROM alert_history h
		JOIN alert_subscriptions a ON a.id = h.subscription_id
		WHERE a.email = ?
		ORDER BY h.triggered_at DESC LIMIT ? OFFSET ?`)
	if err := s.db.SelectContext(ctx, &hist, q, email, limit, offset); err != nil {
		return nil, 0, err
	}
	return hist, total, nil
}
