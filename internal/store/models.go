package store

import "time"

// Pool payout methods. Opaque tags, no computation attached.
const (
	PayoutPPS     = "PPS"
	PayoutPPLNS   = "PPLNS"
	PayoutPPSPlus = "PPS+"
)

// Pool statuses.
const (
	StatusActive      = "active"
	StatusInactive    = "inactive"
	StatusMaintenance = "maintenance"
)

// Alert types.
const (
	AlertHashrateDrop = "hashrate_drop"
	AlertPoolOffline  = "pool_offline"
	AlertLuckStreak   = "luck_streak"
	AlertNewBlock     = "new_block"
	// AlertProfitability is accepted at subscribe time but its condition is a
	// reserved extension point that never fires.
	AlertProfitability = "profitability_change"
)

// ValidAlertType reports whether t is one of the supported alert types.
func ValidAlertType(t string) bool {
	switch t {
	case AlertHashrateDrop, AlertPoolOffline, AlertLuckStreak, AlertNewBlock, AlertProfitability:
		return true
	}
	return false
}

type Pool struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	APIURL       string    `db:"api_url" json:"api_url"`
	FeePct       float64   `db:"fee_pct" json:"fee_pct"`
	PayoutMethod string    `db:"payout_method" json:"payout_method"`
	Status       string    `db:"status" json:"status"`
	MinPayout    float64   `db:"min_payout" json:"min_payout"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// PoolStatistic is an immutable time-series row, one per pool per collection
// pass. Never updated after insert.
type PoolStatistic struct {
	ID            string     `db:"id" json:"id"`
	PoolID        string     `db:"pool_id" json:"pool_id"`
	RecordedAt    time.Time  `db:"recorded_at" json:"recorded_at"`
	Hashrate      float64    `db:"hashrate" json:"hashrate"`
	Miners        int        `db:"miners" json:"miners"`
	BlocksFound24 int        `db:"blocks_found_24h" json:"blocks_found_24h"`
	Luck7d        float64    `db:"luck_7d" json:"luck_7d"`
	Difficulty    float64    `db:"difficulty" json:"difficulty"`
	BlockTimeSec  float64    `db:"block_time_sec" json:"block_time_sec"`
	LastBlockAt   *time.Time `db:"last_block_at" json:"last_block_at,omitempty"`
}

// Block is an append-only record of a discovered block. (pool_id, number) is
// unique.
type Block struct {
	ID         string    `db:"id" json:"id"`
	PoolID     string    `db:"pool_id" json:"pool_id"`
	Number     int64     `db:"number" json:"number"`
	MinedAt    time.Time `db:"mined_at" json:"mined_at"`
	Reward     float64   `db:"reward" json:"reward"`
	Miners     int       `db:"miners" json:"miners"`
	Difficulty float64   `db:"difficulty" json:"difficulty"`
	Hash       string    `db:"hash" json:"hash"`
	Uncle      bool      `db:"uncle" json:"uncle"`
}

// AlertSubscription. PoolID nil means the subscription is global.
type AlertSubscription struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	PoolID    *string   `db:"pool_id" json:"pool_id,omitempty"`
	AlertType string    `db:"alert_type" json:"alert_type"`
	Threshold *float64  `db:"threshold" json:"threshold,omitempty"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SubscriptionWithPool joins the pool name in for alert messages.
type SubscriptionWithPool struct {
	AlertSubscription
	PoolName *string `db:"pool_name" json:"pool_name,omitempty"`
}

// AlertHistory is an append-only firing record. EmailSent and ErrorMessage are
// the only mutable fields; they record dispatch outcome after the fact.
type AlertHistory struct {
	ID             string    `db:"id" json:"id"`
	SubscriptionID string    `db:"subscription_id" json:"subscription_id"`
	PoolID         *string   `db:"pool_id" json:"pool_id,omitempty"`
	TriggeredAt    time.Time `db:"triggered_at" json:"triggered_at"`
	Message        string    `db:"message" json:"message"`
	EmailSent      bool      `db:"email_sent" json:"email_sent"`
	TriggerValue   *float64  `db:"trigger_value" json:"trigger_value,omitempty"`
	ErrorMessage   *string   `db:"error_message" json:"error_message,omitempty"`
}

// NetworkStats is a periodic snapshot of chain-wide totals.
type NetworkStats struct {
	ID           string    `db:"id" json:"id"`
	RecordedAt   time.Time `db:"recorded_at" json:"recorded_at"`
	Hashrate     float64   `db:"hashrate" json:"hashrate"`
	Difficulty   float64   `db:"difficulty" json:"difficulty"`
	BlockTimeSec float64   `db:"block_time_sec" json:"block_time_sec"`
	PendingTxs   int       `db:"pending_txs" json:"pending_txs"`
	GasPriceGwei float64   `db:"gas_price_gwei" json:"gas_price_gwei"`
}

// PoolWithStats is a pool with its latest statistic joined in; the stat fields
// are nil when the pool has no snapshots yet.
type PoolWithStats struct {
	Pool
	Hashrate      *float64   `db:"hashrate" json:"hashrate,omitempty"`
	Miners        *int       `db:"miners" json:"miners,omitempty"`
	BlocksFound24 *int       `db:"blocks_found_24h" json:"blocks_found_24h,omitempty"`
	Luck7d        *float64   `db:"luck_7d" json:"luck_7d,omitempty"`
	Difficulty    *float64   `db:"difficulty" json:"difficulty,omitempty"`
	BlockTimeSec  *float64   `db:"block_time_sec" json:"block_time_sec,omitempty"`
	RecordedAt    *time.Time `db:"recorded_at" json:"stats_recorded_at,omitempty"`
}
