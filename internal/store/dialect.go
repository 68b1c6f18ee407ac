package store

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// dialect isolates everything backend-specific: driver registration name, DSN
// shaping, schema DDL, ID generation and duplicate-key detection. Callers of
// Store never see which dialect is active.
type dialect interface {
	DriverName() string
	DSN(source string) string
	Schema() string
	NewID() string
	IsDuplicate(err error) bool
}

type postgresDialect struct{}

func (postgresDialect) DriverName() string { return "pgx" }

func (postgresDialect) DSN(source string) string { return source }

func (postgresDialect) NewID() string { return uuid.NewString() }

func (postgresDialect) IsDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type sqliteDialect struct{}

func (sqliteDialect) DriverName() string { return "sqlite" }

func (sqliteDialect) DSN(source string) string {
	// foreign_keys pragma enforces the referential integrity the schema
	// declares; sqlite time format keeps time.Time round-trippable.
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite", source)
}

// NewID returns a random 128-bit hex string. Same uniqueness guarantee as the
// Postgres UUIDs, interchangeable as an opaque key.
func (sqliteDialect) NewID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err) // crypto/rand failure is unrecoverable
	}
	return hex.EncodeToString(b[:])
}

func (sqliteDialect) IsDuplicate(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	// Only unique/primary-key violations count; FK and NOT NULL failures share
	// the SQLITE_CONSTRAINT primary code but are not duplicates, matching the
	// Postgres dialect's 23505-only check.
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
		se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func (postgresDialect) Schema() string {
	return `
CREATE TABLE IF NOT EXISTS pools (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    api_url TEXT NOT NULL DEFAULT '',
    fee_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
    payout_method TEXT NOT NULL DEFAULT 'PPS',
    status TEXT NOT NULL DEFAULT 'active',
    min_payout DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS pool_statistics (
    id TEXT PRIMARY KEY,
    pool_id TEXT NOT NULL REFERENCES pools(id) ON DELETE CASCADE,
    recorded_at TIMESTAMPTZ NOT NULL,
    hashrate DOUBLE PRECISION NOT NULL,
    miners INT NOT NULL,
    blocks_found_24h INT NOT NULL,
    luck_7d DOUBLE PRECISION NOT NULL,
    difficulty DOUBLE PRECISION NOT NULL,
    block_time_sec DOUBLE PRECISION NOT NULL,
    last_block_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_pool_statistics_pool_time ON pool_statistics(pool_id, recorded_at DESC);

CREATE TABLE IF NOT EXISTS blocks (
    id TEXT PRIMARY KEY,
    pool_id TEXT NOT NULL REFERENCES pools(id) ON DELETE CASCADE,
    number BIGINT NOT NULL,
    mined_at TIMESTAMPTZ NOT NULL,
    reward DOUBLE PRECISION NOT NULL DEFAULT 0,
    miners INT NOT NULL DEFAULT 0,
    difficulty DOUBLE PRECISION NOT NULL DEFAULT 0,
    hash TEXT NOT NULL DEFAULT '',
    uncle BOOLEAN NOT NULL DEFAULT false,
    UNIQUE(pool_id, number)
);
CREATE INDEX IF NOT EXISTS idx_blocks_mined_at ON blocks(mined_at DESC);

CREATE TABLE IF NOT EXISTS alert_subscriptions (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL,
    pool_id TEXT REFERENCES pools(id) ON DELETE CASCADE,
    alert_type TEXT NOT NULL,
    threshold DOUBLE PRECISION,
    is_active BOOLEAN NOT NULL DEFAULT true,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_alert_subs_unique
    ON alert_subscriptions(email, COALESCE(pool_id, ''), alert_type);

CREATE TABLE IF NOT EXISTS alert_history (
    id TEXT PRIMARY KEY,
    subscription_id TEXT NOT NULL REFERENCES alert_subscriptions(id) ON DELETE CASCADE,
    pool_id TEXT,
    triggered_at TIMESTAMPTZ NOT NULL,
    message TEXT NOT NULL,
    email_sent BOOLEAN NOT NULL DEFAULT false,
    trigger_value DOUBLE PRECISION,
    error_message TEXT
);
CREATE INDEX IF NOT EXISTS idx_alert_history_sub_time ON alert_history(subscription_id, triggered_at DESC);

CREATE TABLE IF NOT EXISTS network_stats (
    id TEXT PRIMARY KEY,
    recorded_at TIMESTAMPTZ NOT NULL,
    hashrate DOUBLE PRECISION NOT NULL,
    difficulty DOUBLE PRECISION NOT NULL,
    block_time_sec DOUBLE PRECISION NOT NULL,
    pending_txs INT NOT NULL,
    gas_price_gwei DOUBLE PRECISION NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_network_stats_time ON network_stats(recorded_at DESC);
`
}

func (sqliteDialect) Schema() string {
	return `
CREATE TABLE IF NOT EXISTS pools (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    api_url TEXT NOT NULL DEFAULT '',
    fee_pct REAL NOT NULL DEFAULT 0,
    payout_method TEXT NOT NULL DEFAULT 'PPS',
    status TEXT NOT NULL DEFAULT 'active',
    min_payout REAL NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS pool_statistics (
    id TEXT PRIMARY KEY,
    pool_id TEXT NOT NULL REFERENCES pools(id) ON DELETE CASCADE,
    recorded_at TIMESTAMP NOT NULL,
    hashrate REAL NOT NULL,
    miners INTEGER NOT NULL,
    blocks_found_24h INTEGER NOT NULL,
    luck_7d REAL NOT NULL,
    difficulty REAL NOT NULL,
    block_time_sec REAL NOT NULL,
    last_block_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_pool_statistics_pool_time ON pool_statistics(pool_id, recorded_at DESC);

CREATE TABLE IF NOT EXISTS blocks (
    id TEXT PRIMARY KEY,
    pool_id TEXT NOT NULL REFERENCES pools(id) ON DELETE CASCADE,
    number INTEGER NOT NULL,
    mined_at TIMESTAMP NOT NULL,
    reward REAL NOT NULL DEFAULT 0,
    miners INTEGER NOT NULL DEFAULT 0,
    difficulty REAL NOT NULL DEFAULT 0,
    hash TEXT NOT NULL DEFAULT '',
    uncle BOOLEAN NOT NULL DEFAULT 0,
    UNIQUE(pool_id, number)
);
CREATE INDEX IF NOT EXISTS idx_blocks_mined_at ON blocks(mined_at DESC);

CREATE TABLE IF NOT EXISTS alert_subscriptions (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL,
    pool_id TEXT REFERENCES pools(id) ON DELETE CASCADE,
    alert_type TEXT NOT NULL,
    threshold REAL,
    is_active BOOLEAN NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_alert_subs_unique
    ON alert_subscriptions(email, COALESCE(pool_id, ''), alert_type);

CREATE TABLE IF NOT EXISTS alert_history (
    id TEXT PRIMARY KEY,
    subscription_id TEXT NOT NULL REFERENCES alert_subscriptions(id) ON DELETE CASCADE,
    pool_id TEXT,
    triggered_at TIMESTAMP NOT NULL,
    message TEXT NOT NULL,
    email_sent BOOLEAN NOT NULL DEFAULT 0,
    trigger_value REAL,
    error_message TEXT
);
CREATE INDEX IF NOT EXISTS idx_alert_history_sub_time ON alert_history(subscription_id, triggered_at DESC);

CREATE TABLE IF NOT EXISTS network_stats (
    id TEXT PRIMARY KEY,
    recorded_at TIMESTAMP NOT NULL,
    hashrate REAL NOT NULL,
    difficulty REAL NOT NULL,
    block_time_sec REAL NOT NULL,
    pending_txs INTEGER NOT NULL,
    gas_price_gwei REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_network_stats_time ON network_stats(recorded_at DESC);
`
}
