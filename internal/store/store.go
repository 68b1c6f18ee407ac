// Package store is the persistence layer. Two interchangeable relational
// backends sit behind one Store: an embedded file-based SQLite database and
// client-server Postgres, selected by configuration. Callers are agnostic to
// which is active; SQL dialect differences (DDL types, ID generation,
// duplicate-key detection) live in the dialect implementations.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	// ErrNotFound is returned when a pool or subscription does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned on unique-constraint violations.
	ErrDuplicate = errors.New("store: duplicate")
)

type Store struct {
	db      *sqlx.DB
	dialect dialect
	logger  *slog.Logger
}

// Open connects to the configured backend and verifies the connection.
// driver is "sqlite" or "postgres"; source is the file path or database URL.
func Open(ctx context.Context, driver, source string, logger *slog.Logger) (*Store, error) {
	var d dialect
	switch driver {
	case "sqlite":
		d = sqliteDialect{}
	case "postgres":
		d = postgresDialect{}
	default:
		return nil, fmt.Errorf("unknown db driver %q", driver)
	}

	db, err := sqlx.Open(d.DriverName(), d.DSN(source))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// One connection keeps in-memory databases coherent and sidesteps
		// writer contention on the single file.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(2)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return &Store{db: db, dialect: d, logger: logger}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// NewID generates an opaque, globally unique primary key in the active
// backend's format.
func (s *Store) NewID() string { return s.dialect.NewID() }

// Migrate applies the schema. All statements are IF NOT EXISTS so reruns are
// no-ops; any other error aborts startup.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.Schema()); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Seed inserts sample pools, but only when the pools table is empty. The
// count and the inserts share one transaction so concurrent startups cannot
// double-seed.
func (s *Store) Seed(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.GetContext(ctx, &count, "SELECT COUNT(*) FROM pools"); err != nil {
		return fmt.Errorf("count pools: %w", err)
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	seed := []Pool{
		{Name: "Ethermine", APIURL: "https://api.ethermine.org/poolStats", FeePct: 1.0, PayoutMethod: PayoutPPLNS, Status: StatusActive, MinPayout: 0.01},
		{Name: "F2Pool", APIURL: "https://api.f2pool.com/eth/stats", FeePct: 2.5, PayoutMethod: PayoutPPS, Status: StatusActive, MinPayout: 0.1},
		{Name: "Hiveon", APIURL: "", FeePct: 0, PayoutMethod: PayoutPPSPlus, Status: StatusActive, MinPayout: 0.1},
		{Name: "Flexpool", APIURL: "", FeePct: 0.5, PayoutMethod: PayoutPPLNS, Status: StatusActive, MinPayout: 0.01},
		{Name: "2Miners", APIURL: "", FeePct: 1.0, PayoutMethod: PayoutPPLNS, Status: StatusMaintenance, MinPayout: 0.05},
	}
	q := s.db.Rebind(`INSERT INTO pools (id, name, api_url, fee_pct, payout_method, status, min_payout, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, p := range seed {
		if _, err := tx.ExecContext(ctx, q,
			s.dialect.NewID(), p.Name, p.APIURL, p.FeePct, p.PayoutMethod, p.Status, p.MinPayout, now); err != nil {
			return fmt.Errorf("seed pool %s: %w", p.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	s.logger.Info("seeded sample pools", "count", len(seed))
	return nil
}

// mapErr normalizes driver errors into the store's sentinels.
func (s *Store) mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case s.dialect.IsDuplicate(err):
		return ErrDuplicate
	}
	return err
}
