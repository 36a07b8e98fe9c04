// Package postgres provides a Postgres-backed record sink.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/listing-crawler/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "listing_records"

// RecordStoreConfig controls the Postgres connection pool used for record rows.
type RecordStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	// RunID tags every row written by this store.
	RunID string
	// Now stamps scraped_at. Defaults to the UTC wall clock.
	Now func() time.Time
}

type txBeginCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// RecordStore appends extracted records to a Postgres table. Each Append runs
// in its own transaction, so a page is stored completely or not at all.
type RecordStore struct {
	pool  txBeginCloser
	table string
	runID string
	now   func() time.Time
}

// NewRecordStore creates a Postgres-backed RecordStore using the provided config.
func NewRecordStore(ctx context.Context, cfg RecordStoreConfig) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &RecordStore{
		pool:  pool,
		table: table,
		runID: cfg.RunID,
		now:   now,
	}, nil
}

// NewRecordStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRecordStoreWithPool(pool txBeginCloser, table, runID string, now func() time.Time) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := tableName(table)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &RecordStore{pool: pool, table: table, runID: runID, now: now}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureTable creates the record table when it does not exist yet.
func (s *RecordStore) EnsureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id     TEXT        NOT NULL,
	page       INTEGER     NOT NULL,
	position   INTEGER     NOT NULL,
	name       TEXT        NOT NULL,
	price      BIGINT      NOT NULL,
	url        TEXT        NOT NULL,
	scraped_at TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Append implements crawler.Sink.
func (s *RecordStore) Append(ctx context.Context, page int, records []crawler.Record) (err error) {
	if s == nil || s.pool == nil {
		return fmt.Errorf("record store is not configured")
	}
	if len(records) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	page,
	position,
	name,
	price,
	url,
	scraped_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7
)`, s.table)
	scrapedAt := s.now()
	for i, rec := range records {
		if _, err = tx.Exec(ctx, query, s.runID, page, i, rec.Name(), rec.Price(), rec.URL(), scrapedAt); err != nil {
			return fmt.Errorf("insert record %d of page %d: %w", i, page, err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit page %d: %w", page, err)
	}
	return nil
}
