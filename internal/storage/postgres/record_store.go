// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/pricefetch/internal/clock/system"
	idgen "github.com/JakeFAU/pricefetch/internal/id/uuid"
	"github.com/JakeFAU/pricefetch/pkg/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "records"

// RecordStoreConfig controls the Postgres connection pool used for record rows.
type RecordStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type beginCloser interface {
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

type clock interface {
	Now() time.Time
}

// RecordStore writes fetched records into Postgres, one row per record with
// the record itself in a jsonb column. It implements crawler.RecordSink.
type RecordStore struct {
	pool  beginCloser
	table string
	ids   *idgen.Generator
	clock clock
}

var _ crawler.RecordSink = (*RecordStore)(nil)

// NewRecordStore connects a pool using cfg.
func NewRecordStore(ctx context.Context, cfg RecordStoreConfig) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("output.postgres_dsn is required")
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
	store, err := NewRecordStoreWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewRecordStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRecordStoreWithPool(pool beginCloser, table string) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RecordStore{pool: pool, table: table, ids: idgen.New(), clock: system.New(nil)}, nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// Write inserts records in a single transaction; a failed insert rolls the
// whole batch back.
func (s *RecordStore) Write(ctx context.Context, records []crawler.Record) (err error) {
	if s == nil || s.pool == nil {
		return fmt.Errorf("record store is not configured")
	}
	if len(records) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	fetched_at,
	source,
	term,
	payload
) VALUES (
	$1,$2,$3,$4,$5
)`, s.table)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	now := s.clock.Now()
	for _, rec := range records {
		payload, err := sonic.ConfigStd.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		id, err := s.ids.NewID()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, query, id, now, stringField(rec, "source"), stringField(rec, "term"), payload); err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit records: %w", err)
	}
	return nil
}

func stringField(rec crawler.Record, key string) string {
	s, _ := rec[key].(string)
	return s
}
