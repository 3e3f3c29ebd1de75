// Package store persists metric snapshots in a local DuckDB database.
//
// The schema is a single table keyed by ingestion timestamp; the payload
// column holds the JSON-encoded cluster map and is opaque to the store.
// The store is a best-effort replica of the in-memory cache, never the
// source of truth for a running session: every failure here is
// recoverable and callers log and degrade instead of propagating.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	twerrors "github.com/xtxerr/trendwatch/internal/errors"
	"github.com/xtxerr/trendwatch/internal/logging"
	"github.com/xtxerr/trendwatch/internal/metrics/types"
)

var log = logging.Component("store")

// Config holds store configuration.
type Config struct {
	// Path is the DuckDB database file. Empty opens an in-memory
	// database, which does not survive restart.
	Path string

	// QueryTimeout bounds each store operation.
	QueryTimeout time.Duration

	// MaxOpenConns limits the connection pool.
	MaxOpenConns int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		QueryTimeout: 10 * time.Second,
		MaxOpenConns: 4,
	}
}

// Store provides durable snapshot persistence.
//
// Store is safe for concurrent use.
type Store struct {
	db     *sql.DB
	config Config

	mu     sync.RWMutex
	closed bool
}

// Open opens the database and creates the schema if missing.
func Open(cfg Config) (*Store, error) {
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultConfig().QueryTimeout
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = DefaultConfig().MaxOpenConns
	}

	db, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.QueryTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS snapshots (
			timestamp_ms BIGINT PRIMARY KEY,
			payload      VARCHAR NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, config: cfg}, nil
}

// Close closes the store. Further operations return ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// guard returns ErrStoreClosed if the store is closed.
func (s *Store) guard() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return twerrors.ErrStoreClosed
	}
	return nil
}

// opCtx derives a context bounded by the configured query timeout.
func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.config.QueryTimeout)
}

// Append persists a snapshot under its timestamp. A colliding timestamp
// keeps the later payload (last-write-wins).
func (s *Store) Append(ctx context.Context, snap types.Snapshot) error {
	if err := s.guard(); err != nil {
		return twerrors.NewStoreError("append", err)
	}

	payload, err := json.Marshal(snap.Payload)
	if err != nil {
		return twerrors.NewStoreError("append", fmt.Errorf("marshal payload: %w", err))
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO snapshots (timestamp_ms, payload) VALUES (?, ?)
	`, snap.TimestampMs, string(payload))
	if err != nil {
		return twerrors.NewStoreError("append", err)
	}
	return nil
}

// RangeQuery returns snapshots with minMs <= timestamp <= maxMs,
// ascending by timestamp. On failure it returns nil and a StoreError;
// it never interrupts rendering with a partial result.
func (s *Store) RangeQuery(ctx context.Context, minMs, maxMs int64) ([]types.Snapshot, error) {
	if err := s.guard(); err != nil {
		return nil, twerrors.NewStoreError("range", err)
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp_ms, payload
		FROM snapshots
		WHERE timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`, minMs, maxMs)
	if err != nil {
		return nil, twerrors.NewStoreError("range", err)
	}
	defer rows.Close()

	var snaps []types.Snapshot
	for rows.Next() {
		var ts int64
		var payload string
		if err := rows.Scan(&ts, &payload); err != nil {
			return nil, twerrors.NewStoreError("range", err)
		}

		var cm types.ClusterMap
		if err := json.Unmarshal([]byte(payload), &cm); err != nil {
			// One corrupt row must not sink the whole range.
			log.Warn("skipping undecodable snapshot row", "timestamp_ms", ts, "error", err)
			continue
		}
		snaps = append(snaps, types.Snapshot{TimestampMs: ts, Payload: cm})
	}
	if err := rows.Err(); err != nil {
		return nil, twerrors.NewStoreError("range", err)
	}
	return snaps, nil
}

// DeleteOlderThan removes all snapshots with timestamp < cutoffMs and
// returns the number removed. Idempotent.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoffMs int64) (int64, error) {
	if err := s.guard(); err != nil {
		return 0, twerrors.NewStoreError("delete-older", err)
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE timestamp_ms < ?`, cutoffMs)
	if err != nil {
		return 0, twerrors.NewStoreError("delete-older", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// DeleteByKey removes the snapshot with the exact timestamp, if present.
func (s *Store) DeleteByKey(ctx context.Context, tsMs int64) error {
	if err := s.guard(); err != nil {
		return twerrors.NewStoreError("delete-key", err)
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE timestamp_ms = ?`, tsMs); err != nil {
		return twerrors.NewStoreError("delete-key", err)
	}
	return nil
}

// Count returns the number of stored snapshots.
func (s *Store) Count(ctx context.Context) (int64, error) {
	if err := s.guard(); err != nil {
		return 0, twerrors.NewStoreError("count", err)
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&n); err != nil {
		return 0, twerrors.NewStoreError("count", err)
	}
	return n, nil
}
