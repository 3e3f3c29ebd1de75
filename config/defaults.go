// Package config provides documented default constants for trendwatch.
// Users can override these via config.yaml or CLI flags.
package config

import "time"

// =============================================================================
// Retention Defaults
// =============================================================================

const (
	// DefaultRetentionSeconds is how long a snapshot may remain in the
	// cache or the durable store before eviction.
	// Override via config: history.retention_seconds
	DefaultRetentionSeconds = 3600

	// DefaultRetentionInterval is how often the background retention
	// worker compacts the durable store. The cache additionally prunes
	// opportunistically after every ingest.
	// Override via config: history.retention_interval
	DefaultRetentionInterval = 5 * time.Minute
)

// =============================================================================
// Fetch Defaults
// =============================================================================

const (
	// DefaultFetchInterval is the upstream snapshot cadence.
	// Override via config: fetch.interval
	DefaultFetchInterval = 20 * time.Second

	// DefaultFetchTimeout bounds a single upstream request.
	// Override via config: fetch.timeout
	DefaultFetchTimeout = 10 * time.Second
)

// =============================================================================
// Store Defaults
// =============================================================================

const (
	// DefaultStorePath is the DuckDB database file.
	// Override via config: store.path
	DefaultStorePath = "trendwatch.db"

	// DefaultStoreQueryTimeout is the per-operation timeout for durable
	// store calls. Store operations are fire-and-forget from the
	// ingest path, so a short timeout only bounds the writer goroutine.
	// Override via config: store.query_timeout
	DefaultStoreQueryTimeout = 10 * time.Second

	// DefaultIngestQueueSize is the capacity of the durable-write queue
	// between the ingestor and the store writer. At the default 20s
	// fetch cadence this covers hours of backlog; a full queue drops
	// the durable write, never the cache write.
	// Override via config: history.ingest_queue_size
	DefaultIngestQueueSize = 256
)

// =============================================================================
// Archive Defaults
// =============================================================================

const (
	// DefaultArchiveDir is where evicted points are written as Parquet
	// files when archiving is enabled.
	// Override via config: archive.dir
	DefaultArchiveDir = "archive"
)

// =============================================================================
// Server Defaults
// =============================================================================

const (
	// DefaultListenAddress is the HTTP API listen address.
	// Override via config: server.listen
	DefaultListenAddress = "127.0.0.1:8480"

	// DefaultShutdownTimeout is how long in-flight HTTP requests may
	// drain during shutdown.
	// Override via config: server.shutdown_timeout
	DefaultShutdownTimeout = 10 * time.Second
)
