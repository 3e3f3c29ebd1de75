// Package retention enforces the retention horizon across the cache and
// the durable store.
//
// The cache already prunes opportunistically after each ingest; the
// manager is the periodic backstop that also compacts the durable store
// and, when enabled, archives evicted points to Parquet before they
// disappear. Cleanup failures are recorded and logged, never propagated:
// eviction may lag by one cycle but must not disturb ingestion or
// queries.
package retention

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/xtxerr/trendwatch/internal/logging"
	"github.com/xtxerr/trendwatch/internal/metrics/archive"
	"github.com/xtxerr/trendwatch/internal/metrics/cache"
	"github.com/xtxerr/trendwatch/internal/metrics/types"
	"github.com/xtxerr/trendwatch/internal/telemetry"
)

var log = logging.Component("retention")

// Compactor is the durable store surface the manager needs.
type Compactor interface {
	DeleteOlderThan(ctx context.Context, cutoffMs int64) (int64, error)
}

// CleanupResult holds the outcome of one cleanup run.
type CleanupResult struct {
	CacheEvicted   int
	StoreDeleted   int64
	ArchivedPoints int64
	Errors         []error
}

// Stats holds cumulative retention statistics.
type Stats struct {
	LastRunTime    time.Time
	RunsCompleted  int64
	CacheEvicted   int64
	StoreDeleted   int64
	ArchivedPoints int64
	Errors         int64
}

// Manager runs retention cleanup over a cache and its backing store.
type Manager struct {
	mu    sync.Mutex
	cache *cache.Cache
	store Compactor

	// archiveDir receives Parquet files of evicted points; empty
	// disables archiving.
	archiveDir string

	stats Stats
}

// New creates a Manager. Pass an empty archiveDir to disable archiving.
func New(c *cache.Cache, store Compactor, archiveDir string) *Manager {
	return &Manager{cache: c, store: store, archiveDir: archiveDir}
}

// RunCleanup evicts everything past the horizon from the cache and the
// store, archiving evicted points first when enabled.
func (m *Manager) RunCleanup(ctx context.Context, now time.Time) CleanupResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	nowMs := now.UnixMilli()
	var res CleanupResult

	if m.archiveDir != "" {
		if expired := m.cache.Expired(nowMs); len(expired) > 0 {
			n, err := m.archiveSnapshots(expired, now)
			res.ArchivedPoints = n
			if err != nil {
				res.Errors = append(res.Errors, err)
				log.Warn("archive of evicted points failed", "error", err)
			}
		}
	}

	res.CacheEvicted = m.cache.Prune(nowMs)
	if res.CacheEvicted > 0 {
		telemetry.SnapshotsEvicted.Add(float64(res.CacheEvicted))
	}
	telemetry.CacheSize.Set(float64(m.cache.Len()))

	cutoff := nowMs - m.cache.HorizonMs()
	deleted, err := m.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		res.Errors = append(res.Errors, err)
		telemetry.StoreErrors.WithLabelValues("delete-older").Inc()
		log.Warn("store compaction failed", "cutoff_ms", cutoff, "error", err)
	}
	res.StoreDeleted = deleted

	m.stats.LastRunTime = now
	m.stats.RunsCompleted++
	m.stats.CacheEvicted += int64(res.CacheEvicted)
	m.stats.StoreDeleted += res.StoreDeleted
	m.stats.ArchivedPoints += res.ArchivedPoints
	m.stats.Errors += int64(len(res.Errors))

	if res.CacheEvicted > 0 || res.StoreDeleted > 0 {
		log.Info("retention cleanup",
			"cache_evicted", res.CacheEvicted,
			"store_deleted", res.StoreDeleted,
			"archived_points", res.ArchivedPoints)
	}
	return res
}

// DryRun reports what RunCleanup would evict at now, without deleting
// or archiving anything.
func (m *Manager) DryRun(now time.Time) CleanupResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	expired := m.cache.Expired(now.UnixMilli())
	return CleanupResult{
		CacheEvicted:   len(expired),
		ArchivedPoints: int64(len(archive.Flatten(expired))),
	}
}

// archiveSnapshots writes the expired snapshots' points to a new
// Parquet file named after the run time.
func (m *Manager) archiveSnapshots(expired []types.Snapshot, now time.Time) (int64, error) {
	rows := archive.Flatten(expired)
	if len(rows) == 0 {
		return 0, nil
	}

	path := filepath.Join(m.archiveDir, archive.FileName(now))
	w, err := archive.NewWriter(path)
	if err != nil {
		return 0, err
	}

	if err := w.Write(rows); err != nil {
		w.Close()
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// Stats returns cumulative statistics.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
