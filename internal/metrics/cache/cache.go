// Package cache holds the in-memory window of recent snapshots.
//
// The cache is the authoritative copy for a running session: it is
// seeded once from the durable store at startup and afterwards only fed
// by the ingestor. A single writer mutates it; readers copy the backing
// slice under RLock, so a query in flight observes either the
// pre-ingestion or the post-ingestion state, never a partial append.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xtxerr/trendwatch/internal/logging"
	"github.com/xtxerr/trendwatch/internal/metrics/types"
)

var log = logging.Component("cache")

// Backing is the durable store surface the cache needs for seeding.
type Backing interface {
	RangeQuery(ctx context.Context, minMs, maxMs int64) ([]types.Snapshot, error)
	DeleteOlderThan(ctx context.Context, cutoffMs int64) (int64, error)
}

// Cache is a retention-bounded, ascending sequence of snapshots.
type Cache struct {
	mu        sync.RWMutex
	snaps     []types.Snapshot
	horizonMs int64

	// gen increments with every contents change, while the write lock
	// is still held.
	gen atomic.Int64

	// Statistics
	added   atomic.Int64
	evicted atomic.Int64
}

// New creates a Cache with the given retention horizon.
func New(retentionSeconds int64) *Cache {
	if retentionSeconds <= 0 {
		retentionSeconds = types.DefaultRetentionSeconds
	}
	return &Cache{horizonMs: retentionSeconds * 1000}
}

// Seed loads not-yet-expired snapshots from the durable store, then
// compacts the store. A store failure degrades to an empty cache (cold
// start); the error is returned for logging only and leaves the cache
// usable. Seed is the only read the cache ever makes from the store.
func (c *Cache) Seed(ctx context.Context, backing Backing, now time.Time) error {
	nowMs := now.UnixMilli()
	cutoff := nowMs - c.horizonMs

	snaps, err := backing.RangeQuery(ctx, cutoff, nowMs)
	if err != nil {
		c.mu.Lock()
		c.snaps = nil
		c.gen.Add(1)
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.snaps = snaps
	c.gen.Add(1)
	c.mu.Unlock()

	if _, derr := backing.DeleteOlderThan(ctx, cutoff); derr != nil {
		log.Warn("store compaction after seed failed", "error", derr)
	}

	log.Info("cache seeded", "snapshots", len(snaps), "cutoff_ms", cutoff)
	return nil
}

// Add appends a snapshot. Ingestion always appends "now", so insertion
// order is timestamp-ascending in normal operation; readers that need
// ordering guarantees sort their derived series.
func (c *Cache) Add(snap types.Snapshot) {
	c.mu.Lock()
	c.snaps = append(c.snaps, snap)
	c.gen.Add(1)
	c.mu.Unlock()
	c.added.Add(1)
}

// Prune evicts snapshots older than the retention horizon and returns
// the number evicted. Safe to call redundantly.
func (c *Cache) Prune(nowMs int64) int {
	cutoff := nowMs - c.horizonMs

	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.snaps[:0]
	for _, s := range c.snaps {
		if s.TimestampMs >= cutoff {
			kept = append(kept, s)
		}
	}
	n := len(c.snaps) - len(kept)
	c.snaps = kept
	if n > 0 {
		c.gen.Add(1)
		c.evicted.Add(int64(n))
	}
	return n
}

// Expired returns the snapshots that Prune would evict at nowMs, oldest
// first, without removing them. The retention manager uses this to
// archive points before they disappear.
func (c *Cache) Expired(nowMs int64) []types.Snapshot {
	cutoff := nowMs - c.horizonMs

	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []types.Snapshot
	for _, s := range c.snaps {
		if s.TimestampMs < cutoff {
			out = append(out, s)
		}
	}
	return out
}

// Snapshots returns a copy of the cached sequence. Snapshots themselves
// are immutable, so sharing their payload maps is safe.
func (c *Cache) Snapshots() []types.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.Snapshot, len(c.snaps))
	copy(out, c.snaps)
	return out
}

// Generation returns a counter that increments with every contents
// change. A reader that observed a write completing is guaranteed to
// read a generation at least as new as that write's.
func (c *Cache) Generation() int64 { return c.gen.Load() }

// Len returns the number of cached snapshots.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.snaps)
}

// HorizonMs returns the retention horizon in milliseconds.
func (c *Cache) HorizonMs() int64 { return c.horizonMs }

// Stats holds cache counters.
type Stats struct {
	Size    int
	Added   int64
	Evicted int64
}

// Stats returns current counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Size:    c.Len(),
		Added:   c.added.Load(),
		Evicted: c.evicted.Load(),
	}
}
