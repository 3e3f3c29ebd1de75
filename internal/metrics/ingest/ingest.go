// Package ingest accepts metric snapshots and feeds the window cache
// and the durable store.
//
// The cache write is synchronous: a query issued after Ingest returns
// observes the new snapshot. The durable write is fire-and-forget
// through a bounded queue drained by a single writer goroutine; when
// the queue is full the durable write is dropped and counted, never the
// cache write. No store failure is ever surfaced to the ingest caller.
package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xtxerr/trendwatch/internal/logging"
	"github.com/xtxerr/trendwatch/internal/metrics/cache"
	"github.com/xtxerr/trendwatch/internal/metrics/types"
	"github.com/xtxerr/trendwatch/internal/telemetry"
)

var log = logging.Component("ingest")

// Appender is the durable store surface the ingestor needs.
type Appender interface {
	Append(ctx context.Context, snap types.Snapshot) error
}

// Stats holds ingestion counters.
type Stats struct {
	Received      int64
	Persisted     int64
	WritesDropped int64
	StoreErrors   int64
}

// Ingestor stamps payloads and routes them to the cache and the store.
type Ingestor struct {
	cache *cache.Cache
	store Appender
	queue chan types.Snapshot

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// now is the ingestion clock; tests override it.
	now func() time.Time

	received      atomic.Int64
	persisted     atomic.Int64
	writesDropped atomic.Int64
	storeErrors   atomic.Int64
}

// New creates an Ingestor. queueSize bounds the pending durable writes.
func New(c *cache.Cache, store Appender, queueSize int) *Ingestor {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Ingestor{
		cache: c,
		store: store,
		queue: make(chan types.Snapshot, queueSize),
		now:   time.Now,
	}
}

// Start launches the store writer.
func (i *Ingestor) Start() {
	if !i.running.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	i.cancel = cancel

	i.wg.Add(1)
	go i.writer(ctx)
}

// Stop stops the writer after draining queued writes.
func (i *Ingestor) Stop() {
	if !i.running.CompareAndSwap(true, false) {
		return
	}
	i.cancel()
	i.wg.Wait()
}

// Ingest stamps the payload with the current time, appends it to the
// cache, prunes opportunistically, and queues the durable write.
func (i *Ingestor) Ingest(payload types.ClusterMap) {
	now := i.now()
	snap := types.Snapshot{TimestampMs: now.UnixMilli(), Payload: payload}

	i.cache.Add(snap)
	i.received.Add(1)
	telemetry.SnapshotsIngested.Inc()

	if n := i.cache.Prune(now.UnixMilli()); n > 0 {
		telemetry.SnapshotsEvicted.Add(float64(n))
	}
	telemetry.CacheSize.Set(float64(i.cache.Len()))

	if !i.running.Load() {
		return
	}

	select {
	case i.queue <- snap:
	default:
		i.writesDropped.Add(1)
		telemetry.DurableWritesDropped.Inc()
		log.Warn("durable write dropped, queue full", "timestamp_ms", snap.TimestampMs)
	}
}

// writer drains the queue into the store until cancelled, then flushes
// what remains.
func (i *Ingestor) writer(ctx context.Context) {
	defer i.wg.Done()

	for {
		select {
		case snap := <-i.queue:
			i.persist(snap)
		case <-ctx.Done():
			for {
				select {
				case snap := <-i.queue:
					i.persist(snap)
				default:
					return
				}
			}
		}
	}
}

func (i *Ingestor) persist(snap types.Snapshot) {
	if err := i.store.Append(context.Background(), snap); err != nil {
		i.storeErrors.Add(1)
		telemetry.StoreErrors.WithLabelValues("append").Inc()
		log.Warn("durable append failed", "timestamp_ms", snap.TimestampMs, "error", err)
		return
	}
	i.persisted.Add(1)
}

// Stats returns current counters.
func (i *Ingestor) Stats() Stats {
	return Stats{
		Received:      i.received.Load(),
		Persisted:     i.persisted.Load(),
		WritesDropped: i.writesDropped.Load(),
		StoreErrors:   i.storeErrors.Load(),
	}
}
