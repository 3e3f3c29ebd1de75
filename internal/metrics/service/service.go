// Package service assembles the metrics history subsystem: durable
// store, window cache, ingestor, query engine and retention manager,
// behind one explicitly constructed object with an Init/Close
// lifecycle. Consumers receive the service by injection; there is no
// package-level instance.
package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	twerrors "github.com/xtxerr/trendwatch/internal/errors"
	"github.com/xtxerr/trendwatch/internal/logging"
	"github.com/xtxerr/trendwatch/internal/metrics/cache"
	"github.com/xtxerr/trendwatch/internal/metrics/ingest"
	"github.com/xtxerr/trendwatch/internal/metrics/query"
	"github.com/xtxerr/trendwatch/internal/metrics/retention"
	"github.com/xtxerr/trendwatch/internal/metrics/store"
	"github.com/xtxerr/trendwatch/internal/metrics/trend"
	"github.com/xtxerr/trendwatch/internal/metrics/types"
	"github.com/xtxerr/trendwatch/internal/telemetry"
)

var log = logging.Component("service")

// Config holds service configuration.
type Config struct {
	// StorePath is the DuckDB file for the durable snapshot store.
	StorePath string

	// StoreQueryTimeout bounds each durable store operation.
	StoreQueryTimeout time.Duration

	// RetentionSeconds is the retention horizon.
	RetentionSeconds int64

	// RetentionInterval is the cadence of the background cleanup worker.
	RetentionInterval time.Duration

	// IngestQueueSize bounds pending durable writes.
	IngestQueueSize int

	// ArchiveDir receives Parquet archives of evicted points; empty
	// disables archiving.
	ArchiveDir string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		StorePath:         "trendwatch.db",
		StoreQueryTimeout: 10 * time.Second,
		RetentionSeconds:  types.DefaultRetentionSeconds,
		RetentionInterval: 5 * time.Minute,
		IngestQueueSize:   256,
	}
}

// Service is the metrics history service.
type Service struct {
	config Config

	store     *store.Store
	cache     *cache.Cache
	ingestor  *ingest.Ingestor
	engine    *query.Engine
	retention *retention.Manager

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// now is the service clock; tests override it.
	now func() time.Time
}

// New creates a Service. No I/O happens until Init.
func New(cfg Config) *Service {
	if cfg.RetentionSeconds <= 0 {
		cfg.RetentionSeconds = types.DefaultRetentionSeconds
	}
	if cfg.RetentionInterval <= 0 {
		cfg.RetentionInterval = DefaultConfig().RetentionInterval
	}

	c := cache.New(cfg.RetentionSeconds)
	return &Service{
		config: cfg,
		cache:  c,
		engine: query.New(c),
		now:    time.Now,
	}
}

// Init opens the durable store, seeds the cache from it, and starts the
// ingest writer and the retention worker. Store failures degrade to a
// cold start: history is best-effort, never critical-path, so Init only
// fails on a second call.
func (s *Service) Init(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return twerrors.ErrAlreadyRunning
	}

	st, err := store.Open(store.Config{
		Path:         s.config.StorePath,
		QueryTimeout: s.config.StoreQueryTimeout,
	})
	if err != nil {
		log.Warn("durable store unavailable, history will not survive restart",
			"path", s.config.StorePath, "error", err)
		telemetry.StoreErrors.WithLabelValues("open").Inc()
	}
	s.store = st

	var backing cache.Backing = st
	var appender ingest.Appender = st
	var compactor retention.Compactor = st
	if st == nil {
		u := unavailableStore{}
		backing, appender, compactor = u, u, u
	}

	if serr := s.cache.Seed(ctx, backing, s.now()); serr != nil {
		log.Warn("cache seed failed, starting cold", "error", serr)
		telemetry.StoreErrors.WithLabelValues("range").Inc()
	}
	telemetry.CacheSize.Set(float64(s.cache.Len()))

	s.ingestor = ingest.New(s.cache, appender, s.config.IngestQueueSize)
	s.ingestor.Start()

	s.retention = retention.New(s.cache, compactor, s.config.ArchiveDir)

	workerCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.retentionWorker(workerCtx)

	log.Info("metrics history service started",
		"retention_seconds", s.config.RetentionSeconds,
		"cached_snapshots", s.cache.Len(),
		"durable", st != nil)
	return nil
}

// Close stops the workers, drains pending durable writes and closes the
// store.
func (s *Service) Close() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	s.cancel()
	s.wg.Wait()
	s.ingestor.Stop()

	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// Ingest accepts one full metrics snapshot. It never fails: durable
// problems are logged by the ingestor and do not affect the in-memory
// path.
func (s *Service) Ingest(payload types.ClusterMap) {
	if !s.running.Load() {
		log.Warn("ingest on stopped service dropped")
		return
	}
	s.ingestor.Ingest(payload)
}

// GetMetricHistory returns the time-ordered series for an entity's
// metric, summed across label dimensions.
func (s *Service) GetMetricHistory(entity types.Entity, metric string) types.Series {
	telemetry.QueriesServed.WithLabelValues("history").Inc()
	return s.engine.History(entity, metric)
}

// GetMetricHistoryByLabel returns the series for a single label
// identity of an entity's metric.
func (s *Service) GetMetricHistoryByLabel(entity types.Entity, metric, labelIdentity string) types.Series {
	telemetry.QueriesServed.WithLabelValues("history").Inc()
	return s.engine.HistoryByLabel(entity, metric, labelIdentity)
}

// GetAverageMetricValue returns the windowed average of a series as of
// the service clock.
func (s *Service) GetAverageMetricValue(window types.Window, series types.Series) float64 {
	telemetry.QueriesServed.WithLabelValues("average").Inc()
	return trend.Average(series, window, s.now().UnixMilli())
}

// GetMetricTrend returns the windowed trend of a series as of the
// service clock.
func (s *Service) GetMetricTrend(window types.Window, series types.Series) trend.Trend {
	telemetry.QueriesServed.WithLabelValues("trend").Inc()
	return trend.Compute(series, window, s.now().UnixMilli())
}

// GetWindowSummary returns windowed summary statistics for a series.
func (s *Service) GetWindowSummary(window types.Window, series types.Series) trend.Summary {
	telemetry.QueriesServed.WithLabelValues("summary").Inc()
	return trend.Summarize(series, window, s.now().UnixMilli())
}

// RunRetention triggers a cleanup outside the periodic schedule.
func (s *Service) RunRetention(ctx context.Context) retention.CleanupResult {
	return s.retention.RunCleanup(ctx, s.now())
}

// retentionWorker periodically compacts cache and store.
func (s *Service) retentionWorker(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.RetentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.retention.RunCleanup(ctx, s.now())
		}
	}
}

// ServiceStats holds combined statistics.
type ServiceStats struct {
	Running         bool
	CachedSnapshots int
	Cache           cache.Stats
	Ingest          ingest.Stats
	Query           query.Stats
	Retention       retention.Stats
	StoredSnapshots int64
}

// Stats returns combined statistics. The stored-snapshot count is 0
// when the durable store is unavailable.
func (s *Service) Stats(ctx context.Context) ServiceStats {
	stats := ServiceStats{
		Running:         s.running.Load(),
		CachedSnapshots: s.cache.Len(),
		Cache:           s.cache.Stats(),
	}
	if s.ingestor != nil {
		stats.Ingest = s.ingestor.Stats()
	}
	if s.engine != nil {
		stats.Query = s.engine.Stats()
	}
	if s.retention != nil {
		stats.Retention = s.retention.Stats()
	}
	if s.store != nil {
		if n, err := s.store.Count(ctx); err == nil {
			stats.StoredSnapshots = n
		}
	}
	return stats
}

// Windows returns the fixed window table the dashboard offers.
func (s *Service) Windows() []types.Window {
	return types.Windows
}

// unavailableStore stands in when the durable store failed to open; all
// operations report ErrStoreUnavailable and callers degrade as usual.
type unavailableStore struct{}

func (unavailableStore) Append(context.Context, types.Snapshot) error {
	return twerrors.NewStoreError("append", twerrors.ErrStoreUnavailable)
}

func (unavailableStore) RangeQuery(context.Context, int64, int64) ([]types.Snapshot, error) {
	return nil, twerrors.NewStoreError("range", twerrors.ErrStoreUnavailable)
}

func (unavailableStore) DeleteOlderThan(context.Context, int64) (int64, error) {
	return 0, twerrors.NewStoreError("delete-older", twerrors.ErrStoreUnavailable)
}
