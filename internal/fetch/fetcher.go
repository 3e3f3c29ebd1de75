// Package fetch drives the periodic upstream snapshot fetch.
//
// The upstream endpoint serves the already-parsed per-cluster payload
// as JSON; the fetcher's only job is to pull it on a fixed cadence and
// hand it to the ingestor. A failed fetch logs and waits for the next
// tick; retry policy beyond that belongs to the upstream side.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/xtxerr/trendwatch/internal/logging"
	"github.com/xtxerr/trendwatch/internal/metrics/types"
	"github.com/xtxerr/trendwatch/internal/telemetry"
)

var log = logging.Component("fetch")

// Ingestor receives fetched payloads.
type Ingestor interface {
	Ingest(payload types.ClusterMap)
}

// Config holds fetcher configuration.
type Config struct {
	// URL serves the cluster → pod → metric payload.
	URL string

	// Interval is the fetch cadence.
	Interval time.Duration

	// Timeout bounds one request.
	Timeout time.Duration
}

// Stats holds fetch counters.
type Stats struct {
	Attempts  int64
	Successes int64
	Failures  int64
}

// Fetcher polls the upstream endpoint.
type Fetcher struct {
	config Config
	client *http.Client
	sink   Ingestor

	attempts  atomic.Int64
	successes atomic.Int64
	failures  atomic.Int64
}

// New creates a Fetcher feeding the given ingestor.
func New(cfg Config, sink Ingestor) *Fetcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 20 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Fetcher{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		sink:   sink,
	}
}

// Run fetches immediately, then on every tick until ctx is cancelled.
// It only returns on cancellation.
func (f *Fetcher) Run(ctx context.Context) error {
	f.fetchOnce(ctx)

	ticker := time.NewTicker(f.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			f.fetchOnce(ctx)
		}
	}
}

// fetchOnce performs a single fetch-and-ingest cycle.
func (f *Fetcher) fetchOnce(ctx context.Context) {
	f.attempts.Add(1)

	payload, err := f.fetch(ctx)
	if err != nil {
		f.failures.Add(1)
		telemetry.FetchAttempts.WithLabelValues("error").Inc()
		log.Warn("snapshot fetch failed", "url", f.config.URL, "error", err)
		return
	}

	f.sink.Ingest(payload)
	f.successes.Add(1)
	telemetry.FetchAttempts.WithLabelValues("ok").Inc()
}

func (f *Fetcher) fetch(ctx context.Context) (types.ClusterMap, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var payload types.ClusterMap
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}

// Stats returns current counters.
func (f *Fetcher) Stats() Stats {
	return Stats{
		Attempts:  f.attempts.Load(),
		Successes: f.successes.Load(),
		Failures:  f.failures.Load(),
	}
}
