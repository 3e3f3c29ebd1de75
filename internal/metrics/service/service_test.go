package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/xtxerr/trendwatch/internal/metrics/types"
)

var entity = types.Entity{Cluster: "prod", Pod: "vmagent-0"}

func payload(value float64) types.ClusterMap {
	return types.ClusterMap{
		"prod": {
			"vmagent-0": {
				"cpu_usage": []types.MetricValue{{Value: types.Number(value)}},
			},
		},
	}
}

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.StorePath = filepath.Join(t.TempDir(), "history.db")
	return cfg
}

func TestIngestThenQuery(t *testing.T) {
	svc := New(testConfig(t))

	base := time.UnixMilli(10_000_000)
	now := base
	svc.now = func() time.Time { return now }

	if err := svc.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer svc.Close()

	svc.Ingest(payload(100))
	now = base.Add(20 * time.Second)
	svc.Ingest(payload(130))

	series := svc.GetMetricHistory(entity, "cpu_usage")
	if len(series) != 2 {
		t.Fatalf("expected 2 points, got %d", len(series))
	}

	w, _ := types.WindowByLabel("1m")
	tr := svc.GetMetricTrend(w, series)
	if tr.Delta != 30 || !tr.IsTrending {
		t.Errorf("unexpected trend: %+v", tr)
	}
	if tr.Message != "30 in 1m" {
		t.Errorf("unexpected message: %q", tr.Message)
	}

	if avg := svc.GetAverageMetricValue(w, series); avg != 115 {
		t.Errorf("expected average 115, got %v", avg)
	}

	sum := svc.GetWindowSummary(w, series)
	if sum.Count != 2 || sum.Min != 100 || sum.Max != 130 {
		t.Errorf("unexpected summary: %+v", sum)
	}
}

func TestWarmStartFromDurableStore(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	svc := New(cfg)
	if err := svc.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	svc.Ingest(payload(55))
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// A fresh service over the same store file sees the history.
	svc2 := New(cfg)
	if err := svc2.Init(ctx); err != nil {
		t.Fatalf("second Init: %v", err)
	}
	defer svc2.Close()

	series := svc2.GetMetricHistory(entity, "cpu_usage")
	if len(series) != 1 || series[0].Value != 55 {
		t.Fatalf("expected warm-started history, got %v", series)
	}
}

func TestColdStartWhenStoreUnavailable(t *testing.T) {
	cfg := DefaultConfig()
	// A database path inside a missing directory cannot be opened.
	cfg.StorePath = filepath.Join(t.TempDir(), "missing", "sub", "history.db")

	svc := New(cfg)
	if err := svc.Init(context.Background()); err != nil {
		t.Fatalf("Init must degrade, not fail: %v", err)
	}
	defer svc.Close()

	// The in-memory path works without durable backing.
	svc.Ingest(payload(7))
	series := svc.GetMetricHistory(entity, "cpu_usage")
	if len(series) != 1 || series[0].Value != 7 {
		t.Fatalf("expected in-memory history on cold start, got %v", series)
	}

	stats := svc.Stats(context.Background())
	if stats.Ingest.StoreErrors == 0 && stats.Ingest.Persisted != 0 {
		t.Errorf("expected durable writes to fail quietly: %+v", stats.Ingest)
	}
}

func TestDoubleInitRejected(t *testing.T) {
	svc := New(testConfig(t))
	if err := svc.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer svc.Close()

	if err := svc.Init(context.Background()); err == nil {
		t.Error("expected error on second Init")
	}
}

func TestIngestOnStoppedServiceIsNoop(t *testing.T) {
	svc := New(testConfig(t))
	svc.Ingest(payload(1)) // never initialized

	if n := svc.cache.Len(); n != 0 {
		t.Errorf("expected no cached snapshots, got %d", n)
	}
}

func TestRetentionThroughService(t *testing.T) {
	cfg := testConfig(t)
	cfg.RetentionSeconds = 60

	svc := New(cfg)
	base := time.UnixMilli(10_000_000)
	now := base
	svc.now = func() time.Time { return now }

	if err := svc.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer svc.Close()

	svc.Ingest(payload(1))
	now = base.Add(2 * time.Minute)

	res := svc.RunRetention(context.Background())
	if res.CacheEvicted != 1 {
		t.Errorf("expected 1 eviction, got %+v", res)
	}
	if len(svc.GetMetricHistory(entity, "cpu_usage")) != 0 {
		t.Error("expected empty history after retention run")
	}
}

func TestWindowsTable(t *testing.T) {
	svc := New(testConfig(t))
	if len(svc.Windows()) != 7 {
		t.Errorf("expected 7 windows, got %d", len(svc.Windows()))
	}
}
