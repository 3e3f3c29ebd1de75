package retention

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xtxerr/trendwatch/internal/metrics/archive"
	"github.com/xtxerr/trendwatch/internal/metrics/cache"
	"github.com/xtxerr/trendwatch/internal/metrics/types"
)

type fakeCompactor struct {
	cutoff  int64
	deleted int64
	err     error
}

func (f *fakeCompactor) DeleteOlderThan(_ context.Context, cutoffMs int64) (int64, error) {
	f.cutoff = cutoffMs
	if f.err != nil {
		return 0, f.err
	}
	return f.deleted, nil
}

func snapAt(ts int64, value float64) types.Snapshot {
	return types.Snapshot{
		TimestampMs: ts,
		Payload: types.ClusterMap{
			"prod": {
				"vmagent-0": {
					"cpu_usage": []types.MetricValue{{Value: types.Number(value)}},
				},
			},
		},
	}
}

func TestRunCleanupEvictsAndCompacts(t *testing.T) {
	c := cache.New(60)
	now := time.UnixMilli(1_000_000)

	c.Add(snapAt(now.UnixMilli()-120_000, 1)) // expired
	c.Add(snapAt(now.UnixMilli()-1_000, 2))

	comp := &fakeCompactor{deleted: 1}
	m := New(c, comp, "")

	res := m.RunCleanup(context.Background(), now)
	if res.CacheEvicted != 1 {
		t.Errorf("expected 1 cache eviction, got %d", res.CacheEvicted)
	}
	if res.StoreDeleted != 1 {
		t.Errorf("expected 1 store deletion, got %d", res.StoreDeleted)
	}
	if len(res.Errors) != 0 {
		t.Errorf("unexpected errors: %v", res.Errors)
	}

	wantCutoff := now.UnixMilli() - c.HorizonMs()
	if comp.cutoff != wantCutoff {
		t.Errorf("expected cutoff %d, got %d", wantCutoff, comp.cutoff)
	}

	if s := m.Stats(); s.RunsCompleted != 1 || s.CacheEvicted != 1 {
		t.Errorf("unexpected stats: %+v", s)
	}
}

func TestRunCleanupArchivesBeforeEviction(t *testing.T) {
	c := cache.New(60)
	now := time.UnixMilli(1_000_000)
	dir := t.TempDir()

	c.Add(snapAt(now.UnixMilli()-120_000, 42))
	c.Add(snapAt(now.UnixMilli()-1_000, 2))

	m := New(c, &fakeCompactor{}, dir)
	res := m.RunCleanup(context.Background(), now)

	if res.ArchivedPoints != 1 {
		t.Fatalf("expected 1 archived point, got %d", res.ArchivedPoints)
	}

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one archive file, got %v (%v)", entries, err)
	}

	rows, err := archive.ReadAll(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(rows) != 1 || rows[0].Value != 42 {
		t.Fatalf("archived rows wrong: %+v", rows)
	}
}

func TestRunCleanupStoreFailureIsRecorded(t *testing.T) {
	c := cache.New(60)
	now := time.UnixMilli(1_000_000)

	m := New(c, &fakeCompactor{err: errors.New("io error")}, "")
	res := m.RunCleanup(context.Background(), now)

	if len(res.Errors) != 1 {
		t.Fatalf("expected 1 recorded error, got %v", res.Errors)
	}
	if s := m.Stats(); s.Errors != 1 {
		t.Errorf("error not counted: %+v", s)
	}
}

func TestDryRunDeletesNothing(t *testing.T) {
	c := cache.New(60)
	now := time.UnixMilli(1_000_000)

	c.Add(snapAt(now.UnixMilli()-120_000, 1))
	comp := &fakeCompactor{}
	m := New(c, comp, "")

	res := m.DryRun(now)
	if res.CacheEvicted != 1 || res.ArchivedPoints != 1 {
		t.Errorf("unexpected dry-run result: %+v", res)
	}
	if c.Len() != 1 {
		t.Errorf("dry run must not evict, len=%d", c.Len())
	}
	if comp.cutoff != 0 {
		t.Errorf("dry run must not touch the store")
	}
}
