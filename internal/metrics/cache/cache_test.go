package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xtxerr/trendwatch/internal/metrics/types"
)

// fakeBacking implements Backing for seeding tests.
type fakeBacking struct {
	snaps        []types.Snapshot
	rangeErr     error
	deletedBelow int64
}

func (f *fakeBacking) RangeQuery(_ context.Context, minMs, maxMs int64) ([]types.Snapshot, error) {
	if f.rangeErr != nil {
		return nil, f.rangeErr
	}
	var out []types.Snapshot
	for _, s := range f.snaps {
		if s.TimestampMs >= minMs && s.TimestampMs <= maxMs {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeBacking) DeleteOlderThan(_ context.Context, cutoffMs int64) (int64, error) {
	f.deletedBelow = cutoffMs
	return 0, nil
}

func snapAt(ts int64) types.Snapshot {
	return types.Snapshot{TimestampMs: ts, Payload: types.ClusterMap{}}
}

func TestSeedFiltersAndCompacts(t *testing.T) {
	now := time.UnixMilli(10_000_000)
	c := New(3600)

	backing := &fakeBacking{snaps: []types.Snapshot{
		snapAt(now.UnixMilli() - 2*3600*1000), // expired
		snapAt(now.UnixMilli() - 1000),
		snapAt(now.UnixMilli()),
	}}

	if err := c.Seed(context.Background(), backing, now); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 seeded snapshots, got %d", c.Len())
	}

	wantCutoff := now.UnixMilli() - 3600*1000
	if backing.deletedBelow != wantCutoff {
		t.Errorf("expected store compaction at %d, got %d", wantCutoff, backing.deletedBelow)
	}
}

func TestSeedDegradesToColdStart(t *testing.T) {
	c := New(3600)
	c.Add(snapAt(1)) // pre-existing content must not survive a failed seed

	backing := &fakeBacking{rangeErr: errors.New("disk gone")}
	err := c.Seed(context.Background(), backing, time.Now())
	if err == nil {
		t.Fatal("expected seed error")
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache after failed seed, got %d", c.Len())
	}

	// Cache stays usable.
	c.Add(snapAt(100))
	if c.Len() != 1 {
		t.Errorf("cache unusable after failed seed")
	}
}

func TestPruneEvictsOldSnapshots(t *testing.T) {
	c := New(60) // 1 minute horizon
	nowMs := int64(1_000_000)

	c.Add(snapAt(nowMs - 120_000)) // expired
	c.Add(snapAt(nowMs - 60_000))  // exactly at cutoff: kept (ts >= cutoff)
	c.Add(snapAt(nowMs - 1_000))

	evicted := c.Prune(nowMs)
	if evicted != 1 {
		t.Errorf("expected 1 evicted, got %d", evicted)
	}

	cutoff := nowMs - c.HorizonMs()
	for _, s := range c.Snapshots() {
		if s.TimestampMs < cutoff {
			t.Errorf("snapshot %d older than cutoff %d survived prune", s.TimestampMs, cutoff)
		}
	}

	// Redundant prune is a no-op.
	if n := c.Prune(nowMs); n != 0 {
		t.Errorf("expected redundant prune to evict 0, got %d", n)
	}
}

func TestExpiredListsWithoutRemoving(t *testing.T) {
	c := New(60)
	nowMs := int64(1_000_000)

	c.Add(snapAt(nowMs - 120_000))
	c.Add(snapAt(nowMs - 1_000))

	exp := c.Expired(nowMs)
	if len(exp) != 1 || exp[0].TimestampMs != nowMs-120_000 {
		t.Fatalf("unexpected expired set: %+v", exp)
	}
	if c.Len() != 2 {
		t.Errorf("Expired must not remove snapshots, len=%d", c.Len())
	}
}

func TestSnapshotsReturnsStableCopy(t *testing.T) {
	c := New(3600)
	c.Add(snapAt(1))

	view := c.Snapshots()
	c.Add(snapAt(2))

	if len(view) != 1 {
		t.Errorf("reader view mutated by concurrent add: %d", len(view))
	}
}

func TestConcurrentReadersSingleWriter(t *testing.T) {
	c := New(3600)
	nowMs := time.Now().UnixMilli()

	var wg sync.WaitGroup
	done := make(chan struct{})

	// Readers hammer Snapshots while the writer appends and prunes.
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snaps := c.Snapshots()
				for j := 1; j < len(snaps); j++ {
					if snaps[j].TimestampMs < snaps[j-1].TimestampMs {
						t.Error("reader observed out-of-order cache state")
						return
					}
				}
			}
		}()
	}

	for i := 0; i < 500; i++ {
		c.Add(snapAt(nowMs + int64(i)))
		if i%50 == 0 {
			c.Prune(nowMs + int64(i))
		}
	}
	close(done)
	wg.Wait()

	if c.Stats().Added != 500 {
		t.Errorf("expected 500 added, got %d", c.Stats().Added)
	}
}

func TestGenerationTracksContentChanges(t *testing.T) {
	c := New(60)

	g0 := c.Generation()
	c.Add(snapAt(100_000))
	g1 := c.Generation()
	if g1 <= g0 {
		t.Fatalf("Add did not advance generation: %d -> %d", g0, g1)
	}

	// A prune that evicts nothing leaves the window unchanged.
	if n := c.Prune(100_000); n != 0 {
		t.Fatalf("unexpected eviction: %d", n)
	}
	if got := c.Generation(); got != g1 {
		t.Fatalf("no-op prune advanced generation: %d -> %d", g1, got)
	}

	if n := c.Prune(100_000 + 61*1000); n != 1 {
		t.Fatalf("expected 1 evicted, got %d", n)
	}
	if got := c.Generation(); got <= g1 {
		t.Fatalf("eviction did not advance generation: %d -> %d", g1, got)
	}
}
