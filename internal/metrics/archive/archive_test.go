package archive

import (
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/xtxerr/trendwatch/internal/metrics/types"
)

func TestFlatten(t *testing.T) {
	snaps := []types.Snapshot{
		{
			TimestampMs: 1000,
			Payload: types.ClusterMap{
				"prod": {
					"vmagent-0": {
						"mem_usage": []types.MetricValue{
							{Value: types.Number(100), Labels: map[string]string{"data_type": "rss"}},
							{Value: types.Number(50), Labels: map[string]string{"data_type": "cache"}},
						},
						"version": []types.MetricValue{
							{Value: types.Text("v1.2.3")},
						},
					},
				},
			},
		},
	}

	rows := Flatten(snaps)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Labels < rows[j].Labels })

	// Text values keep the original string and coerce to 0.
	var sawText bool
	for _, r := range rows {
		if r.Metric == "version" {
			sawText = true
			if r.Value != 0 || r.Text != "v1.2.3" {
				t.Errorf("text row wrong: %+v", r)
			}
		}
		if r.TimestampMs != 1000 {
			t.Errorf("row lost its snapshot timestamp: %+v", r)
		}
	}
	if !sawText {
		t.Error("text metric missing from flattened rows")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", FileName(time.UnixMilli(0)))

	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	rows := []PointRow{
		{Cluster: "prod", Pod: "vmagent-0", Metric: "cpu", TimestampMs: 1000, Value: 1.5},
		{Cluster: "prod", Pod: "vmagent-0", Metric: "cpu", TimestampMs: 2000, Value: 2.5},
		{Cluster: "prod", Pod: "vmagent-1", Metric: "mem", Labels: "data_type=rss", TimestampMs: 2000, Value: 512},
	}
	if err := w.Write(rows); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if w.Rows() != 3 {
		t.Errorf("expected 3 rows written, got %d", w.Rows())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows back, got %d", len(got))
	}
	if got[2].Labels != "data_type=rss" || got[2].Value != 512 {
		t.Errorf("row not value-equal after round trip: %+v", got[2])
	}
}

func TestWriteAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.parquet")
	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Write([]PointRow{{Cluster: "a"}}); err == nil {
		t.Error("expected error writing to closed writer")
	}
}

func TestFileName(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	if got := FileName(ts); got != "points-20260304T050607Z.parquet" {
		t.Errorf("unexpected file name: %s", got)
	}
}
