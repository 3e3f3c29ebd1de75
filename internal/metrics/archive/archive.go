// Package archive writes evicted metric points to Parquet files.
//
// When a snapshot ages past the retention horizon it leaves both the
// cache and the durable store; with archiving enabled the retention
// manager first flattens it to per-metric points and appends them here.
// Archived files are a cold tier for offline analysis, not a query
// source for the dashboard.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/xtxerr/trendwatch/internal/metrics/types"
)

// PointRow is the flattened Parquet representation of one metric entry.
type PointRow struct {
	Cluster     string  `parquet:"cluster,zstd"`
	Pod         string  `parquet:"pod,zstd"`
	Metric      string  `parquet:"metric,zstd"`
	Labels      string  `parquet:"labels,optional,zstd"`
	TimestampMs int64   `parquet:"timestamp_ms"`
	Value       float64 `parquet:"value"`
	Text        string  `parquet:"text,optional,zstd"`
}

// Flatten converts snapshots to point rows. Numeric values carry their
// coerced value; text values carry 0 plus the original string.
func Flatten(snaps []types.Snapshot) []PointRow {
	var rows []PointRow
	for _, snap := range snaps {
		for cluster, pods := range snap.Payload {
			for pod, metricsByName := range pods {
				for metric, entries := range metricsByName {
					for _, mv := range entries {
						row := PointRow{
							Cluster:     cluster,
							Pod:         pod,
							Metric:      metric,
							Labels:      mv.LabelIdentity(),
							TimestampMs: snap.TimestampMs,
							Value:       mv.Value.Coerce(),
						}
						if mv.Value.Kind() == types.KindText {
							row.Text = mv.Value.String()
						}
						rows = append(rows, row)
					}
				}
			}
		}
	}
	return rows
}

// Writer appends point rows to a single Parquet file.
type Writer struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	writer *parquet.GenericWriter[PointRow]
	rows   int64
	closed bool
}

// NewWriter creates the file (and its directory) and prepares a
// zstd-compressed writer.
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	w := parquet.NewGenericWriter[PointRow](f, parquet.Compression(&parquet.Zstd))

	return &Writer{path: path, file: f, writer: w}, nil
}

// Write appends rows to the file.
func (w *Writer) Write(rows []PointRow) error {
	if len(rows) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("archive writer closed: %s", w.path)
	}

	n, err := w.writer.Write(rows)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	w.rows += int64(n)
	return nil
}

// Rows returns the number of rows written so far.
func (w *Writer) Rows() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close writer: %w", err)
	}
	return w.file.Close()
}

// ReadAll reads every point row from an archive file.
func ReadAll(path string) ([]PointRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[PointRow](pf)
	defer reader.Close()

	rows := make([]PointRow, reader.NumRows())
	if len(rows) == 0 {
		return nil, nil
	}
	n, err := reader.Read(rows)
	if err != nil && n == 0 {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return rows[:n], nil
}

// FileName returns the archive file name for a retention run at ts.
func FileName(ts time.Time) string {
	return "points-" + ts.UTC().Format("20060102T150405Z") + ".parquet"
}
