// Package types defines the core data model for the metrics history
// subsystem: snapshots, metric values, derived series, and time windows.
package types

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// DefaultRetentionSeconds bounds how long a snapshot may remain in the
// cache or the durable store before eviction.
const DefaultRetentionSeconds = 3600

// ValueKind indicates which variant of a Value is populated.
type ValueKind int

const (
	// KindNumber is a numeric measurement (e.g., CPU usage, byte count).
	KindNumber ValueKind = iota
	// KindText is a string value (e.g., a version tag or status label).
	// Text values coerce to 0 in numeric aggregations.
	KindText
)

// String returns a human-readable representation of the ValueKind.
func (k ValueKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Value is a tagged union of a number or a string, matching the upstream
// payload where a metric value may be either.
//
// Coerce is the single place the numeric coercion rule lives: every
// aggregation path goes through it so the "non-finite becomes 0" rule is
// enforced once.
type Value struct {
	kind ValueKind
	num  float64
	text string
}

// Number constructs a numeric Value.
func Number(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// Text constructs a string Value.
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// Kind returns the populated variant.
func (v Value) Kind() ValueKind { return v.kind }

// Coerce returns the numeric value used in aggregations. Text values and
// non-finite numbers (NaN, ±Inf) coerce to 0; NaN and Inf never propagate
// into a derived result.
func (v Value) Coerce() float64 {
	if v.kind != KindNumber {
		return 0
	}
	if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
		return 0
	}
	return v.num
}

// String returns the value for display.
func (v Value) String() string {
	if v.kind == KindText {
		return v.text
	}
	return fmt.Sprintf("%g", v.num)
}

// UnmarshalJSON accepts either a JSON number or a JSON string, matching
// the upstream payload shape.
func (v *Value) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*v = Number(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = Text(s)
		return nil
	}
	return fmt.Errorf("metric value must be a number or a string: %s", data)
}

// MarshalJSON emits the original variant.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindText {
		return json.Marshal(v.text)
	}
	if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
		// JSON cannot carry NaN/Inf; persist the coerced value.
		return json.Marshal(0.0)
	}
	return json.Marshal(v.num)
}

// MetricValue is one observed entry for a metric. A metric name may
// resolve to several entries distinguished by their label set, one per
// series (e.g., one entry per data_type label).
type MetricValue struct {
	Value  Value             `json:"value"`
	Labels map[string]string `json:"labels,omitempty"`
}

// LabelIdentity returns the identity of this entry within its metric:
// the label pairs sorted by key and joined as "k=v,k=v". An entry with
// no labels has the empty identity.
func (mv MetricValue) LabelIdentity() string {
	if len(mv.Labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(mv.Labels))
	for k := range mv.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(mv.Labels[k])
	}
	return b.String()
}

// ClusterMap is the full per-tick payload:
// cluster name → pod name → metric name → observed entries.
type ClusterMap map[string]map[string]map[string][]MetricValue

// Snapshot is one timestamped capture of all entities' metric values.
// Snapshots are immutable once constructed; corrections arrive as new
// snapshots, never as updates in place.
type Snapshot struct {
	// TimestampMs is the ingestion time in Unix milliseconds. It is the
	// primary key in the durable store.
	TimestampMs int64

	// Payload holds the raw per-cluster/per-pod/per-metric values for
	// this tick, opaque to the store.
	Payload ClusterMap
}

// Time returns the snapshot timestamp as a time.Time.
func (s Snapshot) Time() time.Time {
	return time.UnixMilli(s.TimestampMs)
}

// Entity identifies the source of a metric. Both fields are opaque
// strings owned by the dashboard's domain layer; they are never
// validated here.
type Entity struct {
	Cluster string
	Pod     string
}

// String returns the string representation of the entity.
func (e Entity) String() string {
	return e.Cluster + "/" + e.Pod
}

// Point is a single (timestamp, coerced value) observation in a series.
type Point struct {
	TimestampMs int64   `json:"ts"`
	Value       float64 `json:"value"`
}

// Series is the time-ordered sequence of one metric's coerced numeric
// values for one entity. It is always derived on demand from cached
// snapshots, never stored materialized.
type Series []Point

// SortAscending orders the series by timestamp in place.
func (s Series) SortAscending() {
	sort.Slice(s, func(i, j int) bool {
		return s[i].TimestampMs < s[j].TimestampMs
	})
}

// Window bounds a trend or average computation. Seconds is what the
// calculators consume; Label appears in trend messages.
type Window struct {
	Seconds int64  `json:"seconds"`
	Label   string `json:"label"`
}

// Windows is the fixed set of windows the dashboard offers.
var Windows = []Window{
	{Seconds: 60, Label: "1m"},
	{Seconds: 300, Label: "5m"},
	{Seconds: 600, Label: "10m"},
	{Seconds: 900, Label: "15m"},
	{Seconds: 1800, Label: "30m"},
	{Seconds: 2700, Label: "45m"},
	{Seconds: 3600, Label: "60m"},
}

// WindowByLabel looks up a window from the fixed table. The second
// return is false for labels outside the table.
func WindowByLabel(label string) (Window, bool) {
	for _, w := range Windows {
		if w.Label == label {
			return w, true
		}
	}
	return Window{}, false
}
