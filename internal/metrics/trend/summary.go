package trend

import (
	"math"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/xtxerr/trendwatch/internal/metrics/types"
)

// sketchAccuracy is the DDSketch relative accuracy for percentiles.
const sketchAccuracy = 0.01

// Summary holds windowed summary statistics for a series, including
// optional DDSketch percentiles. Percentile fields are nil when the
// window holds no points or the sketch could not be built.
type Summary struct {
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`

	P50 *float64 `json:"p50,omitempty"`
	P90 *float64 `json:"p90,omitempty"`
	P95 *float64 `json:"p95,omitempty"`
	P99 *float64 `json:"p99,omitempty"`
}

// Summarize computes windowed summary statistics over a series.
// An empty window yields the zero Summary.
func Summarize(series types.Series, window types.Window, nowMs int64) Summary {
	pts := FilterRecent(series, window, nowMs)
	if len(pts) == 0 {
		return Summary{}
	}

	s := Summary{
		Min: math.MaxFloat64,
		Max: -math.MaxFloat64,
	}

	sketch, err := ddsketch.NewDefaultDDSketch(sketchAccuracy)
	if err != nil {
		sketch = nil
	}

	for _, p := range pts {
		s.Count++
		s.Sum += p.Value
		if p.Value < s.Min {
			s.Min = p.Value
		}
		if p.Value > s.Max {
			s.Max = p.Value
		}
		if sketch != nil {
			// DDSketch rejects values outside its representable range;
			// a failed add only disables percentiles for this summary.
			if aerr := sketch.Add(p.Value); aerr != nil {
				sketch = nil
			}
		}
	}
	s.Avg = s.Sum / float64(s.Count)

	if sketch != nil {
		s.P50 = quantile(sketch, 0.50)
		s.P90 = quantile(sketch, 0.90)
		s.P95 = quantile(sketch, 0.95)
		s.P99 = quantile(sketch, 0.99)
	}
	return s
}

func quantile(sketch *ddsketch.DDSketch, q float64) *float64 {
	v, err := sketch.GetValueAtQuantile(q)
	if err != nil {
		return nil
	}
	return &v
}
