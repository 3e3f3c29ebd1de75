// Package trend computes windowed aggregates over a metric series.
//
// Everything here is a pure function of (series, window, now): no state,
// no clock reads, no mutation of the input beyond sorting a local copy.
// Values reaching this package are already numerically coerced, so no
// NaN or Inf can enter a result.
package trend

import (
	"github.com/xtxerr/trendwatch/internal/format"
	"github.com/xtxerr/trendwatch/internal/metrics/types"
)

// Trend describes how a series moved inside a window: the signed delta
// between the earliest and latest in-window values, a strict
// "is increasing" flag, and the display message.
type Trend struct {
	Message    string  `json:"message"`
	IsTrending bool    `json:"isTrending"`
	Delta      float64 `json:"delta"`
}

// FilterRecent keeps points with timestamp strictly inside the window:
// ts > now − window. A point exactly at the cutoff is excluded.
func FilterRecent(series types.Series, window types.Window, nowMs int64) types.Series {
	cutoff := nowMs - window.Seconds*1000

	var out types.Series
	for _, p := range series {
		if p.TimestampMs > cutoff {
			out = append(out, p)
		}
	}
	return out
}

// Average returns the arithmetic mean of the in-window values.
// No points yields 0; a single point yields that point's value.
func Average(series types.Series, window types.Window, nowMs int64) float64 {
	pts := FilterRecent(series, window, nowMs)

	switch len(pts) {
	case 0:
		return 0
	case 1:
		return pts[0].Value
	}

	var sum float64
	for _, p := range pts {
		sum += p.Value
	}
	return sum / float64(len(pts))
}

// Compute derives the trend for a series inside a window. Fewer than two
// in-window points yield a neutral trend: delta 0, not trending, message
// "0 in <label>". The flag is strict: a flat delta of exactly 0 is not
// trending.
func Compute(series types.Series, window types.Window, nowMs int64) Trend {
	pts := FilterRecent(series, window, nowMs)

	if len(pts) < 2 {
		return Trend{
			Message:    "0 in " + window.Label,
			IsTrending: false,
			Delta:      0,
		}
	}

	pts.SortAscending()
	delta := pts[len(pts)-1].Value - pts[0].Value

	return Trend{
		Message:    format.Number(delta) + " in " + window.Label,
		IsTrending: delta > 0,
		Delta:      delta,
	}
}
