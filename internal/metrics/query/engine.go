// Package query derives metric series from the cached snapshot window.
//
// The engine owns the knowledge of how to reach an entity and metric
// inside a snapshot payload; the cache just hands over the window. The
// engine never mutates cache state: it extracts values into fresh
// slices.
package query

import (
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/xtxerr/trendwatch/internal/metrics/cache"
	"github.com/xtxerr/trendwatch/internal/metrics/types"
)

// Engine answers history queries against the window cache.
//
// Identical concurrent queries coalesce through singleflight so a burst
// of dashboard tiles asking for the same series scans the window once.
type Engine struct {
	cache *cache.Cache
	group singleflight.Group

	// Statistics
	queries   atomic.Int64
	coalesced atomic.Int64
}

// New creates an Engine over the given cache.
func New(c *cache.Cache) *Engine {
	return &Engine{cache: c}
}

// History returns the time-ordered series of an entity's metric,
// summing the coerced values of all label dimensions at each tick
// (the dashboard's "total across labels" default).
func (e *Engine) History(entity types.Entity, metric string) types.Series {
	return e.history(entity, metric, "", false)
}

// HistoryByLabel returns the series for the single entry whose label
// identity matches. Snapshots with no matching entry are skipped.
func (e *Engine) HistoryByLabel(entity types.Entity, metric, labelIdentity string) types.Series {
	return e.history(entity, metric, labelIdentity, true)
}

func (e *Engine) history(entity types.Entity, metric, labelIdentity string, filtered bool) types.Series {
	e.queries.Add(1)

	// The cache generation is part of the key: a query issued after a
	// write completed must not join a flight that scanned the previous
	// window.
	key := entity.String() + "\x00" + metric
	if filtered {
		key += "\x00" + labelIdentity
	}
	key += "\x00" + strconv.FormatInt(e.cache.Generation(), 10)

	v, _, shared := e.group.Do(key, func() (any, error) {
		return e.extract(entity, metric, labelIdentity, filtered), nil
	})
	series := v.(types.Series)
	if shared {
		e.coalesced.Add(1)
		// Coalesced callers get their own backing array; some of them
		// sort the result in place.
		out := make(types.Series, len(series))
		copy(out, series)
		return out
	}
	return series
}

// extract scans the cached window and reduces each snapshot to at most
// one point. Missing cluster, pod or metric just skips the snapshot;
// a pod may not have reported that metric at that tick.
func (e *Engine) extract(entity types.Entity, metric, labelIdentity string, filtered bool) types.Series {
	snaps := e.cache.Snapshots()

	series := make(types.Series, 0, len(snaps))
	for _, snap := range snaps {
		pods, ok := snap.Payload[entity.Cluster]
		if !ok {
			continue
		}
		metricsByName, ok := pods[entity.Pod]
		if !ok {
			continue
		}
		entries, ok := metricsByName[metric]
		if !ok || len(entries) == 0 {
			continue
		}

		var value float64
		if filtered {
			matched := false
			for _, mv := range entries {
				if mv.LabelIdentity() == labelIdentity {
					value = mv.Value.Coerce()
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		} else {
			for _, mv := range entries {
				value += mv.Value.Coerce()
			}
		}

		series = append(series, types.Point{TimestampMs: snap.TimestampMs, Value: value})
	}

	// Cache order is ascending by construction, but the contract does
	// not assume it survives out-of-order ingestion.
	series.SortAscending()
	return series
}

// Stats holds query counters.
type Stats struct {
	Queries   int64
	Coalesced int64
}

// Stats returns current counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Queries:   e.queries.Load(),
		Coalesced: e.coalesced.Load(),
	}
}
