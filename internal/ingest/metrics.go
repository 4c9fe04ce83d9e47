package ingest

import (
	"github.com/rcrowley/go-metrics"
)

// Metric names registered by the engine.
const (
	MetricIndexed        = "documents.indexed"
	MetricRejected       = "documents.rejected"
	MetricResolve        = "documents.resolve"
	MetricMerges         = "mapping.merges"
	MetricMergeConflicts = "mapping.merge_conflicts"
	MetricNoopMerges     = "mapping.noop_merges"
)

type engineStats struct {
	indexed        metrics.Counter
	rejected       metrics.Counter
	merges         metrics.Counter
	mergeConflicts metrics.Counter
	noopMerges     metrics.Counter
	resolve        metrics.Timer
}

func newEngineStats(r metrics.Registry) *engineStats {
	return &engineStats{
		indexed:        metrics.GetOrRegisterCounter(MetricIndexed, r),
		rejected:       metrics.GetOrRegisterCounter(MetricRejected, r),
		merges:         metrics.GetOrRegisterCounter(MetricMerges, r),
		mergeConflicts: metrics.GetOrRegisterCounter(MetricMergeConflicts, r),
		noopMerges:     metrics.GetOrRegisterCounter(MetricNoopMerges, r),
		resolve:        metrics.GetOrRegisterTimer(MetricResolve, r),
	}
}

// Counts returns a snapshot of the engine counters keyed by metric name.
func (e *Engine) Counts() map[string]int64 {
	return map[string]int64{
		MetricIndexed:        e.stats.indexed.Count(),
		MetricRejected:       e.stats.rejected.Count(),
		MetricMerges:         e.stats.merges.Count(),
		MetricMergeConflicts: e.stats.mergeConflicts.Count(),
		MetricNoopMerges:     e.stats.noopMerges.Count(),
		MetricResolve:        e.stats.resolve.Count(),
	}
}
