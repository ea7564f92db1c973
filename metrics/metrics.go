// Package metrics exposes process-level Prometheus collectors for the
// sorter. Registration is eager and global-only (no per-sort label
// cardinality); if the embedding process never serves a metrics endpoint
// the counters are harmless.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// RunsCreated counts initial runs materialized during phase 1.
	RunsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "extmerge_runs_created_total",
		Help: "Total sorted initial runs written to temporary storage",
	})

	// MergePasses counts merge passes over the run list, each counted as
	// it begins.
	MergePasses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "extmerge_merge_passes_total",
		Help: "Total k-way merge passes performed",
	})

	// RecordsWritten counts records emitted to any output stream by the
	// sorter, including intermediate runs.
	RecordsWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "extmerge_records_written_total",
		Help: "Total records written across runs and final outputs",
	})

	// BytesWritten counts encoded bytes emitted to finalized outputs.
	BytesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "extmerge_bytes_written_total",
		Help: "Total encoded bytes written across runs and final outputs",
	})

	// SortDuration observes wall-clock duration of complete Sort calls.
	SortDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "extmerge_sort_duration_seconds",
		Help:    "Duration of complete external sort operations",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 12),
	})
)

func init() {
	prometheus.MustRegister(RunsCreated, MergePasses, RecordsWritten, BytesWritten, SortDuration)
}
