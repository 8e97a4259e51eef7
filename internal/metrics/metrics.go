package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync Metrics
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "label_sync_runs_total",
			Help: "Total number of sync runs by final state and error kind",
		},
		[]string{"state", "kind"},
	)

	SyncRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "label_sync_run_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	SyncRecordsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "label_sync_records_written_total",
			Help: "Total number of label records upserted",
		},
	)

	SyncFailedBatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "label_sync_failed_batches_total",
			Help: "Total number of upsert batches that failed",
		},
	)

	SyncRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "label_sync_rejected_total",
			Help: "Sync triggers rejected because a run was already active",
		},
	)

	// Lookup Metrics
	LabelLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "label_lookups_total",
			Help: "Label lookups by outcome (found, empty, error)",
		},
		[]string{"outcome"},
	)

	LabelPDFsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "label_pdfs_rendered_total",
			Help: "Label PDFs rendered by format",
		},
		[]string{"format"},
	)

	// WebSocket Metrics
	WSSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "label_sync_ws_subscribers",
			Help: "Current number of websocket sync log subscribers",
		},
	)
)

// RecordSyncRun records the outcome of one run
func RecordSyncRun(state, kind string, started, finished time.Time, written, failedBatches int) {
	SyncRunsTotal.WithLabelValues(state, kind).Inc()
	if !started.IsZero() && !finished.IsZero() {
		SyncRunDuration.Observe(finished.Sub(started).Seconds())
	}
	SyncRecordsWritten.Add(float64(written))
	SyncFailedBatches.Add(float64(failedBatches))
}

// RecordLookup records a lookup outcome
func RecordLookup(found int, err error) {
	switch {
	case err != nil:
		LabelLookupsTotal.WithLabelValues("error").Inc()
	case found == 0:
		LabelLookupsTotal.WithLabelValues("empty").Inc()
	default:
		LabelLookupsTotal.WithLabelValues("found").Inc()
	}
}
