// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "findata",
		Subsystem: "ingest",
		Name:      "sessions_started_total",
		Help:      "Ingestion sessions accepted.",
	})

	RowsSaved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "findata",
		Subsystem: "ingest",
		Name:      "rows_saved_total",
		Help:      "New time-series versions committed for previously uncovered dates.",
	})

	RowsUpdated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "findata",
		Subsystem: "ingest",
		Name:      "rows_updated_total",
		Help:      "Time-series versions that superseded existing coverage.",
	})

	RowsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "findata",
		Subsystem: "ingest",
		Name:      "rows_skipped_total",
		Help:      "Fetched rows skipped because their date was already covered.",
	})

	RowsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "findata",
		Subsystem: "ingest",
		Name:      "rows_failed_total",
		Help:      "Fetched rows that failed to process or commit.",
	})

	BatchFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "findata",
		Subsystem: "store",
		Name:      "batch_fallbacks_total",
		Help:      "Grouped writes that fell back to per-row application.",
	})
)
