package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	SyncRuns          *prometheus.CounterVec
	SyncFailures      *prometheus.CounterVec
	ItemsInserted     *prometheus.CounterVec
	DuplicatesSkipped *prometheus.CounterVec
	LLMCalls          prometheus.Counter
	LLMParseFallbacks prometheus.Counter
	SummariesWritten  prometheus.Counter
	ChecklistAdded    prometheus.Counter
	ChecklistRemoved  prometheus.Counter
	PDFDownloads      prometheus.Counter
	PDFFailures       prometheus.Counter
	SyncDuration      prometheus.Histogram
}

// NewMetrics creates new Prometheus metrics registered on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SyncRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolcomms_sync_runs_total",
			Help: "Total number of sync passes started, per source",
		}, []string{"source"}),
		SyncFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolcomms_sync_failures_total",
			Help: "Total number of failed sync passes, per source",
		}, []string{"source"}),
		ItemsInserted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolcomms_items_inserted_total",
			Help: "Total number of new communication items stored, per source",
		}, []string{"source"}),
		DuplicatesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "schoolcomms_duplicates_skipped_total",
			Help: "Total number of already-known items skipped by the dedup writer, per source",
		}, []string{"source"}),
		LLMCalls: factory.NewCounter(prometheus.CounterOpts{
			Name: "schoolcomms_llm_calls_total",
			Help: "Total number of completion requests sent to the model",
		}),
		LLMParseFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "schoolcomms_llm_parse_fallbacks_total",
			Help: "Total number of model responses that needed a non-strict parse",
		}),
		SummariesWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "schoolcomms_summaries_written_total",
			Help: "Total number of daily summaries generated or regenerated",
		}),
		ChecklistAdded: factory.NewCounter(prometheus.CounterOpts{
			Name: "schoolcomms_checklist_added_total",
			Help: "Total number of checklist items inserted by reconciliation",
		}),
		ChecklistRemoved: factory.NewCounter(prometheus.CounterOpts{
			Name: "schoolcomms_checklist_removed_total",
			Help: "Total number of unchecked checklist items removed by reconciliation",
		}),
		PDFDownloads: factory.NewCounter(prometheus.CounterOpts{
			Name: "schoolcomms_pdf_downloads_total",
			Help: "Total number of PDF attachments downloaded and extracted",
		}),
		PDFFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "schoolcomms_pdf_failures_total",
			Help: "Total number of PDF attachments skipped or failed",
		}),
		SyncDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "schoolcomms_sync_duration_seconds",
			Help:    "Time spent per sync pass",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
