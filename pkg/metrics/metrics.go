// Package metrics exposes Prometheus instrumentation for the ingestion and
// forecasting pipeline. The counters mirror the run statistics the job-stats
// workbook records per batch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all pipeline collectors.
type Metrics struct {
	MessagesProcessed prometheus.Counter
	MessagesFailed    prometheus.Counter
	CandidatesTotal   prometheus.Counter
	Discards          *prometheus.CounterVec
	Dispositions      *prometheus.CounterVec
	CapabilityRetries prometheus.Counter
	DegradedMode      prometheus.Counter
	ForecastRuns      *prometheus.CounterVec
	StageDuration     *prometheus.HistogramVec
}

// New creates and registers the pipeline collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mailspend",
			Name:      "messages_processed_total",
			Help:      "Messages that completed the per-message pipeline.",
		}),
		MessagesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mailspend",
			Name:      "messages_failed_total",
			Help:      "Messages whose processing ended in an error.",
		}),
		CandidatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mailspend",
			Name:      "candidates_total",
			Help:      "Candidate transactions produced by the extractor.",
		}),
		Discards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mailspend",
			Name:      "discards_total",
			Help:      "Candidates discarded before reconciliation.",
		}, []string{"reason"}),
		Dispositions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mailspend",
			Name:      "ledger_dispositions_total",
			Help:      "Reconciler outcomes per candidate.",
		}, []string{"disposition"}),
		CapabilityRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mailspend",
			Name:      "capability_retries_total",
			Help:      "Retries against the semantic classification capability.",
		}),
		DegradedMode: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mailspend",
			Name:      "degraded_mode_total",
			Help:      "Classifications that fell back to uncategorized.",
		}),
		ForecastRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mailspend",
			Name:      "forecast_runs_total",
			Help:      "Forecast engine runs per outcome.",
		}, []string{"outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mailspend",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}

	reg.MustRegister(
		m.MessagesProcessed,
		m.MessagesFailed,
		m.CandidatesTotal,
		m.Discards,
		m.Dispositions,
		m.CapabilityRetries,
		m.DegradedMode,
		m.ForecastRuns,
		m.StageDuration,
	)
	return m
}

// NewUnregistered creates collectors without registration, for tests.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
