package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bft-labs/seqharness/internal/domain"
)

// HarnessMetrics holds all Prometheus metrics for test runs.
type HarnessMetrics struct {
	registry *prometheus.Registry

	// Case counters
	CasesTotal       *prometheus.CounterVec
	ErroredByStage   *prometheus.CounterVec
	StageTransitions *prometheus.CounterVec

	// Histograms
	CaseDuration prometheus.Histogram

	// Last run gauges
	LastRunCases     *prometheus.GaugeVec
	LastRunTimestamp prometheus.Gauge
}

// NewHarnessMetrics creates and registers all metrics on reg, or on a fresh
// registry when reg is nil.
func NewHarnessMetrics(reg *prometheus.Registry) *HarnessMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	factory := promauto.With(reg)

	return &HarnessMetrics{
		registry: reg,

		CasesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seqharness_cases_total",
				Help: "Test cases run by status",
			},
			[]string{"status"},
		),

		ErroredByStage: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seqharness_case_errors_total",
				Help: "Errored test cases by the stage that failed",
			},
			[]string{"stage"},
		),

		StageTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seqharness_stage_transitions_total",
				Help: "Orchestrator stage transitions by target stage",
			},
			[]string{"stage"},
		),

		CaseDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "seqharness_case_duration_seconds",
				Help:    "Wall time of one test case",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		),

		LastRunCases: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "seqharness_last_run_cases",
				Help: "Case count of the most recent run by status",
			},
			[]string{"status"},
		),

		LastRunTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "seqharness_last_run_timestamp_seconds",
				Help: "Unix time the most recent run finished",
			},
		),
	}
}

// Registry returns the registry the metrics live on.
func (m *HarnessMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// OnStageChange counts a stage transition.
func (m *HarnessMetrics) OnStageChange(caseName string, previous, current domain.Stage, reason string) {
	m.StageTransitions.WithLabelValues(current.String()).Inc()
}

// ObserveOutcome records a finished case.
func (m *HarnessMetrics) ObserveOutcome(o domain.Outcome) {
	m.CasesTotal.WithLabelValues(o.Status.String()).Inc()
	m.CaseDuration.Observe(o.Duration.Seconds())
	if o.Status == domain.StatusErrored {
		m.ErroredByStage.WithLabelValues(o.Stage.String()).Inc()
	}
}

// ObserveRun records the summary of a finished run.
func (m *HarnessMetrics) ObserveRun(r domain.Report) {
	m.LastRunCases.WithLabelValues(domain.StatusPassed.String()).Set(float64(r.Summary.Passed))
	m.LastRunCases.WithLabelValues(domain.StatusFailed.String()).Set(float64(r.Summary.Failed))
	m.LastRunCases.WithLabelValues(domain.StatusErrored.String()).Set(float64(r.Summary.Errored))
	m.LastRunTimestamp.Set(float64(r.Finished.Unix()))
}

// WriteTextfile writes all metrics in text exposition format to path, for a
// node exporter textfile collector.
func (m *HarnessMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
