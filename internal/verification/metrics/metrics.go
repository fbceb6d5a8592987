// Package metrics provides Prometheus metrics for the verification intake and query paths.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Intake outcome labels.
const (
	OutcomeVerified = "verified"
	OutcomeError    = "error"
)

type Metrics struct {
	// Intake outcomes by result (verified or a rejection reason)
	IntakesTotal *prometheus.CounterVec

	// Extraction latency and failures by evidence kind
	ExtractionDurationSeconds *prometheus.HistogramVec
	ExtractionFailuresTotal   *prometheus.CounterVec

	// Fingerprint collisions by evidence kind
	FingerprintCollisionsTotal *prometheus.CounterVec

	// Verification scores of persisted records
	ScoreDistribution prometheus.Histogram

	// Number of records currently in the index
	VerifiedRecords prometheus.Gauge

	// Classifier circuit breaker state (1 = open)
	ClassifierCircuitOpen prometheus.Gauge

	// Datasets assembled
	DatasetsCreatedTotal prometheus.Counter

	// Audit events that were never persisted, by action
	AuditEventsDroppedTotal *prometheus.CounterVec
}

// New registers the verification metrics on reg. Pass prometheus.DefaultRegisterer in main.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		IntakesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voxid_verification_intakes_total",
			Help: "Total number of verification intakes by outcome",
		}, []string{"outcome"}),

		ExtractionDurationSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voxid_verification_extraction_duration_seconds",
			Help:    "Duration of attribute extraction by evidence kind",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"kind"}),

		ExtractionFailuresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voxid_verification_extraction_failures_total",
			Help: "Total number of failed extractions by evidence kind",
		}, []string{"kind"}),

		FingerprintCollisionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voxid_verification_fingerprint_collisions_total",
			Help: "Total number of intakes rejected for reused evidence by evidence kind",
		}, []string{"kind"}),

		ScoreDistribution: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxid_verification_score",
			Help:    "Verification score of persisted records",
			Buckets: []float64{40, 50, 60, 70, 80, 90, 100},
		}),

		VerifiedRecords: f.NewGauge(prometheus.GaugeOpts{
			Name: "voxid_verification_records",
			Help: "Current number of verification records",
		}),

		ClassifierCircuitOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "voxid_verification_classifier_circuit_open",
			Help: "Whether the classifier circuit breaker is open (1) or closed (0)",
		}),

		DatasetsCreatedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "voxid_verification_datasets_created_total",
			Help: "Total number of datasets assembled",
		}),

		AuditEventsDroppedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voxid_audit_events_dropped_total",
			Help: "Total number of audit events dropped before persistence by action",
		}, []string{"action"}),
	}
}

func (m *Metrics) RecordIntake(outcome string) {
	m.IntakesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveExtraction(kind string, durationSeconds float64) {
	m.ExtractionDurationSeconds.WithLabelValues(kind).Observe(durationSeconds)
}

func (m *Metrics) RecordExtractionFailure(kind string) {
	m.ExtractionFailuresTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordFingerprintCollision(kind string) {
	m.FingerprintCollisionsTotal.WithLabelValues(kind).Inc()
}

// RecordPersisted tracks a newly persisted record.
func (m *Metrics) RecordPersisted(score int) {
	m.ScoreDistribution.Observe(float64(score))
	m.VerifiedRecords.Inc()
}

func (m *Metrics) SetRecords(n int) {
	m.VerifiedRecords.Set(float64(n))
}

func (m *Metrics) SetClassifierCircuitOpen(open bool) {
	if open {
		m.ClassifierCircuitOpen.Set(1)
		return
	}
	m.ClassifierCircuitOpen.Set(0)
}

func (m *Metrics) RecordDatasetCreated() {
	m.DatasetsCreatedTotal.Inc()
}

func (m *Metrics) RecordAuditDropped(action string) {
	m.AuditEventsDroppedTotal.WithLabelValues(action).Inc()
}
