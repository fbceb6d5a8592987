package request

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are keyed by route pattern, never the raw path, so account ids
// do not become label values.
type Metrics struct {
	EndpointLatency *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EndpointLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name: "voxid_endpoint_latency_seconds",
			Help: "Latency of endpoints in seconds",
			// Intake streams uploads and may call the classifier, hence the long tail.
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "voxid_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status code",
		}, []string{"endpoint", "code"}),
	}
}

func (m *Metrics) ObserveEndpointLatency(endpoint string, durationSeconds float64) {
	m.EndpointLatency.WithLabelValues(endpoint).Observe(durationSeconds)
}

func (m *Metrics) RecordRequest(endpoint string, status int) {
	m.RequestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}
