package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for superpm-mcp.
// Pass to components that need to record metrics.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	StreamsActive   prometheus.Gauge
	AuditDropsTotal prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "superpm",
				Name:      "requests_total",
				Help:      "Total number of MCP requests processed",
			},
			[]string{"method", "status"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "superpm",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		StreamsActive: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "superpm",
				Name:      "streams_active",
				Help:      "Number of attached SSE push streams",
			},
		),
		AuditDropsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "superpm",
				Name:      "audit_drops_total",
				Help:      "Total audit records dropped due to backpressure",
			},
		),
	}
}

// RegisterSessionGauge exposes the active session count as a gauge whose
// value is read from count at scrape time, so expiry-based eviction is
// reflected without explicit decrements.
func RegisterSessionGauge(reg prometheus.Registerer, count func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "superpm",
			Name:      "active_sessions",
			Help:      "Number of active sessions",
		},
		func() float64 { return float64(count()) },
	))
}
