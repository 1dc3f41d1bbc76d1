package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the dashboard's Prometheus collectors.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates dashboard metrics registered with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "masjidctl",
			Subsystem: "dashboard",
			Name:      "requests_total",
			Help:      "Dashboard requests by method and outcome.",
		}, []string{"method", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "masjidctl",
			Subsystem: "dashboard",
			Name:      "request_duration_seconds",
			Help:      "Dashboard request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}
