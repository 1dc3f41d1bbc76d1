package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the request pipeline.
// Pass the same instance to the client and to whatever serves /metrics.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	TokenRefreshes  *prometheus.CounterVec
	RefreshWaiters  prometheus.Gauge
	CacheLookups    *prometheus.CounterVec
}

// NewMetrics creates and registers all pipeline metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "masjidctl",
				Name:      "api_requests_total",
				Help:      "Total number of API requests sent",
			},
			[]string{"method", "status"}, // status=ok/error
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "masjidctl",
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		TokenRefreshes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "masjidctl",
				Name:      "token_refreshes_total",
				Help:      "Total token refresh round-trips",
			},
			[]string{"result"}, // result=ok/error
		),
		RefreshWaiters: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "masjidctl",
				Name:      "refresh_waiters",
				Help:      "Requests currently parked waiting on a token refresh",
			},
		),
		CacheLookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "masjidctl",
				Name:      "response_cache_lookups_total",
				Help:      "Response cache lookups",
			},
			[]string{"result"}, // result=hit/miss
		),
	}
}
