package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the resolver API.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	CacheHits       *prometheus.CounterVec
	CacheMisses     *prometheus.CounterVec
	OracleFetches   *prometheus.CounterVec
	ExternalFetches *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bnsv2_api_request_duration_seconds",
			Help:    "HTTP request duration by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bnsv2_api_cache_hits_total",
			Help: "Cache hits by concern (height, zonefile, external, record).",
		}, []string{"concern"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bnsv2_api_cache_misses_total",
			Help: "Cache misses by concern.",
		}, []string{"concern"}),
		OracleFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bnsv2_api_oracle_fetches_total",
			Help: "Height oracle fetches by network and outcome.",
		}, []string{"network", "outcome"}),
		ExternalFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bnsv2_api_external_fetches_total",
			Help: "External subdomain file fetches by outcome.",
		}, []string{"outcome"}),
	}
}

// ObserveRequest records one served request against the duration histogram.
func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	m.RequestDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
