package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "connection_cache_hits_total",
			Help: "Connection requests served from the cache",
		},
	)

	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "connection_cache_misses_total",
			Help: "Connection requests that required a directory lookup",
		},
	)

	CacheEvictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connection_cache_evictions_total",
			Help: "Cache entries removed, by reason",
		},
		[]string{"reason"},
	)

	CachedConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "connection_cache_entries",
			Help: "Connection handles currently cached",
		},
	)

	DirectoryLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_directory_lookups_total",
			Help: "Directory lookups by outcome",
		},
		[]string{"outcome"},
	)

	TenantsProvisioned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tenants_provisioned_total",
			Help: "Tenants successfully provisioned",
		},
	)
)

// Init registers metrics with Prometheus
func Init() {
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(CacheEvictions)
	prometheus.MustRegister(CachedConnections)
	prometheus.MustRegister(DirectoryLookups)
	prometheus.MustRegister(TenantsProvisioned)
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
