// Package telemetry exposes Prometheus metrics for the acquisition pipeline.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_fetches_total",
			Help: "Total number of dispatched fetches, labeled by domain and outcome.",
		},
		[]string{"domain", "outcome"},
	)

	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_cache_lookups_total",
			Help: "Total cache-aside lookups, labeled by origin (cache, web, error).",
		},
		[]string{"origin"},
	)

	ingestOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_ingest_outcomes_total",
			Help: "Total ingested candidates, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	rateLimitDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harvester_rate_limit_delay_seconds",
			Help:    "Histogram of per-domain rate limit wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)
)

// ObserveFetch records a dispatched fetch and its outcome.
func ObserveFetch(domain, outcome string) {
	fetchesTotal.WithLabelValues(domain, outcome).Inc()
}

// ObserveCacheLookup records a cache-aside lookup by origin.
func ObserveCacheLookup(origin string) {
	cacheLookupsTotal.WithLabelValues(origin).Inc()
}

// ObserveIngestOutcome records the classification of one ingested candidate.
func ObserveIngestOutcome(outcome string) {
	ingestOutcomesTotal.WithLabelValues(outcome).Inc()
}

// ObserveRateLimitDelay records how long a fetch waited on the domain limiter.
func ObserveRateLimitDelay(domain string, d time.Duration) {
	rateLimitDelaySeconds.WithLabelValues(domain).Observe(d.Seconds())
}

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
