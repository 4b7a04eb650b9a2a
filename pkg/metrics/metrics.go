// Package metrics exposes Prometheus counters for the query pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_queries_total",
			Help: "Total number of natural-language queries by outcome.",
		},
		[]string{"outcome"},
	)

	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_cache_lookups_total",
			Help: "Total number of SQL cache lookups by layer and result.",
		},
		[]string{"layer", "result"},
	)

	validationResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_validation_results_total",
			Help: "Total number of SQL validation verdicts.",
		},
		[]string{"verdict"},
	)

	securityViolationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askdb_security_violations_total",
			Help: "Total number of SQL injection signatures detected.",
		},
	)

	generationRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askdb_generation_retries_total",
			Help: "Total number of SQL regeneration attempts after validation feedback.",
		},
	)

	queryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_query_duration_seconds",
			Help:    "End-to-end latency of the ask pipeline.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		queriesTotal,
		cacheLookupsTotal,
		validationResultsTotal,
		securityViolationsTotal,
		generationRetriesTotal,
		queryDurationSeconds,
	)
}

// ObserveQuery records one completed pipeline run.
// Outcomes: "ok", "rejected", "blocked", "error".
func ObserveQuery(outcome string, elapsed time.Duration) {
	queriesTotal.WithLabelValues(outcome).Inc()
	queryDurationSeconds.Observe(elapsed.Seconds())
}

// ObserveCacheLookup records a cache probe.
// Layers: "pattern", "semantic". Results: "hit", "miss".
func ObserveCacheLookup(layer string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(layer, result).Inc()
}

// ObserveValidation records a validation verdict: "valid" or "invalid".
func ObserveValidation(valid bool) {
	verdict := "invalid"
	if valid {
		verdict = "valid"
	}
	validationResultsTotal.WithLabelValues(verdict).Inc()
}

// IncrementSecurityViolation records an injection signature match.
func IncrementSecurityViolation() {
	securityViolationsTotal.Inc()
}

// IncrementGenerationRetry records one regeneration attempt.
func IncrementGenerationRetry() {
	generationRetriesTotal.Inc()
}
