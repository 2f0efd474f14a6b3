// Package metrics provides Prometheus metrics for the conversion engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector of this package.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// ConversionDuration measures one conversion request.
	ConversionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kanakanji",
			Name:      "conversion_duration_seconds",
			Help:      "Duration of conversion requests in seconds",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"mode"},
	)

	// CandidatesReturned observes result sizes.
	CandidatesReturned = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "kanakanji",
			Name:      "candidates_returned",
			Help:      "Distribution of candidate list sizes",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	// RerankerCalls counts external scorer calls.
	RerankerCalls = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kanakanji",
			Name:      "reranker_calls_total",
			Help:      "Total number of neural scorer calls",
		},
	)

	// RerankerOutcomes counts finished rerank passes by how they ended.
	RerankerOutcomes = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kanakanji",
			Name:      "reranker_outcomes_total",
			Help:      "Total number of rerank passes by outcome",
		},
		[]string{"outcome"},
	)

	// ShardLoads counts decoded dictionary shards.
	ShardLoads = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kanakanji",
			Name:      "dictionary_shard_loads_total",
			Help:      "Total number of decoded dictionary shards",
		},
		[]string{"mode"},
	)
)

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
}

// Outcome labels.
const (
	OutcomeBudget    = "budget"
	OutcomeConverged = "converged"
	OutcomeStable    = "stable"
	OutcomeCanceled  = "canceled"
	OutcomeDegraded  = "degraded"
)

// RecordConversion records a finished conversion.
func RecordConversion(mode string, seconds float64, candidates int) {
	ConversionDuration.WithLabelValues(mode).Observe(seconds)
	CandidatesReturned.Observe(float64(candidates))
}

// RecordRerank records a rerank pass.
func RecordRerank(outcome string, calls int) {
	RerankerCalls.Add(float64(calls))
	RerankerOutcomes.WithLabelValues(outcome).Inc()
}

// RecordShardLoad records one decoded shard; mode is "preload" or "lazy".
func RecordShardLoad(mode string) {
	ShardLoads.WithLabelValues(mode).Inc()
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
