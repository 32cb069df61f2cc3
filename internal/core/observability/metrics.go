package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	sourceFetchSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dataset_source_fetch_seconds",
			Help:    "Latency of raw dataset fetches from the configured source.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"source", "outcome"},
	)

	datasetLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_loads_total",
			Help: "Dataset load attempts by outcome.",
		},
		[]string{"dataset", "outcome"},
	)

	datasetFeatures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dataset_features",
			Help: "Number of records exposed by the last successful load.",
		},
		[]string{"dataset"},
	)

	coordOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordinate_corrections_total",
			Help: "Coordinate pairs seen while normalizing, by outcome.",
		},
		[]string{"dataset", "outcome"},
	)

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Cache results by tier and outcome.",
		},
		[]string{"tier", "outcome"},
	)

	cacheOpSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_op_seconds",
			Help:    "Latency of redis operations.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op", "outcome"},
	)

	invalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_invalidations_total",
			Help: "Dataset invalidation events processed.",
		},
		[]string{"op", "outcome"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveSourceFetch(source string, err error, durationSeconds float64) {
	sourceFetchSeconds.WithLabelValues(source, outcome(err)).Observe(durationSeconds)
}

func ObserveDatasetLoad(dataset string, err error, features int) {
	datasetLoads.WithLabelValues(dataset, outcome(err)).Inc()
	if err == nil {
		datasetFeatures.WithLabelValues(dataset).Set(float64(features))
	}
}

func AddCoordOutcomes(dataset string, swapped, unchanged, invalid int) {
	if swapped > 0 {
		coordOutcomes.WithLabelValues(dataset, "swapped").Add(float64(swapped))
	}
	if unchanged > 0 {
		coordOutcomes.WithLabelValues(dataset, "unchanged").Add(float64(unchanged))
	}
	if invalid > 0 {
		coordOutcomes.WithLabelValues(dataset, "invalid").Add(float64(invalid))
	}
}

func IncCacheHit(tier string) {
	cacheResults.WithLabelValues(tier, "hit").Inc()
}

func IncCacheMiss(tier string) {
	cacheResults.WithLabelValues(tier, "miss").Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	cacheOpSeconds.WithLabelValues(op, outcome(err)).Observe(durationSeconds)
}

func IncInvalidation(op string, err error) {
	invalidations.WithLabelValues(op, outcome(err)).Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
