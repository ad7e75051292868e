package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/station-collector/internal/traffic"
)

var (
	registry *prometheus.Registry

	// Query API request rate by route template.
	HTTPRequestsTotal *prometheus.CounterVec

	// Query API latency per request.
	HTTPRequestDuration *prometheus.HistogramVec

	// Query API requests currently being served.
	HTTPRequestsInFlight prometheus.Gauge

	// Provider GETs by endpoint (metadata|observation) and status class.
	// Watch for: client_error on metadata (bad station id), server_error bursts.
	ProviderRequestsTotal *prometheus.CounterVec

	// Provider latency per request. Slow stations delay the whole pass.
	ProviderRequestDuration *prometheus.HistogramVec

	// Provider failures by endpoint and error category.
	ProviderErrorsTotal *prometheus.CounterVec

	// Steady-state poll outcomes per station visit:
	// stored, duplicate, fetch_error, store_error.
	ObservationPollsTotal *prometheus.CounterVec

	// Station metadata upserts by result (ok|error|skipped).
	StationUpsertsTotal *prometheus.CounterVec

	// Duration of a full pass over all stations. Compare with the configured interval.
	PollPassDuration prometheus.Histogram

	// Completed polling passes.
	PollPassesTotal prometheus.Counter

	// Stations in the configured list.
	StationsConfigured prometheus.Gauge

	// Unix time of the last successful observation fetch per station.
	// The label set is bounded by the configured station list.
	StationLastObservationTime *prometheus.GaugeVec

	// Latest-observation cache hits by cache type.
	CacheHitsTotal *prometheus.CounterVec

	// Cache failures by operation (get|set). Cache failures never fail a poll.
	CacheErrorsTotal *prometheus.CounterVec

	// Observation publishes by backend and result.
	PublishTotal *prometheus.CounterVec

	// Rate limit denials on the query API.
	RateLimitDeniedTotal prometheus.Counter

	rateLimitGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "providerRequestsTotal",
			Help: "Total number of station provider requests",
		},
		[]string{"endpoint", "status"},
	)
	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "providerRequestDurationSeconds",
			Help:    "Station provider latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint", "status"},
	)
	ProviderErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "providerErrorsTotal",
			Help: "Station provider failures by error category",
		},
		[]string{"endpoint", "category"},
	)
	ObservationPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observationPollsTotal",
			Help: "Station observation polls by outcome",
		},
		[]string{"outcome"},
	)
	StationUpsertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stationUpsertsTotal",
			Help: "Station metadata upserts by result",
		},
		[]string{"result"},
	)
	PollPassDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pollPassDurationSeconds",
			Help:    "Duration of one polling pass over all stations",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)
	PollPassesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pollPassesTotal",
			Help: "Total number of completed polling passes",
		},
	)
	StationsConfigured = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stationsConfigured",
			Help: "Number of configured stations",
		},
	)
	StationLastObservationTime = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stationLastObservationTimestampSeconds",
			Help: "Unix time of the last successful observation fetch per station",
		},
		[]string{"station"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of latest-observation cache hits",
		},
		[]string{"cacheType"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Latest-observation cache failures by operation",
		},
		[]string{"operation"},
	)
	PublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observationPublishTotal",
			Help: "Observation publishes by backend and result",
		},
		[]string{"backend", "result"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		ProviderRequestsTotal, ProviderRequestDuration, ProviderErrorsTotal,
		ObservationPollsTotal, StationUpsertsTotal,
		PollPassDuration, PollPassesTotal, StationsConfigured, StationLastObservationTime,
		CacheHitsTotal, CacheErrorsTotal,
		PublishTotal,
		RateLimitDeniedTotal,
	)
}

// RegisterWindowGauges registers gauges over the traffic sliding windows.
// Call once from main after config load.
func RegisterWindowGauges(window time.Duration) {
	rateLimitGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in sliding window",
				},
				func() float64 { return float64(traffic.DenialCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "pollErrorsInWindow",
					Help: "Failed station polls in sliding window",
				},
				func() float64 {
					errs, _ := traffic.PollErrorRate(window)
					return float64(errs)
				},
			),
		)
	})
}

// RecordPollOutcome counts one steady-state station visit.
func RecordPollOutcome(outcome string) {
	ObservationPollsTotal.WithLabelValues(outcome).Inc()
}

// MarkStationObserved records a successful observation fetch for station.
func MarkStationObserved(station string, at time.Time) {
	StationLastObservationTime.WithLabelValues(station).Set(float64(at.Unix()))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
