package observability

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation.
	HTTPRequestsInFlight prometheus.Gauge

	// Error responses by code and category.
	HTTPErrorsTotal *prometheus.CounterVec

	// Upstream call rate by provider (openweather, openai, nominatim, google) and status.
	UpstreamCallsTotal *prometheus.CounterVec

	// Upstream latency per call. Watch for: p95 > 2s (provider degradation).
	UpstreamDuration *prometheus.HistogramVec

	// Upstream failures by provider and error category.
	UpstreamErrorsTotal *prometheus.CounterVec

	// Cache lookups by kind (weather, forecast, description, heatmap, geocode).
	// Hit rate = hits/(hits+misses).
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Cache backend failures by operation. These degrade to misses.
	CacheErrorsTotal *prometheus.CounterVec

	// Concurrent misses on the same key. Each one is a duplicate upstream fetch
	// unless coalescing is enabled.
	CacheStampedeDetectedTotal *prometheus.CounterVec

	// Callers that shared another caller's in-flight fetch.
	RequestCoalescingHitsTotal *prometheus.CounterVec

	// Expired entries removed by the purge job.
	CachePurgedTotal prometheus.Counter

	// Cache warming runs, duration and failed runs.
	CacheWarmingTotal           prometheus.Counter
	CacheWarmingDurationSeconds prometheus.Histogram
	CacheWarmingErrorsTotal     prometheus.Counter

	// Descriptions served by source (ai, rule_based). A rising rule_based share
	// means the LLM provider is failing or unconfigured.
	DescriptionsTotal *prometheus.CounterVec

	// Heatmap requests per layer type (known types; others use "other").
	HeatmapRequestsTotal *prometheus.CounterVec

	// Circuit breaker state per breaker: 0 closed, 1 half-open, 2 open.
	CircuitBreakerState *prometheus.GaugeVec

	trackedHeatmapTypesMu sync.RWMutex
	trackedHeatmapTypes   map[string]struct{}

	cacheGaugeOnce sync.Once
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
	HTTPErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpErrorsTotal",
			Help: "Total number of HTTP error responses by error code and category",
		},
		[]string{"code", "category"},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of upstream provider calls",
		},
		[]string{"provider", "status"},
	)
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamDurationSeconds",
			Help:    "Upstream provider latency in seconds (per call)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "status"},
	)
	UpstreamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamErrorsTotal",
			Help: "Total number of failed upstream calls by error category",
		},
		[]string{"provider", "category"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of cache hits",
		},
		[]string{"cacheType"},
	)
	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheMissesTotal",
			Help: "Total number of cache misses",
		},
		[]string{"cacheType"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Total number of cache backend errors (treated as misses)",
		},
		[]string{"operation"},
	)
	CacheStampedeDetectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheStampedeDetectedTotal",
			Help: "Concurrent cache misses for the same key",
		},
		[]string{"cacheType"},
	)
	RequestCoalescingHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requestCoalescingHitsTotal",
			Help: "Requests that waited on another request's upstream fetch",
		},
		[]string{"cacheType"},
	)
	CachePurgedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cachePurgedTotal",
			Help: "Expired cache entries removed by the purge job",
		},
	)
	CacheWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingTotal",
			Help: "Total number of cache warming runs",
		},
	)
	CacheWarmingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheWarmingDurationSeconds",
			Help:    "Cache warming run duration in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30},
		},
	)
	CacheWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingErrorsTotal",
			Help: "Cache warming runs with at least one failed fetch",
		},
	)
	DescriptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherDescriptionsTotal",
			Help: "Weather descriptions generated by source (ai, rule_based)",
		},
		[]string{"source"},
	)
	HeatmapRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heatmapRequestsTotal",
			Help: "Heatmap requests by layer type (allow-list; others use type=other)",
		},
		[]string{"type"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open",
		},
		[]string{"name"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight, HTTPErrorsTotal,
		UpstreamCallsTotal, UpstreamDuration, UpstreamErrorsTotal,
		CacheHitsTotal, CacheMissesTotal, CacheErrorsTotal,
		CacheStampedeDetectedTotal, RequestCoalescingHitsTotal, CachePurgedTotal,
		CacheWarmingTotal, CacheWarmingDurationSeconds, CacheWarmingErrorsTotal,
		DescriptionsTotal, HeatmapRequestsTotal, CircuitBreakerState,
	)
}

// RegisterCacheEntriesGauge exposes the in-memory cache size. Call once from
// main after the store is built; later calls are no-ops.
func RegisterCacheEntriesGauge(size func() int) {
	cacheGaugeOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "cacheEntries",
					Help: "Entries held by the in-memory cache, including expired ones not yet purged",
				},
				func() float64 { return float64(size()) },
			),
		)
	})
}

// SetTrackedHeatmapTypes sets the allow-list for heatmap type metrics.
func SetTrackedHeatmapTypes(types []string) {
	trackedHeatmapTypesMu.Lock()
	defer trackedHeatmapTypesMu.Unlock()
	trackedHeatmapTypes = make(map[string]struct{}, len(types))
	for _, t := range types {
		trackedHeatmapTypes[normalizeLabel(t)] = struct{}{}
	}
}

// RecordHeatmapRequest counts a heatmap request. The raw type comes from the
// query string and matches the allow-list exactly, as the generator does;
// anything else collapses to "other".
func RecordHeatmapRequest(typ string) {
	trackedHeatmapTypesMu.RLock()
	_, ok := trackedHeatmapTypes[typ]
	trackedHeatmapTypesMu.RUnlock()
	if ok {
		HeatmapRequestsTotal.WithLabelValues(typ).Inc()
	} else {
		HeatmapRequestsTotal.WithLabelValues("other").Inc()
	}
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
