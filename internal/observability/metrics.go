package observability

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/flight-risk-service/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per route template.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation.
	HTTPRequestsInFlight prometheus.Gauge

	// Forecast provider call rate by outcome status.
	WeatherAPICallsTotal *prometheus.CounterVec

	// Forecast provider latency. Watch for: p99 approaching the client timeout.
	WeatherAPIDuration *prometheus.HistogramVec

	// Weather lookups that fell back to unavailable, by reason (no_coordinates, timeout, upstream_5xx, ...).
	WeatherUnavailableTotal *prometheus.CounterVec

	// Weather lookups per airport code (allow-list; others go to "other").
	WeatherLookupsByAirportTotal *prometheus.CounterVec

	// Delay-risk answers by level. Watch for: HIGH share during storms.
	RiskAssessmentsTotal *prometheus.CounterVec

	// Route searches by outcome (match / empty / invalid).
	FlightSearchesTotal *prometheus.CounterVec

	// Airport reference cache lookups by result (hit / miss / error).
	AirportCacheLookupsTotal *prometheus.CounterVec

	// Cache warming runs and failures.
	CacheWarmingTotal           prometheus.Counter
	CacheWarmingErrorsTotal     prometheus.Counter
	CacheWarmingDurationSeconds prometheus.Histogram

	// Rate limit denials. Watch for: overload.
	RateLimitDeniedTotal prometheus.Counter

	// Circuit breaker state per component (0 closed, 1 open, 2 half-open) and transitions.
	CircuitBreakerState       *prometheus.GaugeVec
	CircuitBreakerTransitions *prometheus.CounterVec

	// In-flight requests observed when shutdown began.
	ShutdownInFlightRequests prometheus.Gauge

	trackedAirportsMu sync.RWMutex
	trackedAirports   map[string]struct{}

	trafficGaugesOnce sync.Once
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
	WeatherAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiCallsTotal",
			Help: "Total number of forecast provider calls",
		},
		[]string{"status"},
	)
	WeatherAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherApiDurationSeconds",
			Help:    "Forecast provider latency in seconds (per request)",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"status"},
	)
	WeatherUnavailableTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherUnavailableTotal",
			Help: "Weather lookups answered as unavailable, by reason",
		},
		[]string{"reason"},
	)
	WeatherLookupsByAirportTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherLookupsByAirportTotal",
			Help: "Weather lookups by airport code (allow-list; others use airport=other)",
		},
		[]string{"airport"},
	)
	RiskAssessmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskAssessmentsTotal",
			Help: "Delay-risk assessments by resulting level",
		},
		[]string{"level"},
	)
	FlightSearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flightSearchesTotal",
			Help: "Flight route searches by outcome",
		},
		[]string{"outcome"},
	)
	AirportCacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airportCacheLookupsTotal",
			Help: "Airport reference cache lookups by result",
		},
		[]string{"result"},
	)
	CacheWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingTotal",
			Help: "Total number of airport cache warming runs",
		},
	)
	CacheWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingErrorsTotal",
			Help: "Airport cache warming runs that had at least one failure",
		},
	)
	CacheWarmingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheWarmingDurationSeconds",
			Help:    "Airport cache warming duration in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 5},
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"component"},
	)
	CircuitBreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)
	ShutdownInFlightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shutdownInFlightRequests",
			Help: "In-flight requests when graceful shutdown started",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		WeatherAPICallsTotal, WeatherAPIDuration, WeatherUnavailableTotal, WeatherLookupsByAirportTotal,
		RiskAssessmentsTotal, FlightSearchesTotal,
		AirportCacheLookupsTotal, CacheWarmingTotal, CacheWarmingErrorsTotal, CacheWarmingDurationSeconds,
		RateLimitDeniedTotal,
		CircuitBreakerState, CircuitBreakerTransitions,
		ShutdownInFlightRequests,
	)
}

// RegisterTrafficGauges registers sliding-window gauges backed by the traffic tracker.
// Call once from main with the overload window.
func RegisterTrafficGauges(window time.Duration) {
	trafficGaugesOnce.Do(func() {
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
					Name: "weatherUnavailableInWindow",
					Help: "Weather lookups answered unavailable in sliding window",
				},
				func() float64 {
					unavailable, _ := traffic.UnavailableRate(window)
					return float64(unavailable)
				},
			),
		)
	})
}

// RecordCircuitBreakerTransition counts a transition and updates the state gauge.
func RecordCircuitBreakerTransition(component, from, to string, toValue int) {
	CircuitBreakerTransitions.WithLabelValues(component, from, to).Inc()
	CircuitBreakerState.WithLabelValues(component).Set(float64(toValue))
}

// RecordShutdownInFlight records how many requests were in flight when shutdown began.
func RecordShutdownInFlight(n int64) {
	ShutdownInFlightRequests.Set(float64(n))
}

// SetTrackedAirports sets the allow-list for per-airport metrics.
func SetTrackedAirports(codes []string) {
	trackedAirportsMu.Lock()
	defer trackedAirportsMu.Unlock()
	trackedAirports = make(map[string]struct{}, len(codes))
	for _, c := range codes {
		trackedAirports[normalizeCode(c)] = struct{}{}
	}
}

// AirportLabel returns code when it is tracked, otherwise "other". Bounds label cardinality.
func AirportLabel(code string) string {
	c := normalizeCode(code)
	trackedAirportsMu.RLock()
	_, ok := trackedAirports[c] // nil map read is safe
	trackedAirportsMu.RUnlock()
	if ok {
		return c
	}
	return "other"
}

// RecordWeatherLookup counts a weather lookup for an airport.
func RecordWeatherLookup(code string) {
	WeatherLookupsByAirportTotal.WithLabelValues(AirportLabel(code)).Inc()
}

func normalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// MetricsHandler serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
