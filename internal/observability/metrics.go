package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jobfill/jobfill/internal/domain"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, so services can run without instrumentation.
type Metrics struct {
	gatherer prometheus.Gatherer

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsActive  prometheus.Gauge

	// Fill metrics
	FillPassesTotal *prometheus.CounterVec
	FillFieldsTotal *prometheus.CounterVec
	MatchesTotal    *prometheus.CounterVec

	// Learning metrics
	CorrectionsDetected *prometheus.CounterVec
	PatternsLearned     *prometheus.CounterVec

	// Transport metrics
	TransportCallsTotal    *prometheus.CounterVec
	TransportCallDuration  *prometheus.HistogramVec
	CircuitBreakerState    *prometheus.GaugeVec
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec
}

// NewMetrics registers all metrics with reg. A nil reg uses the default
// registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "jobfill"
	}
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: gatherer,

		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_active",
				Help:      "Number of active HTTP requests",
			},
		),

		// Fill metrics
		FillPassesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fill_passes_total",
				Help:      "Total number of fill passes",
			},
			[]string{"site", "status"},
		),
		FillFieldsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fill_fields_total",
				Help:      "Fields considered by fill passes, by outcome",
			},
			[]string{"site", "outcome"}, // outcome: filled, skipped, failed, uncertain
		),
		MatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "label_matches_total",
				Help:      "Label matches by source and confidence",
			},
			[]string{"site", "source", "confidence"},
		),

		// Learning metrics
		CorrectionsDetected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "corrections_detected_total",
				Help:      "User corrections detected on autofilled fields",
			},
			[]string{"site"},
		),
		PatternsLearned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "patterns_learned_total",
				Help:      "Learned label patterns saved",
			},
			[]string{"site"},
		),

		// Transport metrics
		TransportCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transport_calls_total",
				Help:      "Action calls made to the background service",
			},
			[]string{"action", "status"},
		),
		TransportCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transport_call_duration_seconds",
				Help:      "Action call duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"action"},
		),
		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),
		StoreOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Key-value store operations",
			},
			[]string{"backend", "operation", "status"},
		),
		StoreOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Key-value store operation duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"backend", "operation"},
		),
	}
}

// Handler returns the Prometheus HTTP handler for the registry the metrics
// were registered with
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordFillPass records the outcome of one fill pass
func (m *Metrics) RecordFillPass(site domain.Site, status string, results domain.FillResults) {
	if m == nil {
		return
	}
	s := string(site)
	m.FillPassesTotal.WithLabelValues(s, status).Inc()
	m.FillFieldsTotal.WithLabelValues(s, "filled").Add(float64(results.Filled))
	m.FillFieldsTotal.WithLabelValues(s, "skipped").Add(float64(results.Skipped))
	m.FillFieldsTotal.WithLabelValues(s, "failed").Add(float64(results.Failed))
	m.FillFieldsTotal.WithLabelValues(s, "uncertain").Add(float64(results.Uncertain))
}

// RecordMatch records one label match
func (m *Metrics) RecordMatch(site domain.Site, source domain.MatchSource, confidence domain.Confidence) {
	if m == nil {
		return
	}
	m.MatchesTotal.WithLabelValues(string(site), string(source), string(confidence)).Inc()
}

// RecordCorrections records detected corrections and the patterns learned from them
func (m *Metrics) RecordCorrections(site domain.Site, detected, learned int) {
	if m == nil {
		return
	}
	m.CorrectionsDetected.WithLabelValues(string(site)).Add(float64(detected))
	m.PatternsLearned.WithLabelValues(string(site)).Add(float64(learned))
}

// RecordTransportCall records an action call
func (m *Metrics) RecordTransportCall(action domain.Action, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.TransportCallsTotal.WithLabelValues(string(action), status).Inc()
	m.TransportCallDuration.WithLabelValues(string(action)).Observe(duration.Seconds())
}

// RecordCircuitState records a circuit breaker state change
func (m *Metrics) RecordCircuitState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordStoreOperation records a key-value store call
func (m *Metrics) RecordStoreOperation(backend, operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StoreOperationsTotal.WithLabelValues(backend, operation, status).Inc()
	m.StoreOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// HTTPMiddleware returns middleware for recording HTTP metrics
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.HTTPRequestsActive.Inc()
		defer m.HTTPRequestsActive.Dec()

		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		m.RecordHTTPRequest(r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
