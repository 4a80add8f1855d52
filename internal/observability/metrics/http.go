package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queryClassifiedTotal     *prometheus.CounterVec
	queryDuration            *prometheus.HistogramVec
	attributionMethodTotal   *prometheus.CounterVec
	sentencesUnattributed    *prometheus.CounterVec
	pathsAttributed          *prometheus.HistogramVec
	ingestSignalsTotal       *prometheus.CounterVec
	ingestSignalFailureTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prag",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "prag",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "prag",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queryClassifiedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prag",
			Subsystem: "query",
			Name:      "classified_total",
			Help:      "Total classified queries by routed type.",
		},
		[]string{"service", "query_type"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "prag",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Query answering duration in seconds by routed type.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "query_type"},
	)
	attributionMethodTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prag",
			Subsystem: "attribution",
			Name:      "chunks_total",
			Help:      "Total attributed chunks by resolution method.",
		},
		[]string{"service", "method"},
	)
	sentencesUnattributed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prag",
			Subsystem: "attribution",
			Name:      "sentences_unattributed_total",
			Help:      "Total answer sentences left without a supporting chunk.",
		},
		[]string{"service"},
	)
	pathsAttributed := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "prag",
			Subsystem: "attribution",
			Name:      "paths_per_query",
			Help:      "Distribution of attributed reasoning paths per query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"service"},
	)
	ingestSignalsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prag",
			Subsystem: "ingest",
			Name:      "signals_total",
			Help:      "Total structured signals written during ingestion.",
		},
		[]string{"service"},
	)
	ingestSignalFailureTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prag",
			Subsystem: "ingest",
			Name:      "signal_failures_total",
			Help:      "Total structured signal writes that failed during ingestion.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		queryClassifiedTotal,
		queryDuration,
		attributionMethodTotal,
		sentencesUnattributed,
		pathsAttributed,
		ingestSignalsTotal,
		ingestSignalFailureTotal,
	)

	return &HTTPServerMetrics{
		registry:                 registry,
		requestTotal:             requestTotal,
		requestDuration:          requestDuration,
		requestInFlight:          requestInFlight,
		queryClassifiedTotal:     queryClassifiedTotal,
		queryDuration:            queryDuration,
		attributionMethodTotal:   attributionMethodTotal,
		sentencesUnattributed:    sentencesUnattributed,
		pathsAttributed:          pathsAttributed,
		ingestSignalsTotal:       ingestSignalsTotal,
		ingestSignalFailureTotal: ingestSignalFailureTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/signals/"):
		return "/v1/signals/{op}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordQuery(service, queryType string, duration time.Duration) {
	if queryType == "" {
		queryType = "unknown"
	}
	m.queryClassifiedTotal.WithLabelValues(service, queryType).Inc()
	m.queryDuration.WithLabelValues(service, queryType).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordAttributionMethod(service, method string, count int) {
	if count <= 0 {
		return
	}
	if method == "" {
		method = "unknown"
	}
	m.attributionMethodTotal.WithLabelValues(service, method).Add(float64(count))
}

func (m *HTTPServerMetrics) RecordUnattributedSentences(service string, count int) {
	if count <= 0 {
		return
	}
	m.sentencesUnattributed.WithLabelValues(service).Add(float64(count))
}

func (m *HTTPServerMetrics) RecordAttributedPaths(service string, count int) {
	m.pathsAttributed.WithLabelValues(service).Observe(float64(count))
}

func (m *HTTPServerMetrics) RecordIngestSignals(service string, stored, failed int) {
	if stored > 0 {
		m.ingestSignalsTotal.WithLabelValues(service).Add(float64(stored))
	}
	if failed > 0 {
		m.ingestSignalFailureTotal.WithLabelValues(service).Add(float64(failed))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
