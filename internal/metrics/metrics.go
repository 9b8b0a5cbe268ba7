// Package metrics exposes request, import, export, style and overlay
// counters on a private Prometheus registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "maps"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	imports             *prometheus.CounterVec
	exports             *prometheus.CounterVec
	stylePersist        *prometheus.CounterVec
	featureInfo         *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests served",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Layer imports by source format and outcome",
		}, []string{"format", "result"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Map exports by format and outcome",
		}, []string{"format", "result"}),
		stylePersist: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "style_persist_total",
			Help:      "Style upserts by outcome",
		}, []string{"result"}),
		featureInfo: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wms_feature_info_total",
			Help:      "WMS GetFeatureInfo requests by outcome",
		}, []string{"result"}),
	}

	registry.MustRegister(
		m.httpRequests,
		m.httpRequestDuration,
		m.imports,
		m.exports,
		m.stylePersist,
		m.featureInfo,
	)
	return m
}

// ObserveHTTPRequest records one request. path should be the route
// pattern, not the raw URL, to keep cardinality bounded.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

func (m *Metrics) ObserveImport(format string, err error) {
	if m == nil {
		return
	}
	m.imports.WithLabelValues(format, result(err == nil)).Inc()
}

func (m *Metrics) ObserveExport(format string, err error) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(format, result(err == nil)).Inc()
}

func (m *Metrics) ObserveStylePersist(ok bool) {
	if m == nil {
		return
	}
	m.stylePersist.WithLabelValues(result(ok)).Inc()
}

// ObserveFeatureInfo counts one overlay query: "hit", "empty" or "error".
func (m *Metrics) ObserveFeatureInfo(outcome string) {
	if m == nil {
		return
	}
	m.featureInfo.WithLabelValues(outcome).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// Handler exposes the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
