package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/erp/connector/internal/domain/integration"
)

// Prometheus metric names.
const (
	MetricSyncRunsTotal           = "connector_sync_runs_total"
	MetricSyncDurationSeconds     = "connector_sync_duration_seconds"
	MetricOrdersSyncedTotal       = "connector_orders_synced_total"
	MetricWebhooksTotal           = "connector_webhooks_total"
	MetricUpstreamRequestsTotal   = "connector_upstream_requests_total"
	MetricUpstreamDurationSeconds = "connector_upstream_request_duration_seconds"
	MetricHTTPRequestsTotal       = "connector_http_requests_total"
	MetricHTTPDurationSeconds     = "connector_http_request_duration_seconds"
)

const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// Metrics owns a dedicated Prometheus registry with the connector's counters
// and histograms. It satisfies the sync service observer, the platform client
// request observer and the HTTP middleware observer.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type Metrics struct {
	registry *prometheus.Registry

	syncRuns         *prometheus.CounterVec
	syncDuration     prometheus.Histogram
	ordersSynced     *prometheus.CounterVec
	webhooks         *prometheus.CounterVec
	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// NewMetrics creates the registry and registers every collector, including
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		syncRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: MetricSyncRunsTotal, Help: "Order sync runs by result."},
			[]string{"result"},
		),
		syncDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricSyncDurationSeconds,
				Help:    "Order sync run duration in seconds.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
		),
		ordersSynced: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: MetricOrdersSyncedTotal, Help: "Orders delivered to the destination by result."},
			[]string{"result"},
		),
		webhooks: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: MetricWebhooksTotal, Help: "Shipment webhook events by result."},
			[]string{"result"},
		),
		upstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: MetricUpstreamRequestsTotal, Help: "Outbound platform API requests by platform and status."},
			[]string{"platform", "method", "status"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricUpstreamDurationSeconds,
				Help:    "Outbound platform API request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"platform"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: MetricHTTPRequestsTotal, Help: "HTTP requests served by method, route and status."},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPDurationSeconds,
				Help:    "HTTP request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	m.registry.MustRegister(
		m.syncRuns,
		m.syncDuration,
		m.ordersSynced,
		m.webhooks,
		m.upstreamRequests,
		m.upstreamDuration,
		m.httpRequests,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveSyncRun records one completed order sync run.
func (m *Metrics) ObserveSyncRun(success bool, duration time.Duration) {
	m.syncRuns.WithLabelValues(result(success)).Inc()
	m.syncDuration.Observe(duration.Seconds())
}

// ObserveOrderDelivery records the outcome of one order create.
func (m *Metrics) ObserveOrderDelivery(success bool) {
	m.ordersSynced.WithLabelValues(result(success)).Inc()
}

// ObserveWebhook records one shipment webhook outcome.
func (m *Metrics) ObserveWebhook(outcome string) {
	m.webhooks.WithLabelValues(outcome).Inc()
}

// ObserveRequest records one outbound platform request. A zero status means
// the request failed before a response arrived.
func (m *Metrics) ObserveRequest(platform integration.PlatformCode, method string, statusCode int, duration time.Duration) {
	m.upstreamRequests.WithLabelValues(platform.String(), method, statusLabel(statusCode)).Inc()
	m.upstreamDuration.WithLabelValues(platform.String()).Observe(duration.Seconds())
}

// ObserveHTTPRequest records one served HTTP request. route is the matched
// route template so path parameters do not explode cardinality.
func (m *Metrics) ObserveHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, route, statusLabel(statusCode)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func result(success bool) string {
	if success {
		return resultSuccess
	}
	return resultFailure
}

func statusLabel(code int) string {
	if code == 0 {
		return "error"
	}
	return strconv.Itoa(code)
}
