package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the marketplace Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "marketplace",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "marketplace",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	ledgerOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Ledger operations by asset, operation type and result.",
		},
		[]string{"asset", "operation", "result"},
	)

	ordersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "orders",
			Name:      "created_total",
			Help:      "Total number of orders created.",
		},
	)

	orderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "orders",
			Name:      "status_changes_total",
			Help:      "Order status changes by target status.",
		},
		[]string{"status"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		ledgerOperations,
		ordersCreated,
		orderTransitions,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// TrackInFlight increments the in-flight gauge and returns the matching decrement.
func TrackInFlight() func() {
	httpInFlight.Inc()
	return httpInFlight.Dec
}

// RecordHTTPRequest records one handled request.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if path == "" {
		path = "unmatched"
	}
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordLedgerOperation counts a ledger operation attempt; result is "ok" or the failure class.
func RecordLedgerOperation(asset, operation, result string) {
	ledgerOperations.WithLabelValues(asset, operation, result).Inc()
}

// RecordOrderCreated counts a committed order.
func RecordOrderCreated() {
	ordersCreated.Inc()
}

// RecordOrderStatus counts an order moving to status.
func RecordOrderStatus(status string) {
	orderTransitions.WithLabelValues(status).Inc()
}
