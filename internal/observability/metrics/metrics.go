package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "productcatalog_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "productcatalog_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	catalogOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "productcatalog_operations_total",
		Help: "Catalog service operations by entity, operation and result",
	}, []string{"entity", "operation", "result"})

	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "productcatalog_login_attempts_total",
		Help: "Login attempts by result",
	}, []string{"result"})

	uploadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "productcatalog_upload_duration_seconds",
		Help:    "Duration of image uploads to the blob store",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	uploadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "productcatalog_upload_bytes_total",
		Help: "Bytes accepted for image upload",
	})

	invalidatedTags = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "productcatalog_invalidated_tags_total",
		Help: "Cache tags invalidated by mutations, by entity type",
	}, []string{"type"})

	invalidationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "productcatalog_invalidation_failures_total",
		Help: "Committed mutations whose tag versions could not be bumped",
	})

	invalidationSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "productcatalog_invalidation_subscribers",
		Help: "Connected invalidation feed subscribers",
	})

	productsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "productcatalog_products",
		Help: "Number of products in the catalog",
	})

	productsAvailable = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "productcatalog_products_available",
		Help: "Number of products marked available",
	})

	activeUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "productcatalog_active_users",
		Help: "Number of active user accounts",
	})

	circuitState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "productcatalog_circuit_state",
		Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
	}, []string{"dependency"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveOperation counts a catalog operation with its outcome
func ObserveOperation(entity, operation, result string) {
	catalogOperations.WithLabelValues(entity, operation, result).Inc()
}

// ObserveLogin counts a login attempt
func ObserveLogin(result string) {
	loginAttempts.WithLabelValues(result).Inc()
}

// ObserveUpload records the duration of an upload attempt and, on success, its size
func ObserveUpload(result string, size int64, duration time.Duration) {
	uploadDuration.WithLabelValues(result).Observe(duration.Seconds())
	if result == "success" {
		uploadBytes.Add(float64(size))
	}
}

// ObserveInvalidation counts an invalidated tag
func ObserveInvalidation(tagType string) {
	invalidatedTags.WithLabelValues(tagType).Inc()
}

// ObserveInvalidationFailure counts a committed mutation whose invalidation failed
func ObserveInvalidationFailure() {
	invalidationFailures.Inc()
}

// SetSubscribers sets the invalidation feed subscriber gauge
func SetSubscribers(count int) {
	invalidationSubscribers.Set(float64(count))
}

// SetCatalogStats publishes the catalog size gauges
func SetCatalogStats(products, available, users int) {
	productsTotal.Set(float64(clamp(products)))
	productsAvailable.Set(float64(clamp(available)))
	activeUsers.Set(float64(clamp(users)))
}

// SetCircuitState publishes a circuit breaker state
func SetCircuitState(dependency string, state int) {
	circuitState.WithLabelValues(dependency).Set(float64(state))
}

func clamp(count int) int {
	if count < 0 {
		return 0
	}
	return count
}
