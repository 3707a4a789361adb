package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "howitt",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "howitt",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "howitt",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Query metrics
	NearbyResults = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "howitt",
		Subsystem: "query",
		Name:      "nearby_results",
		Help:      "Features returned by radius queries",
		Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 200},
	})

	// Import metrics
	FeaturesImported = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "howitt",
		Subsystem: "sync",
		Name:      "features_imported_total",
		Help:      "Total features upserted by imports",
	}, []string{"source"})

	ObservationsImported = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "howitt",
		Subsystem: "sync",
		Name:      "observations_imported_total",
		Help:      "Total water beta rows upserted by imports",
	}, []string{"source"})

	ImportErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "howitt",
		Subsystem: "sync",
		Name:      "import_errors_total",
		Help:      "Total failed imports",
	}, []string{"source"})

	FeedFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "howitt",
		Subsystem: "feed",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of upstream feed fetches",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"host"})

	FeedFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "howitt",
		Subsystem: "feed",
		Name:      "fetch_errors_total",
		Help:      "Total upstream feed fetch errors",
	}, []string{"host"})

	FeedBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "howitt",
		Subsystem: "feed",
		Name:      "breaker_state",
		Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
	}, []string{"name"})

	// Map viewport sessions
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "howitt",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	LayerChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "howitt",
		Subsystem: "ws",
		Name:      "layer_changes_total",
		Help:      "Layer changes sent to viewport clients",
	}, []string{"op"})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "howitt",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "howitt",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	CacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "howitt",
		Subsystem: "cache",
		Name:      "invalidated_keys_total",
		Help:      "Total cache keys dropped after imports",
	})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "howitt",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "howitt",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "howitt",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})

	DBPoolEmptyAcquires = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "howitt",
		Subsystem: "db",
		Name:      "pool_empty_acquires",
		Help:      "Acquires that had to wait for a new connection since the pool started",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		// fiber resolves the route pattern, which keeps ids out of the labels
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// PoolStat is the subset of pgxpool.Stat the pool gauges read.
type PoolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
	EmptyAcquireCount() int64
}

// UpdateDBPoolMetrics copies pool stats into the pool gauges.
func UpdateDBPoolMetrics(s PoolStat) {
	DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(s.IdleConns()))
	DBPoolConnsOpen.Set(float64(s.TotalConns()))
	DBPoolEmptyAcquires.Set(float64(s.EmptyAcquireCount()))
}
