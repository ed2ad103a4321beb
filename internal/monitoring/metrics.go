package monitoring

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Rate limiting metrics
	RateLimitHits prometheus.Counter

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Gamification metrics
	PointsAwarded *prometheus.CounterVec
	MedalsEarned  *prometheus.CounterVec

	// Marketplace metrics
	AdTransitions *prometheus.CounterVec
	AdsExpired    prometheus.Counter

	// Payout metrics
	WithdrawalsResolved *prometheus.CounterVec
	CommissionsPaid     prometheus.Counter

	// Background jobs
	JobRuns     *prometheus.CounterVec
	JobDuration *prometheus.HistogramVec

	// Soft failures of non-blocking side effects
	SoftFailures *prometheus.CounterVec
}

var (
	metrics *Metrics
	once    sync.Once
)

// Init initializes all Prometheus metrics
func Init() *Metrics {
	once.Do(func() {
		metrics = &Metrics{
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request duration in seconds",
					Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
				},
				[]string{"method", "path"},
			),
			HTTPRequestsInFlight: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "http_requests_in_flight",
					Help: "Number of HTTP requests currently being processed",
				},
			),

			RateLimitHits: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "rate_limit_hits_total",
					Help: "Total number of rate limit hits",
				},
			),

			CacheHits: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_hits_total",
					Help: "Total number of cache hits",
				},
				[]string{"cache_type"},
			),
			CacheMisses: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_misses_total",
					Help: "Total number of cache misses",
				},
				[]string{"cache_type"},
			),

			DBConnectionsActive: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "db_connections_active",
					Help: "Number of active database connections",
				},
			),
			DBConnectionsIdle: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "db_connections_idle",
					Help: "Number of idle database connections",
				},
			),

			PointsAwarded: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rota_points_awarded_total",
					Help: "Total vigor points awarded, after plan multiplier",
				},
				[]string{"action_type"},
			),
			MedalsEarned: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rota_medals_earned_total",
					Help: "Total number of medals earned",
				},
				[]string{"medal"},
			),

			AdTransitions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rota_ad_transitions_total",
					Help: "Marketplace ad status transitions",
				},
				[]string{"to"},
			),
			AdsExpired: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "rota_ads_expired_total",
					Help: "Ads expired by the background sweep",
				},
			),

			WithdrawalsResolved: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rota_withdrawals_resolved_total",
					Help: "Withdrawal requests resolved by admins",
				},
				[]string{"status"},
			),
			CommissionsPaid: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "rota_commissions_paid_total",
					Help: "Referral commissions marked as paid",
				},
			),

			JobRuns: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rota_job_runs_total",
					Help: "Background job executions",
				},
				[]string{"job", "status"},
			),
			JobDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "rota_job_duration_seconds",
					Help:    "Background job duration in seconds",
					Buckets: []float64{.01, .05, .1, .5, 1, 5, 30},
				},
				[]string{"job"},
			),

			SoftFailures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rota_soft_failures_total",
					Help: "Failed side effects that did not fail the request",
				},
				[]string{"component", "operation"},
			),
		}
	})
	return metrics
}

// Get returns the global metrics instance
func Get() *Metrics {
	return Init()
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// MetricsMiddleware is a Gin middleware for collecting HTTP metrics
func MetricsMiddleware() gin.HandlerFunc {
	m := Get()
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// RecordRateLimitHit records a rate limit hit
func RecordRateLimitHit() {
	Get().RateLimitHits.Inc()
}

// RecordCacheHit records a cache hit
func RecordCacheHit(cacheType string) {
	Get().CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss(cacheType string) {
	Get().CacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordPoolStats copies pgxpool connection counts into the gauges
func RecordPoolStats(pool *pgxpool.Pool) {
	stat := pool.Stat()
	Get().DBConnectionsActive.Set(float64(stat.AcquiredConns()))
	Get().DBConnectionsIdle.Set(float64(stat.IdleConns()))
}

// RecordPointsAwarded records a ledger entry
func RecordPointsAwarded(actionType string, amount int64) {
	if amount > 0 {
		Get().PointsAwarded.WithLabelValues(actionType).Add(float64(amount))
	}
}

// RecordMedalEarned records a medal grant
func RecordMedalEarned(code string) {
	Get().MedalsEarned.WithLabelValues(code).Inc()
}

// RecordAdTransition records an ad moving to a new status
func RecordAdTransition(to string) {
	Get().AdTransitions.WithLabelValues(to).Inc()
}

// RecordAdsExpired records ads flipped by the expiry sweep
func RecordAdsExpired(n int64) {
	Get().AdsExpired.Add(float64(n))
}

// RecordWithdrawalResolved records an approved or rejected withdrawal
func RecordWithdrawalResolved(status string, commissionsPaid int) {
	Get().WithdrawalsResolved.WithLabelValues(status).Inc()
	Get().CommissionsPaid.Add(float64(commissionsPaid))
}

// RecordJobRun records a background job execution
func RecordJobRun(job string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	Get().JobRuns.WithLabelValues(job, status).Inc()
	Get().JobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// RecordSoftFailure counts a side effect failure that was logged and swallowed
func RecordSoftFailure(component, operation string) {
	Get().SoftFailures.WithLabelValues(component, operation).Inc()
}
