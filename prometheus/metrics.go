package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Authentication error counter
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"},
	)

	// Sync pass counter
	SyncPassCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_sync_passes_total",
			Help: "Total number of sync passes by direction and result",
		},
		[]string{"direction", "result"}, // direction is "push" or "pull"
	)

	// Per-lead sync outcome counter
	SyncLeadCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_sync_leads_total",
			Help: "Total number of leads processed by sync passes",
		},
		[]string{"outcome"}, // outcome can be "updated", "created", "failed", "pulled"
	)

	// Remote CRM fallout counter for best-effort pushes
	RemotePushFailureCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_remote_push_failures_total",
			Help: "Total number of best-effort remote pushes that failed",
		},
		[]string{"resource"},
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // operation can be "query", "insert", "update", "delete"
	)

	// Remote CRM call duration
	RemoteRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_remote_request_duration_seconds",
			Help:    "Duration of remote CRM GraphQL calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "result"},
	)
)

// Gauge metrics
var (
	// Leads waiting to be pushed
	PendingLeadsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "crm_sync_pending_leads",
			Help: "Number of local leads in pending or error state at the start of the last push",
		},
	)

	// Connectivity to the remote CRM
	OnlineGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "crm_sync_online",
			Help: "1 when the remote CRM was reachable on the last probe",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(SyncPassCounter)
	prometheus.MustRegister(SyncLeadCounter)
	prometheus.MustRegister(RemotePushFailureCounter)

	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)
	prometheus.MustRegister(RemoteRequestDuration)

	prometheus.MustRegister(PendingLeadsGauge)
	prometheus.MustRegister(OnlineGauge)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(endTime.Sub(startTime).Seconds())
	}
}

// ObserveRemoteCall records the duration of one remote CRM operation
func ObserveRemoteCall(operation string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	RemoteRequestDuration.With(prometheus.Labels{
		"operation": operation,
		"result":    result,
	}).Observe(time.Since(start).Seconds())
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}

// RecordAuthError records an authentication error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordSyncPass records the outcome of a push or pull pass
func RecordSyncPass(direction string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	SyncPassCounter.With(prometheus.Labels{"direction": direction, "result": result}).Inc()
}

// RecordSyncLead records one lead outcome within a pass
func RecordSyncLead(outcome string) {
	SyncLeadCounter.With(prometheus.Labels{"outcome": outcome}).Inc()
}

// RecordRemotePushFailure records a best-effort push that was dropped
func RecordRemotePushFailure(resource string) {
	RemotePushFailureCounter.With(prometheus.Labels{"resource": resource}).Inc()
}

// SetOnline updates the connectivity gauge
func SetOnline(online bool) {
	if online {
		OnlineGauge.Set(1)
		return
	}
	OnlineGauge.Set(0)
}
