// Package metrics holds the Prometheus collectors of the identity service.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Login outcomes.
const (
	LoginSuccess           = "success"
	LoginInvalidRequest    = "invalid_request"
	LoginUnknownOrg        = "unknown_organization"
	LoginUnknownUser       = "unknown_user"
	LoginInvalidCredential = "invalid_credentials"
	LoginError             = "error"
)

var (
	// RequestsTotal counts HTTP requests by method, route template and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "identity_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// LoginAttemptsTotal counts login attempts by outcome.
	LoginAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_login_attempts_total",
			Help: "Login attempts",
		},
		[]string{"outcome"},
	)

	// CascadeDeletedUsersTotal counts users removed by organization deletes.
	CascadeDeletedUsersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "identity_cascade_deleted_users_total",
			Help: "Users deleted together with their organization",
		},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "identity_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		LoginAttemptsTotal,
		CascadeDeletedUsersTotal,
		RateLimitRejectedTotal,
	)
}

// Middleware records request count and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status()/100) + "xx"

		RequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
