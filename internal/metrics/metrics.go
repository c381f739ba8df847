package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clairvoyant"

// Metrics holds the HTTP and business collectors of the API.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	analysesTotal   *prometheus.CounterVec
	analysisLatency *prometheus.HistogramVec
	loginAttempts   *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		httpRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),
		analysesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analyses_total",
				Help:      "Completed analyses by source and predicted label",
			},
			[]string{"source", "label"},
		),
		analysisLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "classification_duration_seconds",
				Help:      "Time spent in the classifier",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		loginAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "login_attempts_total",
				Help:      "Login attempts by outcome",
			},
			[]string{"status"},
		),
	}
}

// Middleware records request counts and durations per route pattern.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.httpRequestsInFlight.Inc()
		defer m.httpRequestsInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAnalysis(source, label string, latency time.Duration) {
	m.analysesTotal.WithLabelValues(source, label).Inc()
	m.analysisLatency.WithLabelValues(source).Observe(latency.Seconds())
}

func (m *Metrics) ObserveLogin(success bool) {
	status := "invalid_credentials"
	if success {
		status = "success"
	}
	m.loginAttempts.WithLabelValues(status).Inc()
}
