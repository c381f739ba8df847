package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(prometheus.NewRegistry())

	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/analyses/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analyses/abc", nil))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues(http.MethodGet, "/analyses/:id", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpRequestsInFlight))
}

func TestBusinessCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveAnalysis("image", "Benign", 200*time.Millisecond)
	m.ObserveAnalysis("image", "Benign", time.Second)
	m.ObserveLogin(true)
	m.ObserveLogin(false)
	m.ObserveLogin(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.analysesTotal.WithLabelValues("image", "Benign")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.loginAttempts.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.loginAttempts.WithLabelValues("invalid_credentials")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveLogin(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "clairvoyant_login_attempts_total"))
}
