package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()

	for _, namespace := range []string{"custom", ""} {
		metrics := NewMetrics(namespace)
		require.NotNil(t, metrics)
		assert.NotNil(t, metrics.Registry())
	}
}

func TestMetrics_RecordRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics("test")
	metrics.RecordRequest(http.MethodGet, "profile", http.StatusOK, 15*time.Millisecond)
	metrics.RecordRequest(http.MethodGet, "profile", http.StatusOK, 25*time.Millisecond)
	metrics.RecordRequest(http.MethodPut, UnmatchedRoute, http.StatusUnauthorized, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(
		metrics.requestsTotal.WithLabelValues(http.MethodGet, "profile", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		metrics.requestsTotal.WithLabelValues(http.MethodPut, UnmatchedRoute, "401")))
}

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics("test")
	metrics.RecordAuthFailure("authentication")
	metrics.RecordAuthFailure("authentication")
	metrics.RecordRateLimitHit()
	metrics.SetCircuitBreakerState("upstream", 2)
	metrics.RecordUpstream(http.MethodGet, "success", 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.authFailures.WithLabelValues("authentication")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.rateLimitHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.circuitBreaker.WithLabelValues("upstream")))
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics("test")
	metrics.SetBuildInfo("1.0.0", "abc123", "now")
	metrics.RecordRequest(http.MethodGet, "status", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_requests_total")
	assert.Contains(t, rec.Body.String(), "test_build_info")
}
