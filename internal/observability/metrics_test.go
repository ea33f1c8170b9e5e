package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/internship-placement/config"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.RecordSubmission("created")
	m.RecordSubmission("created")
	m.RecordSubmission("duplicate")
	m.RecordTransition("accept", "ok")
	m.RecordNotification("email", "failed")
	m.RecordDropped()
	m.RecordQuotaRejection()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.submissions.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("accept", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("email", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.quotaRejected))
}

func TestMetrics_HTTP(t *testing.T) {
	m := NewMetrics()

	done := m.HTTPStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpInFlight))
	done("GET", "/api/v1/applications/{id}", "200", 15*time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/v1/applications/{id}", "200")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "placement_http_requests_total")
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordSubmission("created")
		m.RecordTransition("reject", "ok")
		m.RecordNotification("in_app", "ok")
		m.RecordDropped()
		m.RecordQuotaRejection()
		m.HTTPStarted()("GET", "/", "200", time.Millisecond)
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("json logger", func(t *testing.T) {
		logger, err := NewLogger(config.ObservabilityConfig{LogLevel: "info", LogFormat: "json"})
		require.NoError(t, err)
		require.NotNil(t, logger)
	})

	t.Run("console logger", func(t *testing.T) {
		logger, err := NewLogger(config.ObservabilityConfig{LogLevel: "debug", LogFormat: "console"})
		require.NoError(t, err)
		require.NotNil(t, logger)
	})

	t.Run("defaults when level empty", func(t *testing.T) {
		logger, err := NewLogger(config.ObservabilityConfig{})
		require.NoError(t, err)
		require.NotNil(t, logger)
	})

	t.Run("invalid log level", func(t *testing.T) {
		logger, err := NewLogger(config.ObservabilityConfig{LogLevel: "loud"})
		assert.Error(t, err)
		assert.Nil(t, logger)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}
