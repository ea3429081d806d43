package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersRecord(t *testing.T) {
	m := New()

	m.PairsApplied(3)
	m.PairsApplied(0)
	m.ProjectSkipped("locked")
	m.ProjectSkipped("locked")
	m.ProjectFailed()
	m.DayAdvanced(true)
	m.DayAdvanced(false)
	m.StatusChanged("pending")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.appliedPairs))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.skippedProjects.WithLabelValues("locked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failedProjects))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dayAdvances.WithLabelValues("advanced")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dayAdvances.WithLabelValues("noop")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.statusChanges.WithLabelValues("pending")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.PairsApplied(1)
		m.ProjectSkipped("locked")
		m.ProjectFailed()
		m.StatusChanged("completed")
		m.DayAdvanced(true)
		m.ObserveRequest("GET", "/health", "200", 0.01)
	})
	assert.Nil(t, m.Registry())
	assert.NotNil(t, m.Handler())
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.PairsApplied(2)
	m.ObserveRequest("GET", "/api/assignments", "200", 0.02)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "crew_scheduler_attendance_pairs_applied_total 2"))
	assert.Contains(t, body, "crew_scheduler_http_request_duration_seconds")
}
