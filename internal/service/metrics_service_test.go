package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsSnapshotAggregates(t *testing.T) {
	metrics := NewMetricsService()

	metrics.ObserveHTTPRequest(http.MethodGet, "/api/v1/schedules/weekly", http.StatusOK, 20*time.Millisecond)
	metrics.ObserveHTTPRequest(http.MethodPost, "/api/v1/schedules/generate", http.StatusConflict, 40*time.Millisecond)
	metrics.RecordCacheOperation(true, time.Millisecond)
	metrics.RecordCacheOperation(false, time.Millisecond)
	metrics.RecordCacheOperation(true, time.Millisecond)
	metrics.ObserveGeneration(GenerationOutcomeSuccess, time.Millisecond)
	metrics.ObserveGeneration(GenerationOutcomeInfeasible, time.Millisecond)
	metrics.AddSessionsCreated("apply", 4)
	metrics.AddSessionsCreated("manual", 1)
	metrics.RecordConflicts(map[string]int{"teacher_busy": 2})
	metrics.RecordNotification("delivered")

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(2), snapshot.RequestsTotal)
	assert.InDelta(t, 30.0, snapshot.AverageRequestDurationMs, 0.001)
	assert.Equal(t, uint64(2), snapshot.CacheHits)
	assert.Equal(t, uint64(1), snapshot.CacheMisses)
	assert.InDelta(t, 2.0/3.0, snapshot.CacheHitRatio, 0.0001)
	assert.Equal(t, uint64(2), snapshot.GenerationRuns)
	assert.Equal(t, uint64(1), snapshot.GenerationFailures)
	assert.Equal(t, uint64(5), snapshot.SessionsCreated)
	assert.Positive(t, snapshot.Goroutines)
}

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	metrics := NewMetricsService()
	metrics.AddSessionsCreated("apply", 2)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `class_sessions_created_total{source="apply"} 2`)
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var metrics *MetricsService
	metrics.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	metrics.RecordCacheOperation(true, time.Millisecond)
	metrics.ObserveGeneration(GenerationOutcomeError, time.Millisecond)
	metrics.AddSessionsCreated("manual", 1)
	metrics.RecordNotification("dropped")
	assert.Equal(t, uint64(0), metrics.Snapshot().SessionsCreated)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
