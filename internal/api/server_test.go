package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mwhitfield/jobhunter/internal/progress"
	"github.com/mwhitfield/jobhunter/internal/progress/sinks"
)

func newTestServer(t *testing.T) (*Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewServer(0, reg, zaptest.NewLogger(t)), reg
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestProgressNotFoundBeforeFirstPublish(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/progress", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProgressReturnsLatestSnapshot(t *testing.T) {
	srv, _ := newTestServer(t)

	require.NoError(t, srv.Publish(progress.Snapshot{
		Site: "Seek", Phase: progress.PhaseDiscovery, Keyword: "Kitchen Hand",
	}))
	require.NoError(t, srv.Publish(progress.Snapshot{
		Site: "Seek", Phase: progress.PhaseDeepScan, Keyword: "Dishwasher", DeepScanned: 3,
	}))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/progress", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got progress.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "PASS 2", got.Phase)
	assert.Equal(t, "Dishwasher", got.Keyword)
	assert.Equal(t, 3, got.DeepScanned)
}

func TestMetricsEndpointServesRegistry(t *testing.T) {
	srv, reg := newTestServer(t)

	sink, err := sinks.NewPrometheusSink(reg)
	require.NoError(t, err)
	require.NoError(t, sink.Publish(progress.Snapshot{ProcessedCount: 9}))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "jobhunter_processed_listings 9")
}
