package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/energy-forecast/internal/adapter/http"
	"github.com/couchcryptid/energy-forecast/internal/adapter/objectstore"
	"github.com/couchcryptid/energy-forecast/internal/artifact"
	"github.com/couchcryptid/energy-forecast/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

var info = httpadapter.APIInfo{Name: "energy-forecast", Version: "v1"}

func newTestServer(t *testing.T, seeded bool, readyErr error) *httpadapter.Server {
	t.Helper()
	store, err := objectstore.NewLocal(t.TempDir())
	require.NoError(t, err)
	if seeded {
		require.NoError(t, artifact.SeedMock(context.Background(), store, artifact.MockOptions{
			Now:            time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			HistoryHours:   24,
			HorizonHours:   12,
			Municipalities: []int32{101, 860},
			Branches:       []int32{1, 2},
		}))
	}
	repo := artifact.NewRepository(store, slog.Default())
	return httpadapter.NewServer(":0", info, repo, &mockReadiness{err: readyErr}, slog.Default(), observability.NewMetricsForTesting())
}

func get(t *testing.T, srv *httpadapter.Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(t, newTestServer(t, false, nil), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(t, newTestServer(t, false, nil), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode[map[string]string](t, rec)["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(t, newTestServer(t, false, errors.New("not ready yet")), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(t, false, nil), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAPIHealth(t *testing.T) {
	rec := get(t, newTestServer(t, false, nil), "/api/v1/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{
		"name":        "energy-forecast",
		"api_version": "v1",
		"status":      "OK",
	}, decode[map[string]string](t, rec))
}

func TestDistinctValues(t *testing.T) {
	srv := newTestServer(t, true, nil)

	rec := get(t, srv, "/api/v1/municipality_number_values")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{101, 860}, decode[map[string][]int64](t, rec)["values"])

	rec = get(t, srv, "/api/v1/branch_values")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{1, 2}, decode[map[string][]int64](t, rec)["values"])
}

func TestPrediction(t *testing.T) {
	rec := get(t, newTestServer(t, true, nil), "/api/v1/prediction/860/2")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[artifact.PredictionSeries](t, rec)
	assert.Len(t, body.HistoricalDatetime, 24)
	assert.Len(t, body.HistoricalConsumption, 24)
	assert.Len(t, body.PredictionDatetime, 12)
	assert.Len(t, body.PredictionConsumption, 12)
	assert.Less(t, body.HistoricalDatetime[23], body.PredictionDatetime[0])
}

func TestPrediction_UnknownSeries(t *testing.T) {
	rec := get(t, newTestServer(t, true, nil), "/api/v1/prediction/999/2")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	detail := decode[map[string]string](t, rec)["detail"]
	assert.True(t, strings.HasPrefix(detail, "Data not found for the provided municipality number: 999 and branch: 2."), detail)
}

func TestPrediction_NonIntegerParam(t *testing.T) {
	srv := newTestServer(t, true, nil)

	rec := get(t, srv, "/api/v1/prediction/abc/2")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = get(t, srv, "/api/v1/monitor/prediction/101/x")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPrediction_MissingArtifact(t *testing.T) {
	rec := get(t, newTestServer(t, false, nil), "/api/v1/prediction/101/1")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMonitorPrediction(t *testing.T) {
	rec := get(t, newTestServer(t, true, nil), "/api/v1/monitor/prediction/101/1")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[artifact.MonitorSeries](t, rec)
	assert.Len(t, body.GroundTruthDatetime, 12)
	assert.Equal(t, body.GroundTruthDatetime, body.CachedPredictionDatetime)
}

func TestMonitorMetrics(t *testing.T) {
	rec := get(t, newTestServer(t, true, nil), "/api/v1/monitor/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[artifact.MetricSeries](t, rec)
	assert.Len(t, body.Datetime, 7)
	assert.Len(t, body.MAPE, 7)
	assert.Len(t, body.RMSPE, 7)
}

func TestMonitorMetrics_Empty(t *testing.T) {
	store, err := objectstore.NewLocal(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, artifact.Put(context.Background(), store, artifact.KeyPerformanceMetrics, []artifact.MetricRow{}))
	srv := httpadapter.NewServer(":0", info, artifact.NewRepository(store, slog.Default()),
		&mockReadiness{}, slog.Default(), observability.NewMetricsForTesting())

	rec := get(t, srv, "/api/v1/monitor/metrics")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Data not found or either performance metrics has not been generated.",
		decode[map[string]string](t, rec)["detail"])
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, false, nil)

	rec := get(t, srv, "/api/v1/health")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/prediction/101/1", nil)
	req.Header.Set("Origin", "http://localhost:8501")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "GET")
}

func TestUnknownVersionNotRouted(t *testing.T) {
	rec := get(t, newTestServer(t, false, nil), "/api/v2/health")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
