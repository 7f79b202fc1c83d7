package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/pxi/internal/config"
	"github.com/aristath/pxi/internal/database"
	"github.com/aristath/pxi/internal/domain"
	"github.com/aristath/pxi/internal/scheduler"
	"github.com/aristath/pxi/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	db, err := database.New(database.Config{
		Path:    filepath.Join(dir, "pxi.db"),
		URL:     "postgres://localhost/pxi",
		PoolMax: 5,
		PoolMin: 1,
	}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { db.Close() })

	st := store.New(db, zerolog.Nop())
	cfg := &config.Config{
		Host: "127.0.0.1", Port: 0,
		CORSOrigins:     []string{"*"},
		RateLimitMax:    1000,
		RateLimitWindow: time.Minute,
	}

	srv := New(Config{
		Log:    zerolog.Nop(),
		Store:  st,
		State:  scheduler.NewState(),
		Config: cfg,
	})
	return srv, st
}

func TestHandleHealthz_ReportsOKWithNoTicksYet(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body healthzResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
}

func TestHandleLatest_ReturnsServiceUnavailableBeforeFirstTick(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/pxi/latest", nil)
	rec := httptest.NewRecorder()

	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleLatest_ReturnsCompositeAfterATick(t *testing.T) {
	srv, st := newTestServer(t)
	now := time.Now().UTC()
	z := 1.5
	require.NoError(t, st.InsertComposite(context.Background(), domain.Composite{
		CalculatedAt: now,
		RawPxi:       0.8,
		Pxi:          0.8,
		Regime:       domain.RegimeNormal,
		TotalWeight:  1,
		Metrics: []domain.MetricContribution{
			{IndicatorID: "vix", Value: 18, Z: &z, NormalizedWeight: 1, Contribution: 0.8},
		},
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/pxi/latest", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body latestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 0.8, body.Pxi)
	require.Len(t, body.Metrics, 1)
	assert.Equal(t, "CBOE Volatility Index", body.Metrics[0].Label)
}

func TestHandleHistory_RejectsOutOfRangeDays(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/pxi/history?days=365", nil)
	rec := httptest.NewRecorder()

	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAnalytics_ReturnsInsufficientHistoryWhenEmpty(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/pxi/analytics/sharpe", nil)
	rec := httptest.NewRecorder()

	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleAnalytics_RejectsUnknownMetric(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/pxi/analytics/bogus", nil)
	rec := httptest.NewRecorder()

	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimiter_BlocksAfterMax(t *testing.T) {
	l := newRateLimiter(2, time.Minute)
	assert.True(t, l.allow("1.2.3.4"))
	assert.True(t, l.allow("1.2.3.4"))
	assert.False(t, l.allow("1.2.3.4"))
	assert.True(t, l.allow("5.6.7.8"), "a different key should have its own window")
}
