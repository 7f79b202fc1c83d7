package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/pxi/internal/database"
	"github.com/aristath/pxi/internal/domain"
)

func newTestStore(t *testing.T) *Store {
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
	return New(db, zerolog.Nop())
}

func TestUpsertSamples_NewerWins(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, st.UpsertSamples(ctx, []domain.Sample{
		{IndicatorID: "vix", Value: 15, Unit: "index", SourceTimestamp: ts, IngestedAt: ts},
	}))
	require.NoError(t, st.UpsertSamples(ctx, []domain.Sample{
		{IndicatorID: "vix", Value: 20, Unit: "index", SourceTimestamp: ts, IngestedAt: ts.Add(time.Minute)},
	}))

	latest, err := st.FetchLatestSamplePerIndicator(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20.0, latest["vix"].Value)
}

func TestFetchHistorical_OrderedOldestFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		ts := base.AddDate(0, 0, i)
		require.NoError(t, st.UpsertSamples(ctx, []domain.Sample{
			{IndicatorID: "vix", Value: float64(10 + i), Unit: "index", SourceTimestamp: ts, IngestedAt: ts},
		}))
	}

	hist, err := st.FetchHistorical(ctx, "vix", base)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, 10.0, hist[0].Value)
	assert.Equal(t, 12.0, hist[2].Value)
}

func TestInsertComposite_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	calculatedAt := time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC)

	z := 1.5
	composite := domain.Composite{
		CalculatedAt: calculatedAt,
		RawPxi:       0.8,
		Pxi:          0.8,
		Regime:       domain.RegimeNormal,
		TotalWeight:  1.0,
		PampCount:    1,
		StressCount:  0,
		Metrics: []domain.MetricContribution{
			{IndicatorID: "vix", Value: 18, Z: &z, NormalizedWeight: 1.0, Contribution: 0.8},
		},
	}
	require.NoError(t, st.InsertComposite(ctx, composite))

	hist, err := st.FetchPxiHistory(ctx, 7)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, 0.8, hist[0].Pxi)
	assert.Equal(t, domain.RegimeNormal, hist[0].Regime)
}

func TestInsertAndAcknowledgeAlert(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	indicatorID := "vix"

	require.NoError(t, st.InsertAlerts(ctx, []domain.Alert{
		{AlertType: domain.AlertHighZScore, IndicatorID: &indicatorID, Timestamp: time.Now().UTC(),
			Message: "z exceeded threshold", Severity: domain.SeverityWarning},
	}))

	alerts, err := st.FetchRecentAlerts(ctx, domain.AlertHighZScore, &indicatorID, 7)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.False(t, alerts[0].Acknowledged)

	require.NoError(t, st.AcknowledgeAlert(ctx, alerts[0].ID))
	alerts, err = st.FetchRecentAlerts(ctx, domain.AlertHighZScore, &indicatorID, 7)
	require.NoError(t, err)
	assert.True(t, alerts[0].Acknowledged)
}

func TestRegimeRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	row := domain.RegimeRow{
		Date: "2026-01-01", Regime: domain.DiscoveredCalm, ClusterID: 0,
		Features: []float64{0.1, 0.2}, Centroid: []float64{0.15, 0.25}, Probabilities: []float64{0.9, 0.05, 0.05},
	}
	require.NoError(t, st.InsertRegime(ctx, row))

	got, err := st.FetchLatestRegime(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DiscoveredCalm, got.Regime)
	assert.Equal(t, []float64{0.1, 0.2}, got.Features)
}
