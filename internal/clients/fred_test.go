package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFREDClient(t *testing.T, handler http.HandlerFunc) (*FREDClient, func()) {
	t.Helper()
	server := httptest.NewServer(handler)
	client := NewFREDClient("test-key", zerolog.Nop())
	client.baseURL = server.URL
	return client, server.Close
}

func TestFREDClient_FetchLatestObservation_SkipsMissing(t *testing.T) {
	client, closeFn := newTestFREDClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"observations":[{"date":"2026-07-30","value":"."},{"date":"2026-07-29","value":"18.5"}]}`))
	})
	defer closeFn()

	date, value, err := client.fetchLatestObservation(context.Background(), "VIXCLS")
	require.NoError(t, err)
	assert.Equal(t, 18.5, value)
	assert.Equal(t, "2026-07-29", date.Format("2006-01-02"))
}

func TestFREDClient_FetchLatestObservation_AllMissing(t *testing.T) {
	client, closeFn := newTestFREDClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"observations":[{"date":"2026-07-30","value":"."}]}`))
	})
	defer closeFn()

	_, _, err := client.fetchLatestObservation(context.Background(), "VIXCLS")
	assert.Error(t, err)
}

func TestPercentSeriesFetcher_AppliesDecimalTransform(t *testing.T) {
	client, closeFn := newTestFREDClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"observations":[{"date":"2026-07-29","value":"4.25"}]}`))
	})
	defer closeFn()

	fetcher := NewPercentSeriesFetcher(client, "u3", "UNRATE", true)
	sample, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.0425, sample.Value, 1e-9)
	assert.Equal(t, "u3", sample.IndicatorID)
}

func TestPercentSeriesFetcher_NoTransform(t *testing.T) {
	client, closeFn := newTestFREDClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"observations":[{"date":"2026-07-29","value":"18.5"}]}`))
	})
	defer closeFn()

	fetcher := NewPercentSeriesFetcher(client, "vix", "VIXCLS", false)
	sample, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 18.5, sample.Value)
}

func TestYieldCurveFetcher_FailsOnDateMismatch(t *testing.T) {
	callCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		if callCount == 1 {
			w.Write([]byte(`{"observations":[{"date":"2026-07-29","value":"4.1"}]}`))
			return
		}
		w.Write([]byte(`{"observations":[{"date":"2026-07-28","value":"4.8"}]}`))
	}))
	defer server.Close()

	client := NewFREDClient("test-key", zerolog.Nop())
	client.baseURL = server.URL

	fetcher := NewYieldCurveFetcher(client, "yield_curve_10y_2y", "DGS10", "DGS2")
	_, err := fetcher.Fetch(context.Background())
	assert.Error(t, err)
}

func TestYieldCurveFetcher_ComputesSpread(t *testing.T) {
	callCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		if callCount == 1 {
			w.Write([]byte(`{"observations":[{"date":"2026-07-29","value":"4.1"}]}`))
			return
		}
		w.Write([]byte(`{"observations":[{"date":"2026-07-29","value":"4.8"}]}`))
	}))
	defer server.Close()

	client := NewFREDClient("test-key", zerolog.Nop())
	client.baseURL = server.URL

	fetcher := NewYieldCurveFetcher(client, "yield_curve_10y_2y", "DGS10", "DGS2")
	sample, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, -0.7, sample.Value, 1e-9)
}
