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

func TestTwelveDataFetcher_ReturnsPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"price":"104.25"}`))
	}))
	defer server.Close()

	fetcher := NewTwelveDataFetcher("test-key", "DXY", "usd_index", zerolog.Nop())
	fetcher.baseURL = server.URL
	sample, err := fetcher.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 104.25, sample.Value)
	assert.Equal(t, "usd_index", sample.IndicatorID)
}

func TestTwelveDataFetcher_FailsOnAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":400,"message":"symbol not found"}`))
	}))
	defer server.Close()

	fetcher := NewTwelveDataFetcher("test-key", "BOGUS", "usd_index", zerolog.Nop())
	fetcher.baseURL = server.URL
	_, err := fetcher.Fetch(context.Background())
	assert.Error(t, err)
}
