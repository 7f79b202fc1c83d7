package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func digitalCurrencyFixture(closes map[string]float64) string {
	var b strings.Builder
	b.WriteString(`{"Time Series (Digital Currency Daily)":{`)
	first := true
	for date, close := range closes {
		if !first {
			b.WriteString(",")
		}
		first = false
		fmt.Fprintf(&b, `"%s":{"4a. close (USD)":"%.2f"}`, date, close)
	}
	b.WriteString(`}}`)
	return b.String()
}

func TestTechnicalSignalClient_FailsOnInsufficientHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(digitalCurrencyFixture(map[string]float64{
			"2026-07-28": 60000,
			"2026-07-29": 61000,
		})))
	}))
	defer server.Close()

	client := NewTechnicalSignalClient("test-key", "BTC", "btc_24h_return", zerolog.Nop())
	client.baseURL = server.URL
	_, err := client.FetchOverrides(context.Background())
	assert.Error(t, err)
}

func TestTechnicalSignalClient_ReturnsNoOverrideWhenNotExtreme(t *testing.T) {
	closes := map[string]float64{}
	base := 60000.0
	day := 0
	for i := 0; i < 40; i++ {
		day++
		date := fmt.Sprintf("2026-%02d-%02d", (day/28)+6, (day%28)+1)
		// gentle, non-trending oscillation -> RSI stays mid-range
		if i%2 == 0 {
			base += 10
		} else {
			base -= 10
		}
		closes[date] = base
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(digitalCurrencyFixture(closes)))
	}))
	defer server.Close()

	client := NewTechnicalSignalClient("test-key", "BTC", "btc_24h_return", zerolog.Nop())
	client.baseURL = server.URL
	overrides, err := client.FetchOverrides(context.Background())
	require.NoError(t, err)
	assert.Nil(t, overrides.SignalMultiplier)
}

func TestTechnicalSignalClient_FailsOnNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewTechnicalSignalClient("test-key", "BTC", "btc_24h_return", zerolog.Nop())
	client.baseURL = server.URL
	_, err := client.FetchOverrides(context.Background())
	assert.Error(t, err)
}
