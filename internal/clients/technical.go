package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	talib "github.com/markcheno/go-talib"
	"github.com/rs/zerolog"

	"github.com/aristath/pxi/internal/domain"
)

const (
	alphaVantageDigitalCurrencyURL = "https://www.alphavantage.co/query"
	rsiPeriod                      = 14
	macdFastPeriod                 = 12
	macdSlowPeriod                 = 26
	macdSignalPeriod               = 9

	// Thresholds for translating momentum into a composite signal multiplier.
	// An overbought/oversold BTC move is treated as less informative about
	// systemic stress than a calm one, so its contribution is damped rather
	// than amplified.
	rsiOverboughtThreshold = 70.0
	rsiOversoldThreshold   = 30.0
	momentumMultiplier     = 0.75
)

// TechnicalSignalClient derives a signal multiplier override for the crypto
// return indicator from RSI and MACD computed over daily closes. It refreshes
// on its own twice-daily cadence (scheduler-driven), independent of the
// minute-level ingest tick.
type TechnicalSignalClient struct {
	baseURL     string
	apiKey      string
	symbol      string
	indicatorID string
	httpClient  *http.Client
	log         zerolog.Logger
}

// NewTechnicalSignalClient builds a momentum-derived signal override source
// for one crypto indicator.
func NewTechnicalSignalClient(apiKey, symbol, indicatorID string, log zerolog.Logger) *TechnicalSignalClient {
	return &TechnicalSignalClient{
		baseURL:     alphaVantageDigitalCurrencyURL,
		apiKey:      apiKey,
		symbol:      symbol,
		indicatorID: indicatorID,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		log:         log.With().Str("component", "technical_signal_client").Logger(),
	}
}

type digitalCurrencyDailyResponse struct {
	TimeSeries map[string]struct {
		Close string `json:"4a. close (USD)"`
	} `json:"Time Series (Digital Currency Daily)"`
}

func (c *TechnicalSignalClient) IndicatorID() string { return c.indicatorID }

// FetchOverrides pulls daily closes, computes RSI(14) and MACD(12,26,9), and
// returns a SignalOverrides carrying momentumMultiplier when RSI is in an
// extreme (overbought/oversold) state and the MACD line sits on the opposite
// side of its signal line (below it when overbought, above it when oversold).
// Otherwise it returns an empty SignalOverrides.
func (c *TechnicalSignalClient) FetchOverrides(ctx context.Context) (domain.SignalOverrides, error) {
	closes, err := c.fetchDailyCloses(ctx)
	if err != nil {
		return domain.SignalOverrides{}, err
	}
	if len(closes) < macdSlowPeriod+macdSignalPeriod {
		return domain.SignalOverrides{}, &domain.ProviderError{ProviderID: "alphavantage", Kind: domain.TransformInvalid,
			Err: fmt.Errorf("need at least %d closes for MACD, got %d", macdSlowPeriod+macdSignalPeriod, len(closes))}
	}

	rsiValues := talib.Rsi(closes, rsiPeriod)
	macdLine, signalLine, _ := talib.Macd(closes, macdFastPeriod, macdSlowPeriod, macdSignalPeriod)

	latestRSI := rsiValues[len(rsiValues)-1]
	latestMACD := macdLine[len(macdLine)-1]
	latestSignal := signalLine[len(signalLine)-1]

	extreme := latestRSI >= rsiOverboughtThreshold || latestRSI <= rsiOversoldThreshold
	crossedAgainstTrend := (latestRSI >= rsiOverboughtThreshold && latestMACD < latestSignal) ||
		(latestRSI <= rsiOversoldThreshold && latestMACD > latestSignal)

	if !extreme || !crossedAgainstTrend {
		return domain.SignalOverrides{}, nil
	}

	mult := momentumMultiplier
	c.log.Info().Float64("rsi", latestRSI).Float64("macd", latestMACD).Float64("macd_signal", latestSignal).
		Msg("momentum extreme detected, damping crypto signal contribution")
	return domain.SignalOverrides{SignalMultiplier: &mult}, nil
}

func (c *TechnicalSignalClient) fetchDailyCloses(ctx context.Context) ([]float64, error) {
	url := fmt.Sprintf("%s?function=DIGITAL_CURRENCY_DAILY&symbol=%s&market=USD&apikey=%s",
		c.baseURL, c.symbol, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &domain.ProviderError{ProviderID: "alphavantage", Kind: domain.ProviderUnreachable, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.ProviderError{ProviderID: "alphavantage", Kind: domain.ProviderUnreachable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.ProviderError{ProviderID: "alphavantage", Kind: domain.ProviderRejected,
			Err: fmt.Errorf("unexpected status %d for symbol %s", resp.StatusCode, c.symbol)}
	}

	var parsed digitalCurrencyDailyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &domain.ProviderError{ProviderID: "alphavantage", Kind: domain.TransformInvalid, Err: err}
	}
	if len(parsed.TimeSeries) == 0 {
		return nil, &domain.ProviderError{ProviderID: "alphavantage", Kind: domain.TransformInvalid,
			Err: fmt.Errorf("empty digital currency series for %s", c.symbol)}
	}

	dates := make([]string, 0, len(parsed.TimeSeries))
	for d := range parsed.TimeSeries {
		dates = append(dates, d)
	}
	sort.Strings(dates) // ascending, oldest first — talib expects chronological order

	closes := make([]float64, 0, len(dates))
	for _, d := range dates {
		var v float64
		if _, err := fmt.Sscanf(parsed.TimeSeries[d].Close, "%f", &v); err != nil {
			continue
		}
		closes = append(closes, v)
	}
	return closes, nil
}
