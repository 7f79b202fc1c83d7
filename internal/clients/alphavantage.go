package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/pxi/internal/domain"
)

const alphaVantageBaseURL = "https://www.alphavantage.co/query"

// AlphaVantageFetcher fetches the most recent daily close for a symbol.
type AlphaVantageFetcher struct {
	baseURL     string
	apiKey      string
	symbol      string
	indicatorID string
	httpClient  *http.Client
	log         zerolog.Logger
}

// NewAlphaVantageFetcher builds a daily-close fetcher for one symbol.
func NewAlphaVantageFetcher(apiKey, symbol, indicatorID string, log zerolog.Logger) *AlphaVantageFetcher {
	return &AlphaVantageFetcher{
		baseURL:     alphaVantageBaseURL,
		apiKey:      apiKey,
		symbol:      symbol,
		indicatorID: indicatorID,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		log:         log.With().Str("component", "alphavantage_client").Logger(),
	}
}

type alphaVantageDailyResponse struct {
	TimeSeries map[string]struct {
		Close string `json:"4. close"`
	} `json:"Time Series (Daily)"`
}

func (f *AlphaVantageFetcher) IndicatorID() string { return f.indicatorID }

func (f *AlphaVantageFetcher) Fetch(ctx context.Context) (domain.Sample, error) {
	url := fmt.Sprintf("%s?function=TIME_SERIES_DAILY&symbol=%s&apikey=%s", f.baseURL, f.symbol, f.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Sample{}, &domain.ProviderError{ProviderID: "alphavantage", Kind: domain.ProviderUnreachable, Err: err}
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return domain.Sample{}, &domain.ProviderError{ProviderID: "alphavantage", Kind: domain.ProviderUnreachable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Sample{}, &domain.ProviderError{ProviderID: "alphavantage", Kind: domain.ProviderRejected,
			Err: fmt.Errorf("unexpected status %d for symbol %s", resp.StatusCode, f.symbol)}
	}

	var parsed alphaVantageDailyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.Sample{}, &domain.ProviderError{ProviderID: "alphavantage", Kind: domain.TransformInvalid, Err: err}
	}
	if len(parsed.TimeSeries) == 0 {
		return domain.Sample{}, &domain.ProviderError{ProviderID: "alphavantage", Kind: domain.TransformInvalid,
			Err: fmt.Errorf("empty time series for symbol %s", f.symbol)}
	}

	dates := make([]string, 0, len(parsed.TimeSeries))
	for d := range parsed.TimeSeries {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	latestDate := dates[0]

	var close float64
	if _, err := fmt.Sscanf(parsed.TimeSeries[latestDate].Close, "%f", &close); err != nil {
		return domain.Sample{}, &domain.ProviderError{ProviderID: "alphavantage", Kind: domain.TransformInvalid, Err: err}
	}

	sourceTimestamp, err := time.Parse("2006-01-02", latestDate)
	if err != nil {
		return domain.Sample{}, &domain.ProviderError{ProviderID: "alphavantage", Kind: domain.TransformInvalid, Err: err}
	}

	return domain.Sample{
		IndicatorID:     f.indicatorID,
		Value:           close,
		Unit:            "native",
		SourceTimestamp: sourceTimestamp,
		IngestedAt:      time.Now().UTC(),
	}, nil
}
