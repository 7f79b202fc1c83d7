package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/pxi/internal/domain"
)

const fredBaseURL = "https://api.stlouisfed.org/fred/series/observations"

// FREDClient fetches the most recent observation for a FRED series and
// applies the canonical unit transform for percent-quoted series.
type FREDClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewFREDClient builds a FRED client with a 10s request timeout, matching
// the corpus's provider-client convention.
func NewFREDClient(apiKey string, log zerolog.Logger) *FREDClient {
	return &FREDClient{
		baseURL:    fredBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log.With().Str("component", "fred_client").Logger(),
	}
}

type fredObservationsResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// fetchLatestObservation returns the most recent non-missing (date, value)
// pair for a series. FRED encodes missing observations as ".".
func (c *FREDClient) fetchLatestObservation(ctx context.Context, seriesID string) (time.Time, float64, error) {
	url := fmt.Sprintf("%s?series_id=%s&api_key=%s&file_type=json&sort_order=desc&limit=5",
		c.baseURL, seriesID, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return time.Time{}, 0, &domain.ProviderError{ProviderID: "fred", Kind: domain.ProviderUnreachable, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return time.Time{}, 0, &domain.ProviderError{ProviderID: "fred", Kind: domain.ProviderUnreachable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return time.Time{}, 0, &domain.ProviderError{ProviderID: "fred", Kind: domain.ProviderRejected,
			Err: fmt.Errorf("unexpected status %d for series %s", resp.StatusCode, seriesID)}
	}

	var parsed fredObservationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return time.Time{}, 0, &domain.ProviderError{ProviderID: "fred", Kind: domain.TransformInvalid, Err: err}
	}

	for _, obs := range parsed.Observations {
		if strings.TrimSpace(obs.Value) == "." {
			continue
		}
		value, err := strconv.ParseFloat(obs.Value, 64)
		if err != nil {
			continue
		}
		date, err := time.Parse("2006-01-02", obs.Date)
		if err != nil {
			continue
		}
		return date, value, nil
	}

	return time.Time{}, 0, &domain.ProviderError{ProviderID: "fred", Kind: domain.TransformInvalid,
		Err: fmt.Errorf("no non-missing observation found for series %s", seriesID)}
}

// PercentSeriesFetcher fetches one FRED percent-quoted series and applies
// the percent-to-decimal unit transform.
type PercentSeriesFetcher struct {
	client      *FREDClient
	indicatorID string
	seriesID    string
	toDecimal   bool
}

// NewPercentSeriesFetcher builds a fetcher for a single FRED series.
// toDecimal controls whether the raw percent value is divided by 100; many
// FRED series (VIX, OAS spreads) are already displayed in the indicator's
// native unit and should pass toDecimal=false.
func NewPercentSeriesFetcher(client *FREDClient, indicatorID, seriesID string, toDecimal bool) *PercentSeriesFetcher {
	return &PercentSeriesFetcher{client: client, indicatorID: indicatorID, seriesID: seriesID, toDecimal: toDecimal}
}

func (f *PercentSeriesFetcher) IndicatorID() string { return f.indicatorID }

func (f *PercentSeriesFetcher) Fetch(ctx context.Context) (domain.Sample, error) {
	date, value, err := f.client.fetchLatestObservation(ctx, f.seriesID)
	if err != nil {
		return domain.Sample{}, err
	}
	if f.toDecimal {
		value /= 100
	}
	return domain.Sample{
		IndicatorID:     f.indicatorID,
		Value:           value,
		Unit:            "native",
		SourceTimestamp: date,
		IngestedAt:      time.Now().UTC(),
	}, nil
}

// YieldCurveFetcher computes a spread (e.g. 10y - 2y) from two separate
// FRED series. It fails if either leg is missing for the latest common
// date, per spec.
type YieldCurveFetcher struct {
	client       *FREDClient
	indicatorID  string
	longSeriesID string
	shortSeriesID string
}

// NewYieldCurveFetcher builds a two-leg spread fetcher.
func NewYieldCurveFetcher(client *FREDClient, indicatorID, longSeriesID, shortSeriesID string) *YieldCurveFetcher {
	return &YieldCurveFetcher{client: client, indicatorID: indicatorID, longSeriesID: longSeriesID, shortSeriesID: shortSeriesID}
}

func (f *YieldCurveFetcher) IndicatorID() string { return f.indicatorID }

func (f *YieldCurveFetcher) Fetch(ctx context.Context) (domain.Sample, error) {
	longDate, longValue, err := f.client.fetchLatestObservation(ctx, f.longSeriesID)
	if err != nil {
		return domain.Sample{}, err
	}
	shortDate, shortValue, err := f.client.fetchLatestObservation(ctx, f.shortSeriesID)
	if err != nil {
		return domain.Sample{}, err
	}
	if !longDate.Equal(shortDate) {
		return domain.Sample{}, &domain.ProviderError{
			ProviderID: "fred", Kind: domain.TransformInvalid,
			Err: fmt.Errorf("%s and %s have no common latest date (%s vs %s)",
				f.longSeriesID, f.shortSeriesID, longDate, shortDate),
		}
	}

	return domain.Sample{
		IndicatorID:     f.indicatorID,
		Value:           longValue - shortValue,
		Unit:            "percentage_points",
		SourceTimestamp: longDate,
		IngestedAt:      time.Now().UTC(),
	}, nil
}
