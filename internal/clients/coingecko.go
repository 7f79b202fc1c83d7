package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/pxi/internal/domain"
)

// CoinGeckoFetcher computes the 24h return for a coin from two daily close
// prices.
type CoinGeckoFetcher struct {
	baseURL     string
	coinID      string
	indicatorID string
	httpClient  *http.Client
	log         zerolog.Logger
}

// NewCoinGeckoFetcher builds a crypto 24h-return fetcher.
func NewCoinGeckoFetcher(baseURL, coinID, indicatorID string, log zerolog.Logger) *CoinGeckoFetcher {
	return &CoinGeckoFetcher{
		baseURL:     baseURL,
		coinID:      coinID,
		indicatorID: indicatorID,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		log:         log.With().Str("component", "coingecko_client").Logger(),
	}
}

type coingeckoMarketChartResponse struct {
	Prices [][2]float64 `json:"prices"` // [unixMillis, price]
}

func (f *CoinGeckoFetcher) IndicatorID() string { return f.indicatorID }

func (f *CoinGeckoFetcher) Fetch(ctx context.Context) (domain.Sample, error) {
	url := fmt.Sprintf("%s/coins/%s/market_chart?vs_currency=usd&days=2&interval=daily", f.baseURL, f.coinID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Sample{}, &domain.ProviderError{ProviderID: "coingecko", Kind: domain.ProviderUnreachable, Err: err}
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return domain.Sample{}, &domain.ProviderError{ProviderID: "coingecko", Kind: domain.ProviderUnreachable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Sample{}, &domain.ProviderError{ProviderID: "coingecko", Kind: domain.ProviderRejected,
			Err: fmt.Errorf("unexpected status %d for coin %s", resp.StatusCode, f.coinID)}
	}

	var parsed coingeckoMarketChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.Sample{}, &domain.ProviderError{ProviderID: "coingecko", Kind: domain.TransformInvalid, Err: err}
	}
	if len(parsed.Prices) < 2 {
		return domain.Sample{}, &domain.ProviderError{ProviderID: "coingecko", Kind: domain.TransformInvalid,
			Err: fmt.Errorf("fewer than 2 daily closes returned for %s", f.coinID)}
	}

	latest := parsed.Prices[len(parsed.Prices)-1]
	previous := parsed.Prices[len(parsed.Prices)-2]
	if previous[1] == 0 {
		return domain.Sample{}, &domain.ProviderError{ProviderID: "coingecko", Kind: domain.TransformInvalid,
			Err: fmt.Errorf("previous close is zero for %s", f.coinID)}
	}

	returnPct := (latest[1] - previous[1]) / previous[1]
	sourceTimestamp := time.UnixMilli(int64(latest[0])).UTC()

	return domain.Sample{
		IndicatorID:     f.indicatorID,
		Value:           returnPct,
		Unit:            "fraction",
		SourceTimestamp: sourceTimestamp,
		IngestedAt:      time.Now().UTC(),
	}, nil
}
