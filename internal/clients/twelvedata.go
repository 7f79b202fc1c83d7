package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/pxi/internal/domain"
)

const twelveDataBaseURL = "https://api.twelvedata.com/price"

// TwelveDataFetcher fetches the latest real-time price quote for a symbol.
// Used as the USD_INDEX provider since FRED's DXY series lags a full day.
type TwelveDataFetcher struct {
	baseURL     string
	apiKey      string
	symbol      string
	indicatorID string
	httpClient  *http.Client
	log         zerolog.Logger
}

// NewTwelveDataFetcher builds a real-time price fetcher for one symbol.
func NewTwelveDataFetcher(apiKey, symbol, indicatorID string, log zerolog.Logger) *TwelveDataFetcher {
	return &TwelveDataFetcher{
		baseURL:     twelveDataBaseURL,
		apiKey:      apiKey,
		symbol:      symbol,
		indicatorID: indicatorID,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		log:         log.With().Str("component", "twelvedata_client").Logger(),
	}
}

type twelveDataPriceResponse struct {
	Price   string `json:"price"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (f *TwelveDataFetcher) IndicatorID() string { return f.indicatorID }

func (f *TwelveDataFetcher) Fetch(ctx context.Context) (domain.Sample, error) {
	url := fmt.Sprintf("%s?symbol=%s&apikey=%s", f.baseURL, f.symbol, f.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Sample{}, &domain.ProviderError{ProviderID: "twelvedata", Kind: domain.ProviderUnreachable, Err: err}
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return domain.Sample{}, &domain.ProviderError{ProviderID: "twelvedata", Kind: domain.ProviderUnreachable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Sample{}, &domain.ProviderError{ProviderID: "twelvedata", Kind: domain.ProviderRejected,
			Err: fmt.Errorf("unexpected status %d for symbol %s", resp.StatusCode, f.symbol)}
	}

	var parsed twelveDataPriceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.Sample{}, &domain.ProviderError{ProviderID: "twelvedata", Kind: domain.TransformInvalid, Err: err}
	}
	if parsed.Code != 0 {
		return domain.Sample{}, &domain.ProviderError{ProviderID: "twelvedata", Kind: domain.ProviderRejected,
			Err: fmt.Errorf("twelvedata error %d: %s", parsed.Code, parsed.Message)}
	}

	price, err := strconv.ParseFloat(parsed.Price, 64)
	if err != nil {
		return domain.Sample{}, &domain.ProviderError{ProviderID: "twelvedata", Kind: domain.TransformInvalid, Err: err}
	}

	now := time.Now().UTC()
	return domain.Sample{
		IndicatorID:     f.indicatorID,
		Value:           price,
		Unit:            "native",
		SourceTimestamp: now,
		IngestedAt:      now,
	}, nil
}
