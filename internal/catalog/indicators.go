// Package catalog holds the static, process-lifetime indicator definitions.
// These are configuration, not data: they never change while the process
// runs, so they are a Go literal rather than a store table.
package catalog

import "github.com/aristath/pxi/internal/domain"

// Canonical indicator IDs, referenced by provider clients, the composite
// engine's cross-indicator validation rule, and the regime detector's
// stress-proxy selection.
const (
	IndicatorVIX        = "vix"
	IndicatorHYOAS       = "hy_oas"
	IndicatorIGOAS       = "ig_oas"
	IndicatorUnemployment = "u3"
	IndicatorUSDIndex    = "usd_index"
	IndicatorNFCI        = "nfci"
	IndicatorBTCReturn   = "btc_24h_return"
	IndicatorYieldCurve  = "yield_curve_10y_2y"
	IndicatorBreakeven10Y = "breakeven_10y"
)

// Indicators returns the fixed set of tracked series. Bounds, weights, and
// provider wiring are process-lifetime configuration.
func Indicators() []domain.IndicatorDefinition {
	return []domain.IndicatorDefinition{
		{
			ID: IndicatorVIX, Label: "CBOE Volatility Index",
			LowerBound: 9, UpperBound: 80, HardMin: 0, HardMax: 150,
			Weight: 1.0, Polarity: domain.PolarityPositive, RiskDirection: domain.HigherIsMoreRisk,
			ProviderID: "fred", ProviderSeriesID: "VIXCLS",
		},
		{
			ID: IndicatorHYOAS, Label: "ICE BofA High Yield OAS",
			LowerBound: 2, UpperBound: 15, HardMin: 0, HardMax: 30,
			Weight: 1.0, Polarity: domain.PolarityPositive, RiskDirection: domain.HigherIsMoreRisk,
			ProviderID: "fred", ProviderSeriesID: "BAMLH0A0HYM2",
		},
		{
			ID: IndicatorIGOAS, Label: "ICE BofA Investment Grade OAS",
			LowerBound: 0.5, UpperBound: 5, HardMin: 0, HardMax: 15,
			Weight: 0.7, Polarity: domain.PolarityPositive, RiskDirection: domain.HigherIsMoreRisk,
			ProviderID: "fred", ProviderSeriesID: "BAMLC0A0CM",
		},
		{
			ID: IndicatorUnemployment, Label: "U-3 Unemployment Rate",
			LowerBound: 3, UpperBound: 10, HardMin: 0, HardMax: 25,
			Weight: 0.8, Polarity: domain.PolarityPositive, RiskDirection: domain.HigherIsMoreRisk,
			ProviderID: "fred", ProviderSeriesID: "UNRATE",
		},
		{
			ID: IndicatorUSDIndex, Label: "Trade-Weighted USD Index",
			LowerBound: 90, UpperBound: 130, HardMin: 50, HardMax: 200,
			Weight: 0.6, Polarity: domain.PolarityPositive, RiskDirection: domain.HigherIsMoreRisk,
			ProviderID: "twelvedata", ProviderSeriesID: "DXY",
		},
		{
			ID: IndicatorNFCI, Label: "Chicago Fed National Financial Conditions Index",
			LowerBound: -1, UpperBound: 1, HardMin: -3, HardMax: 5,
			Weight: 1.0, Polarity: domain.PolarityPositive, RiskDirection: domain.HigherIsMoreRisk,
			ProviderID: "fred", ProviderSeriesID: "NFCI",
		},
		{
			ID: IndicatorBTCReturn, Label: "BTC 24h Return",
			LowerBound: -0.15, UpperBound: 0.15, HardMin: -1, HardMax: 1,
			Weight: 0.5, Polarity: domain.PolarityNegative, RiskDirection: domain.HigherIsLessRisk,
			ProviderID: "coingecko", ProviderSeriesID: "bitcoin",
		},
		{
			ID: IndicatorYieldCurve, Label: "10y-2y Treasury Yield Spread",
			LowerBound: -1, UpperBound: 2.5, HardMin: -3, HardMax: 5,
			Weight: 0.9, Polarity: domain.PolarityNegative, RiskDirection: domain.HigherIsMoreRisk,
			ProviderID: "fred", ProviderSeriesID: "DGS10-DGS2",
		},
		{
			ID: IndicatorBreakeven10Y, Label: "10y Breakeven Inflation Rate",
			LowerBound: 1.5, UpperBound: 3.5, HardMin: -1, HardMax: 8,
			Weight: 0.4, Polarity: domain.PolarityPositive, RiskDirection: domain.HigherIsMoreRisk,
			ProviderID: "fred", ProviderSeriesID: "T10YIE",
		},
	}
}

// ByID indexes Indicators() by ID for O(1) lookup.
func ByID() map[string]domain.IndicatorDefinition {
	out := make(map[string]domain.IndicatorDefinition)
	for _, ind := range Indicators() {
		out[ind.ID] = ind
	}
	return out
}

// StressProxyIDs names the two canonical stress proxies used by the regime
// detector's deterministic label assignment (stressScore = z_vix + z_hyOas).
// Configurable per spec §4.6; this is the default pair.
var StressProxyIDs = [2]string{IndicatorVIX, IndicatorHYOAS}
