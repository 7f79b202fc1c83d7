package regime

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/pxi/internal/catalog"
	"github.com/aristath/pxi/internal/domain"
)

// FeatureWindowDays is the trailing window the detector draws features from.
const FeatureWindowDays = 90

// DayFeatures is one calendar date's feature row: z-score and rolling
// 30-day sigma for each selected indicator, in indicator order.
type DayFeatures struct {
	Date   string
	Values []float64 // concat(z_i, sigma30_i) per selected indicator; BuildFeatureMatrix emits only complete rows
	Valid  []bool    // per-value validity; BuildFeatureMatrix leaves it nil
}

// Detector runs the daily k-means regime classification over a configured
// feature subset of indicators.
type Detector struct {
	indicatorIDs []string // selected indicators, a subset of the full catalog
	log          zerolog.Logger
}

// New builds a Detector over the given indicator subset. Indicators lacking
// sufficient history are expected to be excluded by the caller before this
// point; the Detector itself just drops any date with a missing feature.
func New(indicatorIDs []string, log zerolog.Logger) *Detector {
	return &Detector{indicatorIDs: indicatorIDs, log: log.With().Str("component", "regime_detector").Logger()}
}

// BuildFeatureMatrix assembles per-date feature vectors from z-scores and
// rolling volatilities, keyed by date, and drops any date with a missing
// feature for any selected indicator.
func (d *Detector) BuildFeatureMatrix(zByIndicatorByDate map[string]map[string]float64, sigmaByIndicatorByDate map[string]map[string]float64) []DayFeatures {
	dateSet := make(map[string]bool)
	for _, byDate := range zByIndicatorByDate {
		for date := range byDate {
			dateSet[date] = true
		}
	}

	dates := make([]string, 0, len(dateSet))
	for date := range dateSet {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	var out []DayFeatures
	for _, date := range dates {
		values := make([]float64, 0, 2*len(d.indicatorIDs))
		complete := true
		for _, id := range d.indicatorIDs {
			z, zOK := zByIndicatorByDate[id][date]
			sigma, sOK := sigmaByIndicatorByDate[id][date]
			if !zOK || !sOK {
				complete = false
				break
			}
			values = append(values, z, sigma)
		}
		if !complete {
			continue
		}
		out = append(out, DayFeatures{Date: date, Values: values})
	}
	return out
}

// Run clusters the feature matrix with k-means and assigns deterministic
// stress-ordered labels, returning one RegimeRow per input date.
func (d *Detector) Run(features []DayFeatures) ([]domain.RegimeRow, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("regime detector: no complete feature rows in window")
	}

	rows := make([][]float64, len(features))
	for i, f := range features {
		rows[i] = f.Values
	}

	result := RunKMeans(rows, K)

	stressProxyIdx := d.stressProxyFeatureIndices()
	labels := labelCentroids(result.Centroids, stressProxyIdx)

	out := make([]domain.RegimeRow, 0, len(features))
	for i, f := range features {
		cluster := result.Assignments[i]
		distances := DistancesToCentroids(f.Values, result.Centroids)
		out = append(out, domain.RegimeRow{
			Date:          f.Date,
			Regime:        labels[cluster],
			ClusterID:     cluster,
			Features:      f.Values,
			Centroid:      result.Centroids[cluster],
			Probabilities: Probabilities(distances),
		})
	}
	return out, nil
}

// stressProxyFeatureIndices locates the z-score feature slots for the
// configured stress proxies (default VIX and HY OAS) inside the flattened
// feature vector (z_i, sigma_i pairs, in indicatorIDs order).
func (d *Detector) stressProxyFeatureIndices() []int {
	proxies := make(map[string]bool)
	for _, p := range catalog.StressProxyIDs {
		proxies[p] = true
	}
	var idx []int
	for i, id := range d.indicatorIDs {
		if proxies[id] {
			idx = append(idx, i*2) // the z-score slot for indicator i
		}
	}
	return idx
}

// labelCentroids sorts centroids ascending by stressScore (the sum of the
// stress-proxy z components) and assigns {Calm, Normal, Stress} in order,
// guaranteeing stable labels across runs given identical data and seed.
func labelCentroids(centroids [][]float64, stressProxyIdx []int) map[int]domain.DiscoveredRegimeLabel {
	type scored struct {
		cluster int
		score   float64
	}
	scores := make([]scored, len(centroids))
	for c, centroid := range centroids {
		var score float64
		for _, idx := range stressProxyIdx {
			if idx < len(centroid) {
				score += centroid[idx]
			}
		}
		scores[c] = scored{cluster: c, score: score}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score < scores[j].score })

	labelOrder := []domain.DiscoveredRegimeLabel{domain.DiscoveredCalm, domain.DiscoveredNormal, domain.DiscoveredStress}
	out := make(map[int]domain.DiscoveredRegimeLabel, len(centroids))
	for i, s := range scores {
		if i < len(labelOrder) {
			out[s.cluster] = labelOrder[i]
		} else {
			out[s.cluster] = domain.DiscoveredStress
		}
	}
	return out
}
