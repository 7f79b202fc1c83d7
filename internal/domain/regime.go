package domain

// DiscoveredRegimeLabel is the k-means cluster label, independent of the
// threshold-based Regime in composite.go.
type DiscoveredRegimeLabel string

const (
	DiscoveredCalm   DiscoveredRegimeLabel = "Calm"
	DiscoveredNormal DiscoveredRegimeLabel = "Normal"
	DiscoveredStress DiscoveredRegimeLabel = "Stress"
)

// RegimeRow is one day's k-means regime assignment.
type RegimeRow struct {
	Date          string // YYYY-MM-DD, UTC calendar date
	Regime        DiscoveredRegimeLabel
	ClusterID     int
	Features      []float64
	Centroid      []float64
	Probabilities []float64 // inverse-distance soft membership, one per centroid
}
