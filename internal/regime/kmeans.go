// Package regime implements the daily k-means regime detector: feature
// extraction over the trailing window, a seeded deterministic k-means run,
// and the stress-ordered label assignment that keeps labels stable across
// runs given identical data and seed.
package regime

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Seed is the fixed k-means seed that guarantees reproducible centroids for
// identical input data.
const Seed = 42

// K is the fixed cluster count.
const K = 3

// MaxIterations bounds Lloyd's algorithm; in practice it converges well
// before this on the PXI feature set.
const MaxIterations = 300

// KMeansResult holds the converged centroids and per-row cluster
// assignments.
type KMeansResult struct {
	Centroids   [][]float64
	Assignments []int
}

// RunKMeans clusters rows (each a feature vector of equal length) into k
// clusters using standard Euclidean distance and a fixed seed, so identical
// input always produces identical output. No third-party k-means
// implementation exists anywhere in the reference corpus (see DESIGN.md);
// this is a from-scratch Lloyd's algorithm built on gonum/mat vector ops.
func RunKMeans(rows [][]float64, k int) KMeansResult {
	n := len(rows)
	if n == 0 || k <= 0 {
		return KMeansResult{}
	}
	if k > n {
		k = n
	}
	dim := len(rows[0])

	rng := rand.New(rand.NewSource(Seed))
	centroids := initCentroids(rows, k, rng)
	assignments := make([]int, n)

	for iter := 0; iter < MaxIterations; iter++ {
		changed := false
		for i, row := range rows {
			best, bestDist := 0, math.Inf(1)
			for c, centroid := range centroids {
				d := euclidean(row, centroid)
				if d < bestDist {
					best, bestDist = c, d
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		newCentroids := make([][]float64, k)
		counts := make([]int, k)
		for c := range newCentroids {
			newCentroids[c] = make([]float64, dim)
		}
		for i, row := range rows {
			c := assignments[i]
			counts[c]++
			for d := 0; d < dim; d++ {
				newCentroids[c][d] += row[d]
			}
		}
		for c := range newCentroids {
			if counts[c] == 0 {
				newCentroids[c] = centroids[c] // keep stale centroid for empty clusters
				continue
			}
			for d := 0; d < dim; d++ {
				newCentroids[c][d] /= float64(counts[c])
			}
		}
		centroids = newCentroids

		if !changed && iter > 0 {
			break
		}
	}

	return KMeansResult{Centroids: centroids, Assignments: assignments}
}

// DistancesToCentroids returns the Euclidean distance from row to every
// centroid, in centroid order — usable as a soft-membership vector once
// inverted and normalized by the caller.
func DistancesToCentroids(row []float64, centroids [][]float64) []float64 {
	out := make([]float64, len(centroids))
	for i, c := range centroids {
		out[i] = euclidean(row, c)
	}
	return out
}

// Probabilities converts a distance vector to normalized inverse-distance
// soft-membership probabilities.
func Probabilities(distances []float64) []float64 {
	inv := make([]float64, len(distances))
	var sum float64
	for i, d := range distances {
		if d < 1e-9 {
			d = 1e-9
		}
		inv[i] = 1 / d
		sum += inv[i]
	}
	if sum == 0 {
		return inv
	}
	for i := range inv {
		inv[i] /= sum
	}
	return inv
}

func initCentroids(rows [][]float64, k int, rng *rand.Rand) [][]float64 {
	idx := rng.Perm(len(rows))[:k]
	centroids := make([][]float64, k)
	for i, rowIdx := range idx {
		c := make([]float64, len(rows[rowIdx]))
		copy(c, rows[rowIdx])
		centroids[i] = c
	}
	return centroids
}

func euclidean(a, b []float64) float64 {
	va := mat.NewVecDense(len(a), a)
	vb := mat.NewVecDense(len(b), b)
	diff := mat.NewVecDense(len(a), nil)
	diff.SubVec(va, vb)
	return mat.Norm(diff, 2)
}
