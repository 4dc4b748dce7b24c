package cluster

import (
	"log"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/tinyseg/tinyseg/pkg/config"
)

// SelectK chooses a cluster count in [minK, maxK] (capped to one less than
// the number of points) using knee detection on the inertia-vs-k curve:
// normalize both axes to [0,1] and pick the k whose point lies farthest
// from the straight line joining the curve's endpoints. If k=4 scores
// within FourClusterBias of that maximum distance, k=4 wins — four-segment
// taxonomies are the most business-interpretable.
//
// The search never aborts the pipeline. Any numerical failure logs a
// warning and falls back to 4 clusters clamped to the valid range.
func SelectK(x [][]float64, minK, maxK int) int {
	maxPossible := maxK
	if n := len(x) - 1; n < maxPossible {
		maxPossible = n
	}
	if maxPossible < minK {
		log.Printf("⚠️  Dataset too small for cluster search, using %d clusters", minK)
		return minK
	}

	log.Printf("🔍 Searching for optimal clusters between %d and %d...", minK, maxPossible)

	ks := make([]int, 0, maxPossible-minK+1)
	for k := minK; k <= maxPossible; k++ {
		ks = append(ks, k)
	}

	// Each k fits independently with its own deterministic seed, so the
	// fits can run in parallel without affecting the result.
	inertias := make([]float64, len(ks))
	var g errgroup.Group
	for i, k := range ks {
		i, k := i, k
		g.Go(func() error {
			model, _, err := Fit(x, Config{
				K:        k,
				MaxIter:  config.KMeansMaxIter,
				Restarts: config.KMeansRestarts,
				Seed:     config.KMeansSeed,
				Tol:      config.KMeansTol,
			})
			if err != nil {
				return err
			}
			inertias[i] = model.Inertia
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Printf("⚠️  Cluster search failed (%v), falling back to %d clusters",
			err, config.FallbackClusters)
		return clamp(config.FallbackClusters, minK, maxPossible)
	}

	for i, k := range ks {
		log.Printf("   k=%d: inertia=%.2f", k, inertias[i])
	}

	if len(ks) < 3 {
		// Too few points on the curve for knee detection.
		return minK
	}

	distances, ok := kneeDistances(ks, inertias)
	if !ok {
		log.Printf("⚠️  Degenerate inertia curve, falling back to %d clusters",
			config.FallbackClusters)
		return clamp(config.FallbackClusters, minK, maxPossible)
	}

	maxIdx := 0
	for i, d := range distances {
		if d > distances[maxIdx] {
			maxIdx = i
		}
	}
	knee := ks[maxIdx]

	for i, k := range ks {
		if k == config.FallbackClusters &&
			distances[i] >= config.FourClusterBias*distances[maxIdx] {
			log.Printf("   ✓ Selecting 4 clusters (distance=%.4f vs max=%.4f)",
				distances[i], distances[maxIdx])
			return config.FallbackClusters
		}
	}

	log.Printf("   → Knee point at %d clusters (distance=%.4f)", knee, distances[maxIdx])
	return knee
}

// kneeDistances normalizes the inertia curve to the unit square and returns
// each point's perpendicular distance to the line joining the first and
// last points. Returns ok=false when the curve is flat in either axis.
func kneeDistances(ks []int, inertias []float64) ([]float64, bool) {
	xMin, xMax := float64(ks[0]), float64(ks[len(ks)-1])
	yMin, yMax := inertias[0], inertias[0]
	for _, v := range inertias {
		yMin = math.Min(yMin, v)
		yMax = math.Max(yMax, v)
	}
	if xMax == xMin || yMax == yMin {
		return nil, false
	}

	xn := make([]float64, len(ks))
	yn := make([]float64, len(ks))
	for i := range ks {
		xn[i] = (float64(ks[i]) - xMin) / (xMax - xMin)
		yn[i] = (inertias[i] - yMin) / (yMax - yMin)
	}

	x1, y1 := xn[0], yn[0]
	x2, y2 := xn[len(xn)-1], yn[len(yn)-1]
	denom := math.Hypot(y2-y1, x2-x1)

	distances := make([]float64, len(ks))
	for i := range ks {
		num := math.Abs((y2-y1)*xn[i] - (x2-x1)*yn[i] + x2*y1 - y2*x1)
		if denom > 0 {
			distances[i] = num / denom
		}
	}
	return distances, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
