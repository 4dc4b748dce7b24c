// Package cluster implements the centroid-based partitioning the
// segmentation engine runs on standardized RFM features: k-means with
// k-means++ seeding and deterministic multi-restart fitting, silhouette
// scoring, and automatic cluster-count selection.
package cluster

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// Model is a fitted k-means partitioner. Inertia is the within-cluster sum
// of squared distances from the fitting run; it is persisted with the model
// and reported as-is on inference-only runs.
type Model struct {
	K         int         `json:"k"`
	Centroids [][]float64 `json:"centroids"`
	Inertia   float64     `json:"inertia"`
}

// Config controls a k-means fit. Every restart r draws from a rand source
// seeded with Seed+r, so a fit over the same data with the same config is
// fully deterministic.
type Config struct {
	K        int
	MaxIter  int
	Restarts int
	Seed     int64
	Tol      float64
}

// Fit runs k-means with Restarts independent k-means++ initializations and
// keeps the run with the lowest inertia. Returns the fitted model and the
// per-row cluster labels of the best run.
func Fit(x [][]float64, cfg Config) (*Model, []int, error) {
	if cfg.K < 1 {
		return nil, nil, fmt.Errorf("invalid cluster count %d", cfg.K)
	}
	if len(x) < cfg.K {
		return nil, nil, fmt.Errorf("%d points cannot form %d clusters", len(x), cfg.K)
	}
	if cfg.MaxIter <= 0 {
		cfg.MaxIter = 300
	}
	if cfg.Restarts <= 0 {
		cfg.Restarts = 1
	}
	if cfg.Tol <= 0 {
		cfg.Tol = 1e-4
	}

	best := &Model{Inertia: math.Inf(1)}
	var bestLabels []int

	for r := 0; r < cfg.Restarts; r++ {
		rng := rand.New(rand.NewSource(cfg.Seed + int64(r)))
		centroids := seedPlusPlus(x, cfg.K, rng)
		labels, inertia := lloyd(x, centroids, cfg.MaxIter, cfg.Tol)

		if inertia < best.Inertia {
			best = &Model{K: cfg.K, Centroids: centroids, Inertia: inertia}
			bestLabels = labels
		}
	}

	return best, bestLabels, nil
}

// Predict assigns each row to its nearest centroid.
func (m *Model) Predict(x [][]float64) ([]int, error) {
	if len(m.Centroids) == 0 {
		return nil, fmt.Errorf("model is not fitted")
	}
	labels := make([]int, len(x))
	for i, p := range x {
		labels[i], _ = nearest(p, m.Centroids)
	}
	return labels, nil
}

// seedPlusPlus picks initial centroids with k-means++: the first uniformly,
// each next with probability proportional to squared distance from the
// nearest chosen centroid.
func seedPlusPlus(x [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	first := x[rng.Intn(len(x))]
	centroids = append(centroids, append([]float64(nil), first...))

	d2 := make([]float64, len(x))
	for len(centroids) < k {
		var sum float64
		for i, p := range x {
			_, d := nearest(p, centroids)
			d2[i] = d * d
			sum += d2[i]
		}

		if sum == 0 {
			// All points coincide with chosen centroids; fall back to
			// uniform picks.
			next := x[rng.Intn(len(x))]
			centroids = append(centroids, append([]float64(nil), next...))
			continue
		}

		target := rng.Float64() * sum
		var acc float64
		pick := len(x) - 1
		for i, d := range d2 {
			acc += d
			if acc >= target {
				pick = i
				break
			}
		}
		centroids = append(centroids, append([]float64(nil), x[pick]...))
	}
	return centroids
}

// lloyd iterates assign/update until centroids move less than tol or
// maxIter is reached. Mutates centroids in place; returns final labels and
// inertia.
func lloyd(x [][]float64, centroids [][]float64, maxIter int, tol float64) ([]int, float64) {
	k := len(centroids)
	dims := len(x[0])
	labels := make([]int, len(x))
	sums := make([][]float64, k)
	counts := make([]int, k)
	for j := range sums {
		sums[j] = make([]float64, dims)
	}

	var inertia float64
	for iter := 0; iter < maxIter; iter++ {
		inertia = 0
		for j := range sums {
			for d := range sums[j] {
				sums[j][d] = 0
			}
			counts[j] = 0
		}

		for i, p := range x {
			c, dist := nearest(p, centroids)
			labels[i] = c
			inertia += dist * dist
			floats.Add(sums[c], p)
			counts[c]++
		}

		shift := 0.0
		for j := range centroids {
			if counts[j] == 0 {
				// Re-seed an emptied cluster on the point farthest from
				// its current centroid.
				far, maxDist := 0, -1.0
				for i, p := range x {
					if d := floats.Distance(p, centroids[labels[i]], 2); d > maxDist {
						far, maxDist = i, d
					}
				}
				copy(centroids[j], x[far])
				shift = math.Inf(1)
				continue
			}
			for d := 0; d < dims; d++ {
				mean := sums[j][d] / float64(counts[j])
				shift += math.Abs(mean - centroids[j][d])
				centroids[j][d] = mean
			}
		}

		if shift < tol {
			break
		}
	}

	// Final pass so labels and inertia match the settled centroids.
	inertia = 0
	for i, p := range x {
		c, dist := nearest(p, centroids)
		labels[i] = c
		inertia += dist * dist
	}
	return labels, inertia
}

// nearest returns the index of and distance to the closest centroid.
func nearest(p []float64, centroids [][]float64) (int, float64) {
	bestIdx, bestDist := 0, math.Inf(1)
	for j, c := range centroids {
		if d := floats.Distance(p, c, 2); d < bestDist {
			bestIdx, bestDist = j, d
		}
	}
	return bestIdx, bestDist
}
