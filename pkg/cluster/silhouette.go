package cluster

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Silhouette computes the mean silhouette coefficient over all points, a
// separation score in [-1, 1]. Requires at least two distinct clusters;
// degenerate clusterings return an error so callers can substitute the -1
// sentinel instead of aborting.
//
// O(n²) in the number of points, which is fine for the per-customer row
// counts this pipeline sees.
func Silhouette(x [][]float64, labels []int) (float64, error) {
	if len(x) != len(labels) {
		return 0, fmt.Errorf("silhouette: %d points but %d labels", len(x), len(labels))
	}
	if len(x) < 2 {
		return 0, fmt.Errorf("silhouette: need at least 2 points, got %d", len(x))
	}

	sizes := make(map[int]int)
	for _, l := range labels {
		sizes[l]++
	}
	if len(sizes) < 2 {
		return 0, fmt.Errorf("silhouette: need at least 2 clusters, got %d", len(sizes))
	}

	var total float64
	for i, p := range x {
		// Mean distance to every cluster.
		dist := make(map[int]float64, len(sizes))
		for j, q := range x {
			if i == j {
				continue
			}
			dist[labels[j]] += floats.Distance(p, q, 2)
		}

		own := labels[i]
		if sizes[own] == 1 {
			// Singleton clusters score 0 by convention.
			continue
		}

		a := dist[own] / float64(sizes[own]-1)
		b := math.Inf(1)
		for l, sum := range dist {
			if l == own {
				continue
			}
			if mean := sum / float64(sizes[l]); mean < b {
				b = mean
			}
		}

		if m := math.Max(a, b); m > 0 {
			total += (b - a) / m
		}
	}

	return total / float64(len(x)), nil
}
