package kmeans

import (
	"context"
	"errors"
	"math"
)

// ErrBadSeed is returned when the seed slice is empty or larger than the
// number of values to cluster.
var ErrBadSeed = errors.New("kmeans: seed count must be in [1, len(values)]")

// Result holds the outcome of a clustering run.
type Result struct {
	// Centroids are the converged cluster centers, len == k.
	Centroids []float64
	// Assignments maps each input value to the index of its nearest
	// centroid, len == len(values).
	Assignments []int
	// Iterations is the number of Lloyd iterations executed.
	Iterations int
	// Converged reports whether assignments stabilized before maxIter.
	// A false value is not an error; the best-effort result is still valid.
	Converged bool
}

// Train runs Lloyd's algorithm over scalar values using the given seed
// centroids. Seeds are copied; the caller's slice is not mutated. The
// iteration count is bounded by maxIter and non-convergence within the
// bound returns the current best-effort result.
func Train(ctx context.Context, values []float64, seeds []float64, maxIter int) (*Result, error) {
	k := len(seeds)
	n := len(values)
	if k < 1 || k > n {
		return nil, ErrBadSeed
	}

	centroids := make([]float64, k)
	copy(centroids, seeds)

	assignments := make([]int, n)
	counts := make([]int, k)
	sums := make([]float64, k)

	res := &Result{Centroids: centroids, Assignments: assignments}

	for iter := 0; iter < maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res.Iterations = iter + 1

		// Assignment step
		changed := iter == 0
		for i, v := range values {
			best := Assign(v, centroids)
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		if !changed {
			res.Converged = true
			break
		}

		// Update step
		for j := range sums {
			sums[j] = 0
			counts[j] = 0
		}
		for i, v := range values {
			sums[assignments[i]] += v
			counts[assignments[i]]++
		}

		for j := 0; j < k; j++ {
			if counts[j] > 0 {
				centroids[j] = sums[j] / float64(counts[j])
			} else {
				// Reseed an empty cluster with the value farthest from its
				// current centroid. Deterministic, unlike random reseeding.
				centroids[j] = farthestValue(values, assignments, centroids)
			}
		}
	}

	// When the iteration bound cuts training short, the last update step
	// moved centroids after assignments were recorded. Realign so every
	// assignment is nearest-final-centroid.
	if !res.Converged {
		for i, v := range values {
			assignments[i] = Assign(v, centroids)
		}
	}

	return res, nil
}

// Assign returns the index of the centroid nearest to v.
// Ties resolve to the lowest index.
func Assign(v float64, centroids []float64) int {
	best := 0
	minDist := math.MaxFloat64

	for j, c := range centroids {
		d := math.Abs(v - c)
		if d < minDist {
			minDist = d
			best = j
		}
	}

	return best
}

func farthestValue(values []float64, assignments []int, centroids []float64) float64 {
	worst := values[0]
	maxDist := -1.0

	for i, v := range values {
		d := math.Abs(v - centroids[assignments[i]])
		if d > maxDist {
			maxDist = d
			worst = v
		}
	}

	return worst
}
