package quantize

import (
	"gonum.org/v1/gonum/floats"
)

// InitMethod names a centroid initialization policy.
type InitMethod string

// MethodLinear spaces initial centroids evenly across the weight range.
// Han et al. (2015) found linear initialization to outperform density and
// random initialization for weight clustering.
const MethodLinear InitMethod = "linear"

// initScale shifts the spacing arithmetic away from the subnormal range of
// typical weight distributions to reduce precision loss. Values are scaled
// up before spacing and rescaled after.
const initScale = 10.0

// InitCentroids computes K initial scalar centroid positions for the given
// flattened weight values. The result is deterministic for identical
// inputs. An unknown method fails with ErrUnsupportedInitMethod.
func InitCentroids(values []float64, k int, method InitMethod) ([]float64, error) {
	if method != MethodLinear {
		return nil, &ErrUnsupportedInitMethod{Method: method}
	}
	if k < 1 || len(values) == 0 {
		return nil, &ErrInvalidClusterCount{K: k, Max: len(values)}
	}

	minWeight := floats.Min(values) * initScale
	maxWeight := floats.Max(values) * initScale

	// K evenly spaced points strictly inside [min, max]: divide the range
	// into K+1 intervals and skip the outermost margins.
	spacing := (maxWeight - minWeight) / float64(k+1)

	centroids := make([]float64, k)
	if k == 1 {
		centroids[0] = minWeight + spacing
	} else {
		floats.Span(centroids, minWeight+spacing, maxWeight-spacing)
	}

	floats.Scale(1/initScale, centroids)

	return centroids, nil
}
