package kmeans

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrain(t *testing.T) {
	ctx := context.Background()
	values := []float64{0, 0.1, -0.1, 10, 10.1, 9.9}
	seeds := []float64{0.5, 9.5}

	res, err := Train(ctx, values, seeds, 100)
	require.NoError(t, err)
	require.Len(t, res.Centroids, 2)
	require.Len(t, res.Assignments, len(values))
	assert.True(t, res.Converged)

	// First half clusters together, second half clusters together.
	assert.Equal(t, res.Assignments[0], res.Assignments[1])
	assert.Equal(t, res.Assignments[0], res.Assignments[2])
	assert.Equal(t, res.Assignments[3], res.Assignments[4])
	assert.NotEqual(t, res.Assignments[0], res.Assignments[3])

	assert.InDelta(t, 0.0, res.Centroids[res.Assignments[0]], 1e-9)
	assert.InDelta(t, 10.0, res.Centroids[res.Assignments[3]], 1e-9)
}

func TestTrain_SeedsNotMutated(t *testing.T) {
	seeds := []float64{0, 5}
	_, err := Train(context.Background(), []float64{1, 2, 3, 4}, seeds, 10)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 5}, seeds)
}

func TestTrain_BadSeed(t *testing.T) {
	_, err := Train(context.Background(), []float64{1, 2}, nil, 10)
	assert.ErrorIs(t, err, ErrBadSeed)

	_, err = Train(context.Background(), []float64{1, 2}, []float64{0, 1, 2}, 10)
	assert.ErrorIs(t, err, ErrBadSeed)
}

func TestTrain_IterationBound(t *testing.T) {
	// A single iteration is allowed; non-convergence is not an error.
	values := []float64{0, 1, 2, 3, 4, 5, 6, 7}
	res, err := Train(context.Background(), values, []float64{0, 0.5}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Iterations)
	for _, a := range res.Assignments {
		assert.GreaterOrEqual(t, a, 0)
		assert.Less(t, a, 2)
	}
}

func TestTrain_BoundCutAssignmentsMatchCentroids(t *testing.T) {
	// With a single iteration the update step moves the centroids after
	// the assignment pass: seeds [3, 7] assign 5.5 to cluster 1, then the
	// means become [2.8, 9.1], under which 5.5 is nearest cluster 0. The
	// returned assignments must reflect the returned centroids.
	values := []float64{0, 4, 4.4, 5.5, 10, 10, 10, 10}
	res, err := Train(context.Background(), values, []float64{3, 7}, 1)
	require.NoError(t, err)
	assert.False(t, res.Converged)

	assert.InDelta(t, 2.8, res.Centroids[0], 1e-9)
	assert.InDelta(t, 9.1, res.Centroids[1], 1e-9)

	assert.Equal(t, 0, res.Assignments[3])
	for i, v := range values {
		assert.Equal(t, Assign(v, res.Centroids), res.Assignments[i])
	}
}

func TestTrain_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	values := make([]float64, 1000)
	for i := range values {
		values[i] = float64(i)
	}

	_, err := Train(ctx, values, []float64{0, 500}, 1000)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrain_EmptyClusterReseed(t *testing.T) {
	// Both seeds sit on top of each other; ties send every value to seed 0,
	// leaving cluster 1 empty. The reseed must keep both centroids valid.
	values := []float64{1, 1, 1, 8}
	res, err := Train(context.Background(), values, []float64{1, 1}, 50)
	require.NoError(t, err)
	require.Len(t, res.Centroids, 2)
	for _, a := range res.Assignments {
		assert.GreaterOrEqual(t, a, 0)
		assert.Less(t, a, 2)
	}
}

func TestAssign(t *testing.T) {
	centroids := []float64{0, 10, 20}

	assert.Equal(t, 0, Assign(1, centroids))
	assert.Equal(t, 1, Assign(9, centroids))
	assert.Equal(t, 2, Assign(100, centroids))
	// Equidistant values resolve to the lower index.
	assert.Equal(t, 0, Assign(5, centroids))
}
