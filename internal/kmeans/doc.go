// Package kmeans implements scalar k-means clustering for codebook training.
//
// Weight clustering operates on individual float values rather than
// vectors, so the implementation is specialized for one-dimensional points
// seeded with caller-provided centroids.
package kmeans
