// Package nn defines the minimal layer model that quantization operates on.
//
// # Layer Kinds
//
// Layers carry a closed Kind tag instead of relying on concrete-type
// comparison, so traversal and verification cannot be broken by wrapping
// or embedding:
//
//   - KindLinear: a dense leaf layer, compressible
//   - KindSequential: an ordered container of sublayers
//   - KindQuantized: a compressed replacement for a linear layer
//   - KindOther: anything else; treated as an opaque leaf
//
// Dense math is built on gonum (mat.Dense). Activations are row-major
// matrices of shape (batch, features); a single sample is a 1-row matrix.
package nn
