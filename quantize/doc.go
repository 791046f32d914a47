// Package quantize implements weight-clustering compression for linear
// layers, following the codebook-quantization scheme of Han et al. (2015).
//
// A layer's float weight matrix is replaced by a small trainable codebook
// of centroid values plus a frozen integer index matrix mapping every
// weight position to a codebook entry. Storage shrinks to log2(K) bits per
// weight while the codebook remains differentiable, so fine-tuning can
// recover accuracy lost to clustering.
//
// The trainable/frozen split is enforced at the type level: Codebook
// accepts gradients and SGD steps, IndexMatrix exposes no mutators.
package quantize
