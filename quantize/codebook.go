package quantize

import "math"

// Codebook is the trainable centroid table. It is the only part of a
// quantized layer that receives gradients.
type Codebook struct {
	values []float64
	grads  []float64
}

// NewCodebook creates a codebook from centroid values. The slice is copied.
func NewCodebook(values []float64) *Codebook {
	v := make([]float64, len(values))
	copy(v, values)
	return &Codebook{
		values: v,
		grads:  make([]float64, len(values)),
	}
}

// Len returns the number of centroids K. The cardinality never changes
// after construction.
func (c *Codebook) Len() int { return len(c.values) }

// At returns the value of centroid i.
func (c *Codebook) At(i int) float64 { return c.values[i] }

// Values returns a copy of the centroid values.
func (c *Codebook) Values() []float64 {
	v := make([]float64, len(c.values))
	copy(v, c.values)
	return v
}

// Gradients returns a copy of the accumulated gradients.
func (c *Codebook) Gradients() []float64 {
	g := make([]float64, len(c.grads))
	copy(g, c.grads)
	return g
}

// Step applies one SGD update, values[i] -= lr * grads[i], and clears the
// accumulated gradients.
func (c *Codebook) Step(lr float64) {
	for i, g := range c.grads {
		c.values[i] -= lr * g
		c.grads[i] = 0
	}
}

// ZeroGrad clears accumulated gradients without updating values.
func (c *Codebook) ZeroGrad() {
	for i := range c.grads {
		c.grads[i] = 0
	}
}

func (c *Codebook) accumulate(i int, g float64) {
	c.grads[i] += g
}

// IndexMatrix is the frozen integer mapping from weight positions to
// codebook entries. It has the same shape as the weight matrix it
// replaced and exposes no mutators: indices never change and never
// receive gradients.
type IndexMatrix struct {
	rows  int
	cols  int
	codes []uint8
}

func newIndexMatrix(rows, cols int, codes []uint8) *IndexMatrix {
	return &IndexMatrix{rows: rows, cols: cols, codes: codes}
}

// Dims returns the matrix shape (rows, cols).
func (m *IndexMatrix) Dims() (int, int) { return m.rows, m.cols }

// Len returns the total number of entries.
func (m *IndexMatrix) Len() int { return len(m.codes) }

// At returns the codebook index stored at (i, j).
func (m *IndexMatrix) At(i, j int) int {
	return int(m.codes[i*m.cols+j])
}

// Codes returns a copy of the flattened index values in row-major order.
func (m *IndexMatrix) Codes() []uint8 {
	c := make([]uint8, len(m.codes))
	copy(c, m.codes)
	return c
}

// BitsPerWeight returns the index width in bits for a codebook of size k,
// i.e. ceil(log2(k)) with a minimum of 1.
func BitsPerWeight(k int) int {
	if k <= 2 {
		return 1
	}
	return int(math.Ceil(math.Log2(float64(k))))
}
