package nn

import (
	"fmt"
	"iter"

	"gonum.org/v1/gonum/mat"
)

// Kind is a closed tag identifying how a layer participates in model
// traversal and quantization.
type Kind uint8

const (
	// KindOther marks layers the quantizer passes through untouched.
	KindOther Kind = iota
	// KindLinear marks dense layers eligible for quantization.
	KindLinear
	// KindSequential marks ordered containers of sublayers.
	KindSequential
	// KindQuantized marks layers produced by quantization.
	KindQuantized
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindLinear:
		return "linear"
	case KindSequential:
		return "sequential"
	case KindQuantized:
		return "quantized"
	default:
		return "other"
	}
}

// Layer is a node in a model tree.
type Layer interface {
	// Kind reports the layer's variant tag.
	Kind() Kind

	// Forward applies the layer to a (batch, in) activation matrix and
	// returns a (batch, out) matrix.
	Forward(x *mat.Dense) (*mat.Dense, error)
}

// ErrDimensionMismatch indicates an activation width that does not match
// the layer's input width.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d input features, got %d", e.Expected, e.Actual)
}

// Linear is a dense layer computing y = x·Wᵀ (+ bias).
// The weight matrix has shape (out, in).
type Linear struct {
	weight *mat.Dense
	bias   []float64 // nil if the layer has no bias
}

// NewLinear creates a zero-initialized linear layer without bias.
func NewLinear(out, in int) *Linear {
	return &Linear{weight: mat.NewDense(out, in, nil)}
}

// NewLinearFromWeights creates a linear layer from an existing weight
// matrix and optional bias (nil for none). The bias length must equal the
// weight row count.
func NewLinearFromWeights(weight *mat.Dense, bias []float64) (*Linear, error) {
	out, _ := weight.Dims()
	if bias != nil && len(bias) != out {
		return nil, fmt.Errorf("bias length %d does not match %d output features", len(bias), out)
	}
	return &Linear{weight: weight, bias: bias}, nil
}

// Kind returns KindLinear.
func (l *Linear) Kind() Kind { return KindLinear }

// Weight returns the layer's weight matrix. The matrix is shared, not
// copied; quantization treats it as read-only.
func (l *Linear) Weight() *mat.Dense { return l.weight }

// Bias returns the layer's bias vector, or nil.
func (l *Linear) Bias() []float64 { return l.bias }

// SetWeight replaces the weight matrix.
func (l *Linear) SetWeight(w *mat.Dense) { l.weight = w }

// Forward computes y = x·Wᵀ (+ bias broadcast over rows).
func (l *Linear) Forward(x *mat.Dense) (*mat.Dense, error) {
	return ApplyLinear(x, l.weight, l.bias)
}

// ApplyLinear is the shared dense transform used by both original and
// quantized layers: y = x·Wᵀ with an optional bias added to every row.
func ApplyLinear(x *mat.Dense, weight *mat.Dense, bias []float64) (*mat.Dense, error) {
	batch, in := x.Dims()
	out, win := weight.Dims()
	if in != win {
		return nil, &ErrDimensionMismatch{Expected: win, Actual: in}
	}

	y := mat.NewDense(batch, out, nil)
	y.Mul(x, weight.T())

	if bias != nil {
		for i := 0; i < batch; i++ {
			row := y.RawRowView(i)
			for j := range row {
				row[j] += bias[j]
			}
		}
	}

	return y, nil
}

// Sequential is an ordered container applying sublayers in sequence.
type Sequential struct {
	layers []Layer
}

// NewSequential creates a container from the given sublayers.
func NewSequential(layers ...Layer) *Sequential {
	return &Sequential{layers: layers}
}

// Kind returns KindSequential.
func (s *Sequential) Kind() Kind { return KindSequential }

// Layers returns the sublayers in order. The slice is shared; callers
// building new models should construct a new Sequential instead of
// mutating it.
func (s *Sequential) Layers() []Layer { return s.layers }

// Forward applies each sublayer in order.
func (s *Sequential) Forward(x *mat.Dense) (*mat.Dense, error) {
	var err error
	for _, l := range s.layers {
		x, err = l.Forward(x)
		if err != nil {
			return nil, err
		}
	}
	return x, nil
}

// Walk yields every layer in the tree rooted at root, depth-first,
// containers before their children. Layers of KindOther are opaque leaves.
func Walk(root Layer) iter.Seq[Layer] {
	return func(yield func(Layer) bool) {
		walk(root, yield)
	}
}

func walk(l Layer, yield func(Layer) bool) bool {
	if !yield(l) {
		return false
	}
	if l.Kind() == KindSequential {
		if seq, ok := l.(*Sequential); ok {
			for _, child := range seq.Layers() {
				if !walk(child, yield) {
					return false
				}
			}
		}
	}
	return true
}

// Count returns the number of layers of the given kind in the tree.
func Count(root Layer, kind Kind) int {
	n := 0
	for l := range Walk(root) {
		if l.Kind() == kind {
			n++
		}
	}
	return n
}
