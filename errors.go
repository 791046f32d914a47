package codebook

import (
	"errors"
	"fmt"

	"github.com/robeld/codebook/nn"
	"github.com/robeld/codebook/quantize"
)

var (
	// ErrInvalidClusters is returned when the configured cluster count is
	// not in [1, quantize.MaxClusters].
	ErrInvalidClusters = errors.New("cluster count out of range")

	// ErrNilModel is returned when a nil layer tree is passed to a model
	// operation.
	ErrNilModel = errors.New("model must not be nil")
)

// ErrResidualLinear indicates that a quantized model still contains plain
// linear layers. A complete rewiring leaves none behind.
type ErrResidualLinear struct {
	Count int
}

func (e *ErrResidualLinear) Error() string {
	return fmt.Sprintf("quantized model contains %d residual linear layer(s)", e.Count)
}

// ErrQuantizedCountMismatch indicates that the number of quantized layers
// in the rewired model does not match the number of linear layers in the
// original.
type ErrQuantizedCountMismatch struct {
	Quantized int
	Linear    int
}

func (e *ErrQuantizedCountMismatch) Error() string {
	return fmt.Sprintf("quantized layer count %d does not match original linear layer count %d", e.Quantized, e.Linear)
}

// ErrShapeMismatch indicates that a quantized layer's index matrix shape
// differs from the original weight matrix shape at the same tree position.
type ErrShapeMismatch struct {
	Kind         nn.Kind
	ExpectedRows int
	ExpectedCols int
	ActualRows   int
	ActualCols   int
}

func (e *ErrShapeMismatch) Error() string {
	return fmt.Sprintf("%s layer shape %dx%d does not match original %dx%d",
		e.Kind, e.ActualRows, e.ActualCols, e.ExpectedRows, e.ExpectedCols)
}

// ErrStructureMismatch indicates that the rewired tree's topology differs
// from the original (layer kind or child count changed).
type ErrStructureMismatch struct {
	Expected nn.Kind
	Actual   nn.Kind
}

func (e *ErrStructureMismatch) Error() string {
	return fmt.Sprintf("structure mismatch: expected %s, got %s", e.Expected, e.Actual)
}

func validateClusters(k int) error {
	if k < 1 || k > quantize.MaxClusters {
		return fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidClusters, k, quantize.MaxClusters)
	}
	return nil
}
