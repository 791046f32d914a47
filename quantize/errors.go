package quantize

import "fmt"

// ErrUnsupportedInitMethod indicates an unknown centroid initialization
// policy. It is returned before any clustering is attempted.
type ErrUnsupportedInitMethod struct {
	Method InitMethod
}

func (e *ErrUnsupportedInitMethod) Error() string {
	return fmt.Sprintf("unsupported centroid init method: %q", string(e.Method))
}

// ErrInvalidClusterCount indicates a cluster count outside the supported
// range. Max is the upper bound that was violated: the uint8 code limit or
// the number of weights in the layer, whichever applies.
type ErrInvalidClusterCount struct {
	K   int
	Max int
}

func (e *ErrInvalidClusterCount) Error() string {
	return fmt.Sprintf("invalid cluster count %d: must be in [1, %d]", e.K, e.Max)
}
