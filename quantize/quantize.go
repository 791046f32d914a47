package quantize

import (
	"context"
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/robeld/codebook/internal/kmeans"
	"github.com/robeld/codebook/nn"
)

// MaxClusters is the largest supported codebook size. Indices are stored
// as uint8 codes, so a codebook cannot exceed 256 entries.
const MaxClusters = 256

// DefaultMaxIterations bounds the k-means refinement of initial centroids.
// Non-convergence within the bound is accepted, not an error.
const DefaultMaxIterations = 100

// Options configures layer quantization.
type Options struct {
	// InitMethod selects the centroid initialization policy.
	InitMethod InitMethod

	// MaxIterations bounds the k-means iteration count.
	MaxIterations int

	// Logger receives clustering diagnostics at debug level. Nil disables
	// logging.
	Logger *slog.Logger
}

// QuantizedLinear replaces a linear layer's weight matrix with a frozen
// index matrix and a trainable codebook. The layer topology (shape, bias)
// is immutable for the object's lifetime; only codebook values evolve.
//
// The original bias, if any, is carried through the forward pass
// unquantized. Bias quantization is out of scope.
type QuantizedLinear struct {
	index    *IndexMatrix
	codebook *Codebook
	bias     []float64

	// postings[c] holds the flat weight positions assigned to centroid c.
	// Used as the scatter map for gradient accumulation and for cluster
	// usage statistics.
	postings []*roaring.Bitmap
}

// Quantize compresses a linear layer into a QuantizedLinear with a
// codebook of k centroids. Construction-time failures abort layer
// creation; no partial layer is ever returned.
func Quantize(ctx context.Context, layer *nn.Linear, k int, optFns ...func(*Options)) (*QuantizedLinear, error) {
	opts := Options{
		InitMethod:    MethodLinear,
		MaxIterations: DefaultMaxIterations,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	rows, cols := layer.Weight().Dims()
	n := rows * cols

	if k < 1 || k > MaxClusters {
		return nil, &ErrInvalidClusterCount{K: k, Max: MaxClusters}
	}
	if k > n {
		return nil, &ErrInvalidClusterCount{K: k, Max: n}
	}

	// Flatten the weight tensor to scalar values, row-major.
	values := make([]float64, n)
	w := layer.Weight()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			values[i*cols+j] = w.At(i, j)
		}
	}

	seeds, err := InitCentroids(values, k, opts.InitMethod)
	if err != nil {
		return nil, err
	}

	res, err := kmeans.Train(ctx, values, seeds, opts.MaxIterations)
	if err != nil {
		return nil, err
	}

	if opts.Logger != nil {
		opts.Logger.Debug("layer quantized",
			slog.Int("weights", n),
			slog.Int("clusters", k),
			slog.Int("iterations", res.Iterations),
			slog.Bool("converged", res.Converged),
		)
	}

	codes := make([]uint8, n)
	postings := make([]*roaring.Bitmap, k)
	for c := range postings {
		postings[c] = roaring.New()
	}
	for i, a := range res.Assignments {
		codes[i] = uint8(a)
		postings[a].Add(uint32(i))
	}

	var bias []float64
	if b := layer.Bias(); b != nil {
		bias = make([]float64, len(b))
		copy(bias, b)
	}

	return &QuantizedLinear{
		index:    newIndexMatrix(rows, cols, codes),
		codebook: NewCodebook(res.Centroids),
		bias:     bias,
		postings: postings,
	}, nil
}

// Restore rebuilds a QuantizedLinear from previously stored parts, e.g.
// when loading a checkpoint. codes must be row-major with rows*cols
// entries, every code below len(centroids), and bias either nil or of
// length rows. All slices are copied.
func Restore(rows, cols int, codes []uint8, centroids []float64, bias []float64) (*QuantizedLinear, error) {
	k := len(centroids)
	if k < 1 || k > MaxClusters {
		return nil, &ErrInvalidClusterCount{K: k, Max: MaxClusters}
	}
	if len(codes) != rows*cols {
		return nil, &nn.ErrDimensionMismatch{Expected: rows * cols, Actual: len(codes)}
	}
	if bias != nil && len(bias) != rows {
		return nil, &nn.ErrDimensionMismatch{Expected: rows, Actual: len(bias)}
	}

	cp := make([]uint8, len(codes))
	postings := make([]*roaring.Bitmap, k)
	for c := range postings {
		postings[c] = roaring.New()
	}
	for i, code := range codes {
		if int(code) >= k {
			return nil, &ErrInvalidClusterCount{K: int(code), Max: k - 1}
		}
		cp[i] = code
		postings[code].Add(uint32(i))
	}

	var biasCopy []float64
	if bias != nil {
		biasCopy = make([]float64, len(bias))
		copy(biasCopy, bias)
	}

	return &QuantizedLinear{
		index:    newIndexMatrix(rows, cols, cp),
		codebook: NewCodebook(centroids),
		bias:     biasCopy,
		postings: postings,
	}, nil
}

// Kind returns nn.KindQuantized.
func (q *QuantizedLinear) Kind() nn.Kind { return nn.KindQuantized }

// Index returns the frozen index matrix.
func (q *QuantizedLinear) Index() *IndexMatrix { return q.index }

// Codebook returns the trainable centroid table.
func (q *QuantizedLinear) Codebook() *Codebook { return q.codebook }

// Bias returns the pass-through bias vector, or nil.
func (q *QuantizedLinear) Bias() []float64 { return q.bias }

// Reconstruct gathers the current codebook values through the index matrix
// into a dense weight matrix of the original shape.
func (q *QuantizedLinear) Reconstruct() *mat.Dense {
	rows, cols := q.index.Dims()
	data := make([]float64, rows*cols)
	for i, code := range q.index.codes {
		data[i] = q.codebook.values[code]
	}
	return mat.NewDense(rows, cols, data)
}

// Forward computes y = x·Wᵀ (+ bias) where W is reconstructed from the
// codebook. Differentiation flows to codebook values only; see Backward.
func (q *QuantizedLinear) Forward(x *mat.Dense) (*mat.Dense, error) {
	return nn.ApplyLinear(x, q.Reconstruct(), q.bias)
}

// Backward accumulates codebook gradients for the loss gradient dy at
// input x and returns the gradient with respect to x for upstream layers.
//
// The dense weight gradient is dW = dyᵀ·x; the gradient of centroid c is
// the sum of dW over all positions assigned to c. Index values receive no
// gradient.
func (q *QuantizedLinear) Backward(x, dy *mat.Dense) (*mat.Dense, error) {
	batch, in := x.Dims()
	dyRows, out := dy.Dims()
	rows, cols := q.index.Dims()
	if in != cols {
		return nil, &nn.ErrDimensionMismatch{Expected: cols, Actual: in}
	}
	if out != rows || dyRows != batch {
		return nil, &nn.ErrDimensionMismatch{Expected: rows, Actual: out}
	}

	var dw mat.Dense
	dw.Mul(dy.T(), x)

	flat := dw.RawMatrix()
	for c, bm := range q.postings {
		var sum float64
		it := bm.Iterator()
		for it.HasNext() {
			pos := int(it.Next())
			sum += flat.Data[(pos/cols)*flat.Stride+(pos%cols)]
		}
		q.codebook.accumulate(c, sum)
	}

	var dx mat.Dense
	dx.Mul(dy, q.Reconstruct())

	return &dx, nil
}

// Step applies one SGD update to the codebook and clears its gradients.
func (q *QuantizedLinear) Step(lr float64) {
	q.codebook.Step(lr)
}

// Stats describes the storage profile of a quantized layer.
type Stats struct {
	// Weights is the number of entries in the index matrix.
	Weights int
	// Clusters is the codebook size K.
	Clusters int
	// BitsPerWeight is the index width, ceil(log2(K)).
	BitsPerWeight int
	// CompressionRatio compares float64 weight storage against index plus
	// codebook storage.
	CompressionRatio float64
	// ClusterSizes holds the number of weights assigned to each centroid.
	ClusterSizes []uint64
}

// Stats reports the layer's compression profile.
func (q *QuantizedLinear) Stats() Stats {
	n := q.index.Len()
	k := q.codebook.Len()
	bits := BitsPerWeight(k)

	sizes := make([]uint64, k)
	for c, bm := range q.postings {
		sizes[c] = bm.GetCardinality()
	}

	originalBits := float64(n) * 64
	compressedBits := float64(n)*float64(bits) + float64(k)*64

	return Stats{
		Weights:          n,
		Clusters:         k,
		BitsPerWeight:    bits,
		CompressionRatio: originalBits / compressedBits,
		ClusterSizes:     sizes,
	}
}
