package codebook

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/robeld/codebook/artifact"
	"github.com/robeld/codebook/blobstore"
	"github.com/robeld/codebook/nn"
	"github.com/robeld/codebook/quantize"
)

// Quantizer rewires models into their weight-shared form and manages
// checkpoints of the result. A Quantizer is immutable after construction
// and safe for concurrent use.
type Quantizer struct {
	clusters int
	opts     options
}

// New creates a Quantizer that compresses each linear layer into a
// codebook of the given number of shared values.
func New(clusters int, optFns ...Option) (*Quantizer, error) {
	if err := validateClusters(clusters); err != nil {
		return nil, err
	}
	return &Quantizer{
		clusters: clusters,
		opts:     applyOptions(optFns),
	}, nil
}

// Clusters returns the configured codebook size.
func (q *Quantizer) Clusters() int { return q.clusters }

// QuantizeModel rebuilds the layer tree bottom-up, replacing every linear
// layer with its quantized form. The input tree is never mutated; callers
// receive a fresh tree sharing no layer objects with the original.
//
// Already-quantized layers and layers of unknown kind pass through
// unchanged (unknown layers are shared with the input tree, since they
// carry no weights to rewire). Any layer failure aborts the whole
// rewiring; no partially quantized tree is returned.
func (q *Quantizer) QuantizeModel(ctx context.Context, root nn.Layer) (nn.Layer, error) {
	start := time.Now()

	if root == nil {
		return nil, ErrNilModel
	}

	linear := nn.Count(root, nn.KindLinear)

	rebuilt, err := q.rebuild(ctx, root)
	if err == nil {
		err = Verify(root, rebuilt)
	}

	q.opts.metricsCollector.RecordQuantize(linear, time.Since(start), err)
	q.opts.logger.WithClusters(q.clusters).LogQuantize(ctx, linear, err)

	if err != nil {
		return nil, err
	}
	return rebuilt, nil
}

func (q *Quantizer) rebuild(ctx context.Context, layer nn.Layer) (nn.Layer, error) {
	switch l := layer.(type) {
	case *nn.Linear:
		return quantize.Quantize(ctx, l, q.clusters, func(o *quantize.Options) {
			o.InitMethod = q.opts.initMethod
			o.MaxIterations = q.opts.maxIterations
			o.Logger = q.layerLogger()
		})

	case *nn.Sequential:
		children := l.Layers()
		out := make([]nn.Layer, len(children))

		if q.opts.parallelism > 1 {
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(q.opts.parallelism)
			for i, child := range children {
				g.Go(func() error {
					built, err := q.rebuild(gctx, child)
					if err != nil {
						return err
					}
					out[i] = built
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return nil, err
			}
		} else {
			for i, child := range children {
				built, err := q.rebuild(ctx, child)
				if err != nil {
					return nil, err
				}
				out[i] = built
			}
		}

		return nn.NewSequential(out...), nil

	default:
		// Quantized and unknown layers carry no plain weight matrix.
		return layer, nil
	}
}

func (q *Quantizer) layerLogger() *slog.Logger {
	if q.opts.logger == nil {
		return nil
	}
	return q.opts.logger.Logger
}

// Verify checks that quantized is a faithful rewiring of original: same
// tree topology, every linear layer replaced by a quantized layer of the
// same shape, and nothing linear left behind.
func Verify(original, quantized nn.Layer) error {
	if original == nil || quantized == nil {
		return ErrNilModel
	}

	if n := nn.Count(quantized, nn.KindLinear); n > 0 {
		return &ErrResidualLinear{Count: n}
	}
	linear := nn.Count(original, nn.KindLinear)
	qn := nn.Count(quantized, nn.KindQuantized) - nn.Count(original, nn.KindQuantized)
	if qn != linear {
		return &ErrQuantizedCountMismatch{Quantized: qn, Linear: linear}
	}

	return verifyNode(original, quantized)
}

func verifyNode(original, quantized nn.Layer) error {
	switch o := original.(type) {
	case *nn.Linear:
		ql, ok := quantized.(*quantize.QuantizedLinear)
		if !ok {
			return &ErrStructureMismatch{Expected: nn.KindQuantized, Actual: quantized.Kind()}
		}
		or, oc := o.Weight().Dims()
		qr, qc := ql.Index().Dims()
		if or != qr || oc != qc {
			return &ErrShapeMismatch{
				Kind:         nn.KindQuantized,
				ExpectedRows: or, ExpectedCols: oc,
				ActualRows: qr, ActualCols: qc,
			}
		}
		return nil

	case *nn.Sequential:
		qs, ok := quantized.(*nn.Sequential)
		if !ok {
			return &ErrStructureMismatch{Expected: nn.KindSequential, Actual: quantized.Kind()}
		}
		oc, qc := o.Layers(), qs.Layers()
		if len(oc) != len(qc) {
			return &ErrQuantizedCountMismatch{Quantized: len(qc), Linear: len(oc)}
		}
		for i := range oc {
			if err := verifyNode(oc[i], qc[i]); err != nil {
				return err
			}
		}
		return nil

	default:
		if original.Kind() != quantized.Kind() {
			return &ErrStructureMismatch{Expected: original.Kind(), Actual: quantized.Kind()}
		}
		return nil
	}
}

// Save serializes a quantized model into the blob store under name.
// The write is atomic: readers never observe a partial checkpoint.
func (q *Quantizer) Save(ctx context.Context, store blobstore.BlobStore, name string, model nn.Layer) error {
	start := time.Now()

	written, err := q.save(ctx, store, name, model)

	q.opts.metricsCollector.RecordSave(written, time.Since(start), err)
	q.opts.logger.LogSave(ctx, name, written, err)

	return err
}

func (q *Quantizer) save(ctx context.Context, store blobstore.BlobStore, name string, model nn.Layer) (int64, error) {
	if model == nil {
		return 0, ErrNilModel
	}

	var buf bytes.Buffer
	if err := artifact.Encode(&buf, model, q.opts.compression); err != nil {
		return 0, err
	}

	if err := store.Put(ctx, name, buf.Bytes()); err != nil {
		return 0, err
	}
	return int64(buf.Len()), nil
}

// Load reads a checkpoint from the blob store and rebuilds the model.
func (q *Quantizer) Load(ctx context.Context, store blobstore.BlobStore, name string) (nn.Layer, error) {
	start := time.Now()

	model, read, err := q.load(ctx, store, name)

	q.opts.metricsCollector.RecordLoad(read, time.Since(start), err)

	layers := 0
	if model != nil {
		layers = nn.Count(model, nn.KindQuantized)
	}
	q.opts.logger.LogLoad(ctx, name, layers, err)

	if err != nil {
		return nil, err
	}
	return model, nil
}

func (q *Quantizer) load(ctx context.Context, store blobstore.BlobStore, name string) (nn.Layer, int64, error) {
	data, err := blobstore.ReadAll(ctx, store, name)
	if err != nil {
		return nil, 0, err
	}

	model, err := artifact.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, int64(len(data)), err
	}
	return model, int64(len(data)), nil
}
