package codebook

import (
	"log/slog"

	"github.com/robeld/codebook/artifact"
	"github.com/robeld/codebook/quantize"
)

type options struct {
	initMethod       quantize.InitMethod
	maxIterations    int
	parallelism      int
	compression      artifact.Compression
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures Quantizer behavior.
type Option func(*options)

// WithInitMethod configures the centroid initialization policy.
//
// The default is quantize.MethodLinear, which seeds centroids evenly
// across the weight range. Unsupported methods fail at quantization time.
func WithInitMethod(m quantize.InitMethod) Option {
	return func(o *options) {
		o.initMethod = m
	}
}

// WithMaxIterations bounds the k-means refinement per layer.
// Values <= 0 fall back to quantize.DefaultMaxIterations.
func WithMaxIterations(n int) Option {
	return func(o *options) {
		o.maxIterations = n
	}
}

// WithParallelism configures how many sibling layers are quantized
// concurrently during model rewiring.
//
// Layers are independent, so siblings under the same container can be
// clustered in parallel. Values <= 1 keep rewiring sequential (default).
func WithParallelism(n int) Option {
	return func(o *options) {
		o.parallelism = n
	}
}

// WithCompression configures the block compression used for saved
// checkpoints. The default is artifact.CompressionZSTD.
func WithCompression(c artifact.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &codebook.BasicMetricsCollector{}
//	q, _ := codebook.New(16, codebook.WithMetricsCollector(metrics))
//	// ... use q ...
//	stats := metrics.GetStats()
//	fmt.Printf("Quantized layers: %d\n", stats.QuantizeLayers)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := codebook.NewJSONLogger(slog.LevelInfo)
//	q, _ := codebook.New(16, codebook.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		initMethod:       quantize.MethodLinear,
		maxIterations:    quantize.DefaultMaxIterations,
		parallelism:      1,
		compression:      artifact.CompressionZSTD,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.maxIterations <= 0 {
		o.maxIterations = quantize.DefaultMaxIterations
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
