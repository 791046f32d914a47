package codebook

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    quantizeCounter   prometheus.Counter
//	    quantizeHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordQuantize(layers int, duration time.Duration, err error) {
//	    p.quantizeCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordQuantize is called after each model quantization.
	// layers is the number of linear layers rewired, duration the total
	// time taken, err is nil if successful.
	RecordQuantize(layers int, duration time.Duration, err error)

	// RecordSave is called after each checkpoint save.
	// bytes is the artifact size written.
	RecordSave(bytes int64, duration time.Duration, err error)

	// RecordLoad is called after each checkpoint load.
	RecordLoad(bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordQuantize(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordSave(int64, time.Duration, error)   {}
func (NoopMetricsCollector) RecordLoad(int64, time.Duration, error)   {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	QuantizeCount      atomic.Int64
	QuantizeErrors     atomic.Int64
	QuantizeLayers     atomic.Int64
	QuantizeTotalNanos atomic.Int64
	SaveCount          atomic.Int64
	SaveErrors         atomic.Int64
	SaveBytes          atomic.Int64
	LoadCount          atomic.Int64
	LoadErrors         atomic.Int64
	LoadBytes          atomic.Int64
}

// RecordQuantize implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuantize(layers int, duration time.Duration, err error) {
	b.QuantizeCount.Add(1)
	b.QuantizeLayers.Add(int64(layers))
	b.QuantizeTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QuantizeErrors.Add(1)
	}
}

// RecordSave implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSave(bytes int64, duration time.Duration, err error) {
	b.SaveCount.Add(1)
	b.SaveBytes.Add(bytes)
	if err != nil {
		b.SaveErrors.Add(1)
	}
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(bytes int64, duration time.Duration, err error) {
	b.LoadCount.Add(1)
	b.LoadBytes.Add(bytes)
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		QuantizeCount:    b.QuantizeCount.Load(),
		QuantizeErrors:   b.QuantizeErrors.Load(),
		QuantizeLayers:   b.QuantizeLayers.Load(),
		QuantizeAvgNanos: b.getAvgQuantizeNanos(),
		SaveCount:        b.SaveCount.Load(),
		SaveErrors:       b.SaveErrors.Load(),
		SaveBytes:        b.SaveBytes.Load(),
		LoadCount:        b.LoadCount.Load(),
		LoadErrors:       b.LoadErrors.Load(),
		LoadBytes:        b.LoadBytes.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgQuantizeNanos() int64 {
	count := b.QuantizeCount.Load()
	if count == 0 {
		return 0
	}
	return b.QuantizeTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	QuantizeCount    int64
	QuantizeErrors   int64
	QuantizeLayers   int64
	QuantizeAvgNanos int64
	SaveCount        int64
	SaveErrors       int64
	SaveBytes        int64
	LoadCount        int64
	LoadErrors       int64
	LoadBytes        int64
}
