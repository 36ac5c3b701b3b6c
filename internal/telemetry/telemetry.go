// Package telemetry wraps internal/gpu's dispatch/search counters as otel
// metric instruments and the save/recall CLI paths as otel spans,
// reusing the field names of internal/gpu.Stats (SearchesGPU,
// SearchesCPU, BytesUploaded, BytesDownloaded, KernelExecutions, taken
// from the teacher's AcceleratorStats) now backed by counters instead of
// a mutex-guarded struct. No SDK/exporter is registered (none exists in the dependency
// footprint this module was grown from); with the default no-op
// MeterProvider/TracerProvider these calls cost nothing, and the verbose
// (-v) summary goes through the logger instead.
package telemetry

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"vmemo/internal/gpu"
)

const instrumentationName = "vmemo"

// Telemetry holds the otel instruments and the verbose-mode logger.
type Telemetry struct {
	log       logr.Logger
	verbose   bool
	tracer    trace.Tracer
	searches  metric.Int64Counter
	bytesUp   metric.Int64Counter
	bytesDown metric.Int64Counter
	kernels   metric.Int64Counter
}

// New constructs the otel instruments. verbose gates the logr summary
// line printed when a span ends (the CLI's -v flag).
func New(log logr.Logger, verbose bool) (*Telemetry, error) {
	meter := otel.Meter(instrumentationName)

	searches, err := meter.Int64Counter("vmemo.gpu.searches",
		metric.WithDescription("similarity searches dispatched, by backend"))
	if err != nil {
		return nil, err
	}
	bytesUp, err := meter.Int64Counter("vmemo.gpu.bytes_uploaded")
	if err != nil {
		return nil, err
	}
	bytesDown, err := meter.Int64Counter("vmemo.gpu.bytes_downloaded")
	if err != nil {
		return nil, err
	}
	kernels, err := meter.Int64Counter("vmemo.gpu.kernel_executions")
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		log: log, verbose: verbose,
		tracer:    otel.Tracer(instrumentationName),
		searches:  searches,
		bytesUp:   bytesUp,
		bytesDown: bytesDown,
		kernels:   kernels,
	}, nil
}

// RecordGPUStats emits the delta between prev and cur as counter
// increments. Callers pass the orchestrator's cumulative Stats snapshot
// before and after an operation.
func (t *Telemetry) RecordGPUStats(ctx context.Context, prev, cur gpu.Stats) {
	t.searches.Add(ctx, cur.SearchesGPU-prev.SearchesGPU, metric.WithAttributes(attribute.String("backend", "gpu")))
	t.searches.Add(ctx, cur.SearchesCPU-prev.SearchesCPU, metric.WithAttributes(attribute.String("backend", "cpu")))
	t.bytesUp.Add(ctx, cur.BytesUploaded-prev.BytesUploaded)
	t.bytesDown.Add(ctx, cur.BytesDownloaded-prev.BytesDownloaded)
	t.kernels.Add(ctx, cur.KernelExecutions-prev.KernelExecutions)

	if t.verbose {
		t.log.V(1).Info("gpu transfer",
			"uploaded", humanize.Bytes(uint64(cur.BytesUploaded-prev.BytesUploaded)),
			"downloaded", humanize.Bytes(uint64(cur.BytesDownloaded-prev.BytesDownloaded)),
			"kernels", cur.KernelExecutions-prev.KernelExecutions)
	}
}

// Span starts a named span around a CLI operation (save/recall) and
// returns a function to end it; when verbose is set, ending it logs the
// elapsed duration.
func (t *Telemetry) Span(ctx context.Context, name string) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, name)
	start := time.Now()
	return ctx, func() {
		elapsed := time.Since(start)
		span.End()
		if t.verbose {
			t.log.V(1).Info("operation complete", "op", name, "elapsed", elapsed)
		}
	}
}
