package telemetry

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	otelTrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/argus-labs/epoch-keeper/internal/assert"
)

// setupOpenTelemetry returns a tracer, logger, and shutdown function. When tracing is disabled the
// tracer is a no-op and the shutdown function does nothing.
func setupOpenTelemetry(
	ctx context.Context,
	enabled bool,
	opts Options,
) (otelTrace.Tracer, zerolog.Logger, func(context.Context) error, error) {
	var shutdownFuncs []func(context.Context) error
	var err error

	shutdown := func(ctx context.Context) error {
		var shutdownErrs error
		for _, fn := range shutdownFuncs {
			shutdownErrs = errors.Join(shutdownErrs, fn(ctx))
		}
		shutdownFuncs = nil
		return shutdownErrs
	}

	handleErr := func(inErr error) {
		err = errors.Join(inErr, shutdown(ctx))
	}

	logger := newLogger(opts)

	if !enabled {
		return noop.NewTracerProvider().Tracer(opts.ServiceName), logger, shutdown, nil
	}

	res, err := newResource(opts)
	if err != nil {
		handleErr(err)
		return noop.NewTracerProvider().Tracer(opts.ServiceName), logger, shutdown, err
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tracerProvider, err := newTracerProvider(ctx, res, opts)
	if err != nil {
		handleErr(err)
		return noop.NewTracerProvider().Tracer(opts.ServiceName), logger, shutdown, err
	}
	shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)

	return tracerProvider.Tracer(opts.ServiceName), logger, shutdown, err
}

// newResource describes the keeper process to the trace backend.
func newResource(opts Options) (*resource.Resource, error) {
	res, err := resource.Merge(resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(opts.ServiceName),
		))
	if err != nil {
		return nil, eris.Wrap(err, "failed to create otel resource")
	}
	return res, nil
}

// newTracerProvider exports spans over OTLP/gRPC in batches, sampled at opts.TraceSampleRate.
func newTracerProvider(ctx context.Context, res *resource.Resource, opts Options) (*trace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(opts.Endpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, eris.Wrap(err, "failed to create OTLP trace exporter")
	}

	var sampler trace.Sampler
	switch opts.TraceSampleRate {
	case 1.0:
		sampler = trace.AlwaysSample()
	case 0.0:
		sampler = trace.NeverSample()
	default:
		sampler = trace.ParentBased(trace.TraceIDRatioBased(opts.TraceSampleRate))
	}

	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(sampler),
	), nil
}

// newLogger builds the process logger at opts.LogLevel, writing JSON or console output to
// opts.Output. Every line carries a timestamp and the caller.
func newLogger(opts Options) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(opts.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	var writer io.Writer
	switch opts.LogFormat {
	case LogFormatPretty:
		writer = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	case LogFormatJSON:
		writer = out
	case LogFormatUndefined:
		assert.That(false, "log format must be validated before building the logger")
	}

	return zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Caller().
		Logger()
}
