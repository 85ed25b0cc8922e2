// Package telemetry sets up the keeper's logger, tracer and error reporting from the environment.
package telemetry

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/argus-labs/epoch-keeper/internal/telemetry/sentry"
)

const sentryFlushTimeout = 5 * time.Second

type Telemetry struct {
	Logger      zerolog.Logger
	Tracer      trace.Tracer
	serviceName string

	shutdown func(context.Context) error
}

// New reads the telemetry environment, overlays opts on it and sets up logging, tracing and
// Sentry.
func New(opts Options) (Telemetry, error) {
	config, err := loadConfig()
	if err != nil {
		return Telemetry{}, eris.Wrap(err, "failed to load telemetry config")
	}

	options := newDefaultOptions()
	config.applyToOptions(&options)
	options.apply(opts)
	if err := options.validate(); err != nil {
		return Telemetry{}, eris.Wrap(err, "invalid telemetry options")
	}

	if err := sentry.New(options.SentryOptions); err != nil {
		return Telemetry{}, err
	}

	ctx := context.Background()
	tracer, logger, shutdown, err := setupOpenTelemetry(ctx, config.Enabled, options)
	if err != nil {
		return Telemetry{}, eris.Wrap(err, "failed to setup telemetry")
	}

	return Telemetry{
		Logger:      logger,
		Tracer:      tracer,
		serviceName: options.ServiceName,
		shutdown:    shutdown,
	}, nil
}

// Shutdown flushes pending spans and Sentry events.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	sentry.Shutdown(ctx, sentryFlushTimeout)
	if t.shutdown != nil {
		return t.shutdown(ctx)
	}
	return nil
}

// GetLogger returns a component-specific logger.
func (t *Telemetry) GetLogger(component string) zerolog.Logger {
	return t.Logger.With().Str("component", t.serviceName+"."+component).Logger()
}

// CaptureException reports err to Sentry, if it is configured.
func (t *Telemetry) CaptureException(ctx context.Context, err error) {
	sentry.CaptureException(ctx, err)
}

// RecoverAndFlush must be deferred. It reports a panic to Sentry before letting it continue.
func (t *Telemetry) RecoverAndFlush(repanic bool) {
	if r := recover(); r != nil {
		sentry.Recover(r)
		if repanic {
			panic(r)
		}
	}
}
