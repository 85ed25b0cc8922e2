package watcher

import (
	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type Option[T any] func(*Watcher[T])

// WithClock sets the clock used to sleep between ticks. Tests pass a clock.Mock to step through
// ticks by hand.
func WithClock[T any](clk clock.Clock) Option[T] {
	return func(w *Watcher[T]) {
		w.clock = clk
	}
}

func WithLogger[T any](logger zerolog.Logger) Option[T] {
	return func(w *Watcher[T]) {
		w.log = logger
	}
}

func WithTracer[T any](tracer trace.Tracer) Option[T] {
	return func(w *Watcher[T]) {
		w.tracer = tracer
	}
}

// WithObserver registers a callback that receives every successful tick. It runs on the loop's
// goroutine, so it must not block.
func WithObserver[T any](observer func(Tick[T])) Option[T] {
	return func(w *Watcher[T]) {
		w.observer = observer
	}
}
