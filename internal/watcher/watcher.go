// Package watcher runs a fixed-interval poll loop: each tick reads a piece of remote state, asks a
// trigger whether it needs attention and, if so, hands it to an executor.
//
// A tick is never interrupted. Once it has started, its reads, its decision and any submissions it
// makes run to completion even if the caller's context is cancelled; cancellation is only observed
// while the loop sleeps between ticks.
package watcher

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Trigger decides whether the observed state needs action.
type Trigger[T any] interface {
	ShouldTrigger(ctx context.Context, state T) (bool, error)
}

// Executor acts on a state the trigger fired for. It may mutate the state.
type Executor[T any] interface {
	Execute(ctx context.Context, state *T) error
}

// StateFunc produces the state a tick works on.
type StateFunc[T any] func(ctx context.Context) (T, error)

type TriggerFunc[T any] func(ctx context.Context, state T) (bool, error)

func (f TriggerFunc[T]) ShouldTrigger(ctx context.Context, state T) (bool, error) {
	return f(ctx, state)
}

type ExecutorFunc[T any] func(ctx context.Context, state *T) error

func (f ExecutorFunc[T]) Execute(ctx context.Context, state *T) error {
	return f(ctx, state)
}

type tickIDKey struct{}

// TickID returns the id of the tick ctx belongs to, or "" outside of a tick.
func TickID(ctx context.Context) string {
	id, _ := ctx.Value(tickIDKey{}).(string)
	return id
}

// Tick describes a finished tick, as handed to observers.
type Tick[T any] struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Triggered bool
	State     T
}

// Watcher is a poll-trigger-execute loop over a state of type T. It runs at most one tick at a
// time and is not reusable once Run or RunShared has returned.
type Watcher[T any] struct {
	trigger  Trigger[T]
	executor Executor[T]
	interval time.Duration

	clock    clock.Clock
	log      zerolog.Logger
	tracer   trace.Tracer
	observer func(Tick[T])
}

func New[T any](trigger Trigger[T], executor Executor[T], interval time.Duration, opts ...Option[T]) (*Watcher[T], error) {
	if trigger == nil {
		return nil, eris.New("watcher requires a trigger")
	}
	if executor == nil {
		return nil, eris.New("watcher requires an executor")
	}
	if interval <= 0 {
		return nil, eris.Errorf("watcher interval must be positive, got %s", interval)
	}

	w := &Watcher[T]{
		trigger:  trigger,
		executor: executor,
		interval: interval,
		clock:    clock.New(),
		log:      zerolog.Nop(),
		tracer:   noop.NewTracerProvider().Tracer("watcher"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run polls with a fresh state from fetch on every tick. An execution's changes to the state are
// discarded; the next tick fetches again. Run returns nil once ctx is cancelled between ticks, and
// the wrapped error of the first tick that fails.
func (w *Watcher[T]) Run(ctx context.Context, fetch StateFunc[T]) error {
	if fetch == nil {
		return eris.New("watcher requires a state func")
	}
	return w.loop(ctx, func(tickCtx context.Context, tick *Tick[T]) error {
		state, err := fetch(tickCtx)
		if err != nil {
			return eris.Wrap(err, "failed to fetch state")
		}
		tick.State = state
		return w.evaluate(tickCtx, tick)
	})
}

// RunShared polls a single state owned by the caller. Each tick executes on a copy of *state and
// writes the copy back only if execution succeeds, so a failed execution leaves *state as it was
// at the start of the tick. The caller must not touch *state while RunShared is running; observers
// receive copies instead.
func (w *Watcher[T]) RunShared(ctx context.Context, state *T) error {
	if state == nil {
		return eris.New("watcher requires a non-nil state")
	}
	return w.loop(ctx, func(tickCtx context.Context, tick *Tick[T]) error {
		tick.State = *state
		if err := w.evaluate(tickCtx, tick); err != nil {
			return err
		}
		*state = tick.State
		return nil
	})
}

// evaluate asks the trigger about tick.State and runs the executor on it when the trigger fires.
// The executor works on tick.State in place.
func (w *Watcher[T]) evaluate(ctx context.Context, tick *Tick[T]) error {
	fire, err := w.trigger.ShouldTrigger(ctx, tick.State)
	if err != nil {
		return eris.Wrap(err, "trigger failed")
	}
	if !fire {
		return nil
	}
	tick.Triggered = true

	working := tick.State
	if err := w.executor.Execute(ctx, &working); err != nil {
		return eris.Wrap(err, "execution failed")
	}
	tick.State = working
	return nil
}

func (w *Watcher[T]) loop(ctx context.Context, body func(context.Context, *Tick[T]) error) error {
	// In-flight work is detached from ctx. Values (loggers, spans) still flow through.
	workCtx := context.WithoutCancel(ctx)

	for {
		if err := w.tick(workCtx, body); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("watcher stopped")
			return nil
		case <-w.clock.After(w.interval):
		}
	}
}

func (w *Watcher[T]) tick(ctx context.Context, body func(context.Context, *Tick[T]) error) error {
	tick := Tick[T]{
		ID:        uuid.NewString(),
		StartedAt: w.clock.Now(),
	}
	logger := w.log.With().Str("tick_id", tick.ID).Logger()

	ctx, span := w.tracer.Start(ctx, "watcher.tick", trace.WithAttributes(attribute.String("tick_id", tick.ID)))
	defer span.End()
	ctx = context.WithValue(logger.WithContext(ctx), tickIDKey{}, tick.ID)

	if err := body(ctx, &tick); err != nil {
		span.SetStatus(codes.Error, eris.ToString(err, true))
		span.RecordError(err)
		logger.Error().Err(err).Msg("tick failed")
		return eris.Wrapf(err, "tick %s", tick.ID)
	}

	tick.Duration = w.clock.Since(tick.StartedAt)
	logger.Debug().
		Bool("triggered", tick.Triggered).
		Dur("duration", tick.Duration).
		Msg("tick completed")

	if w.observer != nil {
		w.observer(tick)
	}
	return nil
}
