// Package keeper drives a single epoch resolution program forward. It watches the current epoch,
// requests resolution once the deadline has passed on the ledger and opens the next epoch once the
// oracle has answered.
package keeper

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gagliardetto/solana-go"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/argus-labs/epoch-keeper/internal/journal"
	"github.com/argus-labs/epoch-keeper/internal/ledger"
	"github.com/argus-labs/epoch-keeper/internal/protocol"
	"github.com/argus-labs/epoch-keeper/internal/statsd"
	"github.com/argus-labs/epoch-keeper/internal/watcher"
)

// Mode selects how the keeper holds the task between ticks.
type Mode string

const (
	// ModeShared fetches the task once and keeps it, refreshed by every execution.
	ModeShared Mode = "shared"
	// ModeFetch rebuilds the task from the ledger at the start of every tick.
	ModeFetch Mode = "fetch"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeShared, ModeFetch:
		return Mode(s), nil
	default:
		return "", eris.Errorf("unknown mode %q (must be %q or %q)", s, ModeShared, ModeFetch)
	}
}

// Options configures a Keeper.
type Options struct {
	Program solana.PublicKey
	// OracleQueue is passed to resolve when set.
	OracleQueue solana.PublicKey
	Interval    time.Duration
	Mode        Mode
}

// Snapshot is what the keeper last observed. It is a copy and safe to hold on to.
type Snapshot struct {
	Running    bool          `json:"isWatcherRunning"`
	Task       protocol.Task `json:"task"`
	HasTask    bool          `json:"-"`
	TickID     string        `json:"tickId,omitempty"`
	LastTickAt time.Time     `json:"lastTickAt"`
	Ticks      uint64        `json:"ticks"`
}

type Keeper struct {
	fetcher *Fetcher
	watcher *watcher.Watcher[protocol.Task]
	mode    Mode
	log     zerolog.Logger

	running  atomic.Bool
	ticks    atomic.Uint64
	snapshot atomic.Pointer[Snapshot]
}

type Option func(*settings)

type settings struct {
	clock  clock.Clock
	log    zerolog.Logger
	tracer trace.Tracer
}

func WithClock(clk clock.Clock) Option {
	return func(s *settings) {
		s.clock = clk
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *settings) {
		s.log = logger
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *settings) {
		s.tracer = tracer
	}
}

func New(
	client ledger.Reader,
	submitter Submitter,
	store journal.Store,
	opts Options,
	options ...Option,
) (*Keeper, error) {
	s := settings{
		clock:  clock.New(),
		log:    zerolog.Nop(),
		tracer: noop.NewTracerProvider().Tracer("keeper"),
	}
	for _, opt := range options {
		opt(&s)
	}

	if submitter == nil {
		return nil, eris.New("keeper requires a submitter")
	}
	if _, err := ParseMode(string(opts.Mode)); err != nil {
		return nil, err
	}
	if store == nil {
		store = journal.NewMemoryStore(journal.DefaultCapacity)
	}

	fetcher, err := NewFetcher(client, opts.Program, opts.OracleQueue)
	if err != nil {
		return nil, err
	}

	k := &Keeper{
		fetcher: fetcher,
		mode:    opts.Mode,
		log:     s.log,
	}

	trigger := NewDeadlineTrigger(client, s.clock, s.log.With().Str("component", "trigger").Logger())
	executor := NewResolutionExecutor(client, submitter, store, s.clock,
		s.log.With().Str("component", "executor").Logger())

	k.watcher, err = watcher.New[protocol.Task](trigger, executor, opts.Interval,
		watcher.WithClock[protocol.Task](s.clock),
		watcher.WithLogger[protocol.Task](s.log),
		watcher.WithTracer[protocol.Task](s.tracer),
		watcher.WithObserver(k.observe),
	)
	if err != nil {
		return nil, eris.Wrap(err, "failed to create watcher")
	}
	return k, nil
}

// Run blocks until ctx is cancelled or a tick fails. In shared mode an initial fetch failure is
// returned before the loop starts.
func (k *Keeper) Run(ctx context.Context) error {
	k.running.Store(true)
	defer k.running.Store(false)

	k.log.Info().Str("mode", string(k.mode)).Msg("keeper starting")

	switch k.mode {
	case ModeFetch:
		if err := k.watcher.Run(ctx, k.fetcher.Fetch); err != nil {
			return eris.Wrap(err, "keeper stopped")
		}
	case ModeShared:
		task, err := k.fetcher.Fetch(ctx)
		if err != nil {
			return eris.Wrap(err, "failed to fetch initial task")
		}
		k.log.Info().
			Uint64("epoch", task.Epoch).
			Str("state", task.State.String()).
			Int64("end_at", task.EndAt).
			Uint8("pool_count", task.PoolCount).
			Msg("tracking epoch")
		k.publish(Snapshot{Task: task, HasTask: true})

		if err := k.watcher.RunShared(ctx, &task); err != nil {
			return eris.Wrap(err, "keeper stopped")
		}
	}
	return nil
}

// Fetch reads the current task from the ledger without running the loop.
func (k *Keeper) Fetch(ctx context.Context) (protocol.Task, error) {
	return k.fetcher.Fetch(ctx)
}

// Snapshot returns the keeper's latest observation.
func (k *Keeper) Snapshot() Snapshot {
	snap := Snapshot{}
	if p := k.snapshot.Load(); p != nil {
		snap = *p
	}
	snap.Running = k.running.Load()
	return snap
}

func (k *Keeper) observe(tick watcher.Tick[protocol.Task]) {
	n := k.ticks.Add(1)
	k.publish(Snapshot{
		Task:       tick.State,
		HasTask:    true,
		TickID:     tick.ID,
		LastTickAt: tick.StartedAt,
		Ticks:      n,
	})
	statsd.EmitTickStat(tick.Duration, tick.Triggered)
	statsd.GaugeEpoch(tick.State.Epoch, tick.State.State.String())
}

func (k *Keeper) publish(snap Snapshot) {
	k.snapshot.Store(&snap)
}
