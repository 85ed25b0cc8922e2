package keeper

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/gagliardetto/solana-go"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/argus-labs/epoch-keeper/internal/journal"
	"github.com/argus-labs/epoch-keeper/internal/ledger"
	"github.com/argus-labs/epoch-keeper/internal/protocol"
	"github.com/argus-labs/epoch-keeper/internal/statsd"
	"github.com/argus-labs/epoch-keeper/internal/watcher"
)

// Submitter lands a single instruction signed by the keeper's authority.
type Submitter interface {
	Authority() solana.PublicKey
	Submit(ctx context.Context, ix solana.Instruction) (ledger.Submission, error)
}

var _ Submitter = (*ledger.Submitter)(nil)

var _ watcher.Executor[protocol.Task] = (*ResolutionExecutor)(nil)

// ResolutionExecutor moves an epoch forward one step per execution, based on its observed state:
//
//	active   -> submit resolve
//	resolved -> submit advance_epoch for the next epoch and start tracking it
//	pending  -> refresh; if the oracle has answered, continue as resolved
//
// The program is the source of truth. After every action the task is refreshed from the ledger
// instead of assuming the action's effect.
type ResolutionExecutor struct {
	reader    ledger.Reader
	submitter Submitter
	journal   journal.Store
	clock     clock.Clock
	log       zerolog.Logger
}

func NewResolutionExecutor(
	reader ledger.Reader,
	submitter Submitter,
	store journal.Store,
	clk clock.Clock,
	logger zerolog.Logger,
) *ResolutionExecutor {
	return &ResolutionExecutor{
		reader:    reader,
		submitter: submitter,
		journal:   store,
		clock:     clk,
		log:       logger,
	}
}

func (e *ResolutionExecutor) Execute(ctx context.Context, task *protocol.Task) error {
	switch task.State {
	case protocol.StateActive:
		return e.resolve(ctx, task)
	case protocol.StateResolved:
		return e.advance(ctx, task)
	case protocol.StatePending:
		return e.pending(ctx, task)
	default:
		return eris.Errorf("epoch %d is in unknown state %d", task.Epoch, uint8(task.State))
	}
}

func (e *ResolutionExecutor) resolve(ctx context.Context, task *protocol.Task) error {
	log := e.logger(ctx, task)
	ix, err := protocol.ResolveInstruction(e.submitter.Authority(), *task)
	if err != nil {
		return eris.Wrap(err, "failed to build resolve instruction")
	}

	log.Info().
		Str("epoch_result", task.EpochResultAddress.String()).
		Str("config", task.ConfigAddress.String()).
		Bool("oracle_queue", task.HasOracleQueue()).
		Uint8("pool_count", task.PoolCount).
		Msg("requesting epoch resolution")

	epoch := task.Epoch
	sub, err := e.submit(ctx, task, journal.ActionResolve, epoch, ix)
	if err != nil {
		return err
	}
	e.landed(ctx, task, journal.ActionResolve, sub)
	if err := refresh(ctx, e.reader, task); err != nil {
		e.confirmed(ctx, task, journal.ActionResolve, epoch, sub, err)
		return eris.Wrapf(err, "failed to refresh after resolve %s", sub.Signature)
	}
	e.confirmed(ctx, task, journal.ActionResolve, epoch, sub, nil)
	return nil
}

func (e *ResolutionExecutor) advance(ctx context.Context, task *protocol.Task) error {
	log := e.logger(ctx, task)
	ix, err := protocol.AdvanceEpochInstruction(e.submitter.Authority(), *task)
	if err != nil {
		return eris.Wrap(err, "failed to build advance_epoch instruction")
	}

	next := task.Epoch + 1
	log.Info().
		Uint64("next_epoch", next).
		Uint8("pool_count", task.PoolCount).
		Msg("advancing to next epoch")

	sub, err := e.submit(ctx, task, journal.ActionAdvanceEpoch, next, ix)
	if err != nil {
		return err
	}
	e.landed(ctx, task, journal.ActionAdvanceEpoch, sub)

	task.Epoch = next
	if err := refresh(ctx, e.reader, task); err != nil {
		e.confirmed(ctx, task, journal.ActionAdvanceEpoch, next, sub, err)
		return eris.Wrapf(err, "failed to refresh after advance_epoch %s", sub.Signature)
	}
	e.confirmed(ctx, task, journal.ActionAdvanceEpoch, next, sub, nil)
	return nil
}

func (e *ResolutionExecutor) pending(ctx context.Context, task *protocol.Task) error {
	if err := refresh(ctx, e.reader, task); err != nil {
		return eris.Wrap(err, "failed to refresh pending epoch")
	}
	if task.State != protocol.StateResolved {
		e.logger(ctx, task).Info().
			Str("state", task.State.String()).
			Msg("waiting for oracle callback")
		return nil
	}
	e.logger(ctx, task).Info().Msg("oracle callback landed")
	return e.advance(ctx, task)
}

// submit lands ix and records a failed attempt. The task is not touched. epoch is the epoch the
// action targets.
func (e *ResolutionExecutor) submit(
	ctx context.Context,
	task *protocol.Task,
	action journal.Action,
	epoch uint64,
	ix solana.Instruction,
) (ledger.Submission, error) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent("submit", trace.WithAttributes(
		attribute.String("action", string(action)),
		attribute.Int64("epoch", int64(epoch)), //nolint:gosec // epochs fit in int64
	))

	sub, err := e.submitter.Submit(ctx, ix)
	if err == nil {
		return sub, nil
	}

	statsd.IncrSubmission(string(action), string(journal.OutcomeFailed))
	e.record(ctx, journal.Entry{
		TickID:     watcher.TickID(ctx),
		Epoch:      epoch,
		Action:     action,
		Outcome:    journal.OutcomeFailed,
		Signature:  signatureString(sub.Signature),
		Attempts:   sub.Attempts,
		Error:      err.Error(),
		StateAfter: task.State,
		At:         e.clock.Now().UTC(),
	})
	if sub.Signature != (solana.Signature{}) {
		return sub, eris.Wrapf(err, "%s for epoch %d, last signature %s", action, epoch, sub.Signature)
	}
	return sub, eris.Wrapf(err, "%s for epoch %d", action, epoch)
}

// landed reports a confirmed submission before the task is refreshed, so the signature is on record
// even if the refresh fails.
func (e *ResolutionExecutor) landed(
	ctx context.Context,
	task *protocol.Task,
	action journal.Action,
	sub ledger.Submission,
) {
	e.logger(ctx, task).Info().
		Str("action", string(action)).
		Str("signature", sub.Signature.String()).
		Int("attempts", sub.Attempts).
		Msg("action landed")
	statsd.IncrSubmission(string(action), string(journal.OutcomeConfirmed))
}

// confirmed journals a landed action together with the state the following refresh observed.
// When the refresh failed, refreshErr is kept on the entry and StateAfter is the last known state.
func (e *ResolutionExecutor) confirmed(
	ctx context.Context,
	task *protocol.Task,
	action journal.Action,
	epoch uint64,
	sub ledger.Submission,
	refreshErr error,
) {
	entry := journal.Entry{
		TickID:     watcher.TickID(ctx),
		Epoch:      epoch,
		Action:     action,
		Outcome:    journal.OutcomeConfirmed,
		Signature:  sub.Signature.String(),
		Attempts:   sub.Attempts,
		StateAfter: task.State,
		At:         e.clock.Now().UTC(),
	}
	if refreshErr != nil {
		entry.Error = refreshErr.Error()
	} else {
		e.logger(ctx, task).Info().
			Str("action", string(action)).
			Str("state", task.State.String()).
			Int64("end_at", task.EndAt).
			Msg("epoch refreshed")
	}
	e.record(ctx, entry)
}

// record is best effort; a journal outage must not stop the keeper.
func (e *ResolutionExecutor) record(ctx context.Context, entry journal.Entry) {
	if e.journal == nil {
		return
	}
	if err := e.journal.Record(ctx, entry); err != nil {
		e.log.Warn().Err(err).Str("action", string(entry.Action)).Msg("failed to record journal entry")
	}
}

func (e *ResolutionExecutor) logger(ctx context.Context, task *protocol.Task) *zerolog.Logger {
	l := e.log.With().
		Str("tick_id", watcher.TickID(ctx)).
		Uint64("epoch", task.Epoch).
		Logger()
	return &l
}

func signatureString(sig solana.Signature) string {
	if sig == (solana.Signature{}) {
		return ""
	}
	return sig.String()
}
