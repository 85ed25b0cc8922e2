package keeper

import (
	"context"
	"errors"

	"github.com/benbjohnson/clock"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/argus-labs/epoch-keeper/internal/ledger"
	"github.com/argus-labs/epoch-keeper/internal/protocol"
	"github.com/argus-labs/epoch-keeper/internal/watcher"
)

var _ watcher.Trigger[protocol.Task] = (*DeadlineTrigger)(nil)

// DeadlineTrigger fires once the ledger's own clock has passed the epoch's end. The local clock is
// only used to skip the remote lookups while the deadline is clearly in the future; the program
// judges the deadline by block time, so that is what decides.
type DeadlineTrigger struct {
	reader ledger.Reader
	clock  clock.Clock
	log    zerolog.Logger
}

func NewDeadlineTrigger(reader ledger.Reader, clk clock.Clock, logger zerolog.Logger) *DeadlineTrigger {
	return &DeadlineTrigger{reader: reader, clock: clk, log: logger}
}

func (d *DeadlineTrigger) ShouldTrigger(ctx context.Context, task protocol.Task) (bool, error) {
	now := d.clock.Now().Unix()
	if now <= task.EndAt {
		return false, nil
	}

	slot, err := d.reader.Slot(ctx, readCommitment)
	if err != nil {
		return false, eris.Wrap(err, "failed to read latest slot")
	}
	log := d.log.With().Str("tick_id", watcher.TickID(ctx)).Logger()
	blockTime, err := d.reader.BlockTime(ctx, slot)
	if errors.Is(err, ledger.ErrBlockTimeUnavailable) {
		log.Debug().Uint64("slot", slot).Msg("no block time for latest slot yet")
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "failed to read block time of slot %d", slot)
	}

	log.Debug().
		Uint64("slot", slot).
		Int64("block_time", blockTime).
		Int64("end_at", task.EndAt).
		Int64("local_time", now).
		Msg("checked epoch deadline")
	return blockTime > task.EndAt, nil
}
