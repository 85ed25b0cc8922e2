package keeper_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/golang/mock/gomock"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-labs/epoch-keeper/internal/keeper"
	"github.com/argus-labs/epoch-keeper/internal/ledger"
	"github.com/argus-labs/epoch-keeper/internal/ledger/ledgertest"
	"github.com/argus-labs/epoch-keeper/internal/ledger/mocks"
	"github.com/argus-labs/epoch-keeper/internal/protocol"
	"github.com/argus-labs/epoch-keeper/internal/watcher"
)

func mockClockAt(unix int64) *clock.Mock {
	clk := clock.NewMock()
	clk.Set(time.Unix(unix, 0))
	return clk
}

func TestDeadlineTrigger_LocalClockSkipsRemoteCalls(t *testing.T) {
	t.Parallel()
	fake := ledgertest.New()
	fake.SetSlot(10, 5000)
	task := protocol.Task{EndAt: 1000}

	for _, now := range []int64{0, 500, 999, 1000} {
		trigger := keeper.NewDeadlineTrigger(fake, mockClockAt(now), zerolog.Nop())
		fire, err := trigger.ShouldTrigger(context.Background(), task)
		require.NoError(t, err)
		assert.False(t, fire, "now=%d", now)
	}
	assert.Zero(t, fake.Calls(ledgertest.MethodSlot))
	assert.Zero(t, fake.Calls(ledgertest.MethodBlockTime))
}

func TestDeadlineTrigger_EndToEnd(t *testing.T) {
	t.Parallel()
	fake := ledgertest.New()
	clk := mockClockAt(999)
	trigger := keeper.NewDeadlineTrigger(fake, clk, zerolog.Nop())
	task := protocol.Task{EndAt: 1000}

	fire, err := trigger.ShouldTrigger(context.Background(), task)
	require.NoError(t, err)
	assert.False(t, fire)

	clk.Set(time.Unix(1001, 0))
	fake.SetSlot(77, 1002)
	fire, err = trigger.ShouldTrigger(context.Background(), task)
	require.NoError(t, err)
	assert.True(t, fire)
	assert.Equal(t, []rpc.CommitmentType{rpc.CommitmentConfirmed}, fake.Commitments(ledgertest.MethodSlot))
}

func TestDeadlineTrigger_BlockTimeDecides(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		blockTime int64
		want      bool
	}{
		{name: "ledger behind local clock", blockTime: 990, want: false},
		{name: "ledger at deadline", blockTime: 1000, want: false},
		{name: "ledger past deadline", blockTime: 1001, want: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			fake := ledgertest.New()
			fake.SetSlot(5, tc.blockTime)
			trigger := keeper.NewDeadlineTrigger(fake, mockClockAt(1010), zerolog.Nop())

			fire, err := trigger.ShouldTrigger(context.Background(), protocol.Task{EndAt: 1000})
			require.NoError(t, err)
			assert.Equal(t, tc.want, fire)
		})
	}
}

func TestDeadlineTrigger_MissingBlockTimeWaits(t *testing.T) {
	t.Parallel()
	fake := ledgertest.New()
	fake.SetSlotWithoutTime(12)
	trigger := keeper.NewDeadlineTrigger(fake, mockClockAt(2000), zerolog.Nop())

	fire, err := trigger.ShouldTrigger(context.Background(), protocol.Task{EndAt: 1000})
	require.NoError(t, err)
	assert.False(t, fire)
	assert.Equal(t, 1, fake.Calls(ledgertest.MethodBlockTime))
}

func TestDeadlineTrigger_PropagatesLedgerErrors(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	slotErr := eris.New("slot unavailable")
	blockTimeErr := eris.New("connection reset")

	reader := mocks.NewMockReader(ctrl)
	gomock.InOrder(
		reader.EXPECT().Slot(gomock.Any(), rpc.CommitmentConfirmed).Return(uint64(0), slotErr),
		reader.EXPECT().Slot(gomock.Any(), rpc.CommitmentConfirmed).Return(uint64(40), nil),
		reader.EXPECT().BlockTime(gomock.Any(), uint64(40)).Return(int64(0), blockTimeErr),
		reader.EXPECT().Slot(gomock.Any(), rpc.CommitmentConfirmed).Return(uint64(41), nil),
		reader.EXPECT().BlockTime(gomock.Any(), uint64(41)).
			Return(int64(0), eris.Wrap(ledger.ErrBlockTimeUnavailable, "slot 41")),
	)

	trigger := keeper.NewDeadlineTrigger(reader, mockClockAt(2000), zerolog.Nop())
	task := protocol.Task{EndAt: 1000}

	_, err := trigger.ShouldTrigger(context.Background(), task)
	require.ErrorIs(t, err, slotErr)

	_, err = trigger.ShouldTrigger(context.Background(), task)
	require.ErrorIs(t, err, blockTimeErr)

	fire, err := trigger.ShouldTrigger(context.Background(), task)
	require.NoError(t, err)
	assert.False(t, fire)
}

func TestDeadlineTrigger_LogsCarryTickID(t *testing.T) {
	t.Parallel()
	fake := ledgertest.New()
	fake.SetSlot(77, 1002)
	buf := new(bytes.Buffer)
	trigger := keeper.NewDeadlineTrigger(fake, mockClockAt(1001), zerolog.New(buf).Level(zerolog.DebugLevel))

	var tickID string
	w, err := watcher.New[protocol.Task](
		trigger,
		watcher.ExecutorFunc[protocol.Task](func(context.Context, *protocol.Task) error { return nil }),
		time.Millisecond,
		watcher.WithObserver(func(tick watcher.Tick[protocol.Task]) { tickID = tick.ID }),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx, func(context.Context) (protocol.Task, error) {
		return protocol.Task{EndAt: 1000}, nil
	}))

	require.NotEmpty(t, tickID)
	assert.Contains(t, buf.String(), `"tick_id":"`+tickID+`"`)
	assert.Contains(t, buf.String(), "checked epoch deadline")
}
