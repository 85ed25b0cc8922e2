package keeper_test

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-labs/epoch-keeper/internal/keeper"
	"github.com/argus-labs/epoch-keeper/internal/ledger"
	"github.com/argus-labs/epoch-keeper/internal/ledger/ledgertest"
	"github.com/argus-labs/epoch-keeper/internal/protocol"
)

func TestFetcher_BuildsTaskFromAccounts(t *testing.T) {
	t.Parallel()
	p := newProgram(t, epochResult(12, protocol.StatePending, 5))
	queue := solana.NewWallet().PublicKey()

	f, err := keeper.NewFetcher(p.fake, p.id, queue)
	require.NoError(t, err)
	task, err := f.Fetch(context.Background())
	require.NoError(t, err)

	want := p.task(t)
	want.OracleQueue = queue
	assert.Equal(t, want, task)
	assert.Equal(t, uint64(12), task.Epoch)
	assert.Equal(t, int64(1000), task.EndAt)
	assert.Equal(t, protocol.StatePending, task.State)
	assert.Equal(t, uint8(5), task.PoolCount)

	cfg, err := f.Config(context.Background())
	require.NoError(t, err)
	assert.Equal(t, protocol.WeightModelStake, cfg.WeightModel)
}

func TestFetcher_FollowsCurrentEpoch(t *testing.T) {
	t.Parallel()
	p := newProgram(t, epochResult(1, protocol.StateResolved, 2))
	p.setResult(epochResult(2, protocol.StateActive, 2))

	f, err := keeper.NewFetcher(p.fake, p.id, solana.PublicKey{})
	require.NoError(t, err)
	task, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), task.Epoch)
	assert.False(t, task.HasOracleQueue())
}

func TestFetcher_MissingAccounts(t *testing.T) {
	t.Parallel()
	p := newProgram(t, epochResult(3, protocol.StateActive, 1))
	f, err := keeper.NewFetcher(p.fake, p.id, solana.PublicKey{})
	require.NoError(t, err)

	task := p.task(t)
	p.fake.DeleteAccount(task.EpochResultAddress)
	_, err = f.Fetch(context.Background())
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)

	p.fake.DeleteAccount(task.ConfigAddress)
	_, err = f.Fetch(context.Background())
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestFetcher_RequiresReader(t *testing.T) {
	t.Parallel()
	_, err := keeper.NewFetcher(nil, solana.NewWallet().PublicKey(), solana.PublicKey{})
	require.Error(t, err)

	_, err = keeper.NewFetcher(ledgertest.New(), solana.NewWallet().PublicKey(), solana.PublicKey{})
	require.NoError(t, err)
}
