package protocol_test

import (
	"encoding/hex"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-labs/epoch-keeper/internal/protocol"
	"github.com/argus-labs/epoch-keeper/internal/testutils"
)

func newTask(t *testing.T, epoch uint64, pools uint8) protocol.Task {
	t.Helper()
	r := testutils.NewRand(t)
	program := testutils.RandPublicKey(r)

	configAddr, err := protocol.ConfigAddress(program)
	require.NoError(t, err)
	resultAddr, err := protocol.EpochResultAddress(program, epoch)
	require.NoError(t, err)

	return protocol.Task{
		ProgramID:          program,
		ConfigAddress:      configAddr,
		EpochResultAddress: resultAddr,
		Epoch:              epoch,
		EndAt:              1000,
		PoolCount:          pools,
	}
}

func keys(metas []*solana.AccountMeta) []solana.PublicKey {
	out := make([]solana.PublicKey, 0, len(metas))
	for _, m := range metas {
		out = append(out, m.PublicKey)
	}
	return out
}

func TestResolveInstruction(t *testing.T) {
	t.Parallel()
	task := newTask(t, 5, 3)
	authority := solana.NewWallet().PublicKey()

	ix, err := protocol.ResolveInstruction(authority, task)
	require.NoError(t, err)
	assert.Equal(t, task.ProgramID, ix.ProgramID())

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, "f696ecce6c3f3a0a00", hex.EncodeToString(data))

	identity, err := protocol.IdentityAddress(task.ProgramID)
	require.NoError(t, err)
	pools, err := protocol.PoolAddresses(task.ProgramID, 3, 5)
	require.NoError(t, err)

	want := append([]solana.PublicKey{
		authority,
		task.ConfigAddress,
		task.EpochResultAddress,
		solana.SystemProgramID,
		identity,
		protocol.VRFProgramID,
		protocol.SlotHashesSysvarID,
	}, pools...)
	accounts := ix.Accounts()
	assert.Equal(t, want, keys(accounts))

	assert.True(t, accounts[0].IsSigner)
	assert.True(t, accounts[0].IsWritable)
	for _, meta := range accounts[4:7] {
		assert.False(t, meta.IsWritable, "%s must be read only", meta.PublicKey)
	}
	for _, meta := range accounts[7:] {
		assert.True(t, meta.IsWritable, "pool %s must be writable", meta.PublicKey)
	}
}

func TestResolveInstruction_OracleQueue(t *testing.T) {
	t.Parallel()
	task := newTask(t, 1, 0)
	task.OracleQueue = solana.NewWallet().PublicKey()
	authority := solana.NewWallet().PublicKey()

	ix, err := protocol.ResolveInstruction(authority, task)
	require.NoError(t, err)

	accounts := ix.Accounts()
	require.Len(t, accounts, 8)
	assert.Equal(t, task.OracleQueue, accounts[3].PublicKey)
	assert.True(t, accounts[3].IsWritable)
	assert.Equal(t, solana.SystemProgramID, accounts[4].PublicKey)
}

func TestAdvanceEpochInstruction(t *testing.T) {
	t.Parallel()
	task := newTask(t, 5, 4)
	authority := solana.NewWallet().PublicKey()

	ix, err := protocol.AdvanceEpochInstruction(authority, task)
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, "5d8aeadaf1e68426"+"0600000000000000", hex.EncodeToString(data))

	nextResult, err := protocol.EpochResultAddress(task.ProgramID, 6)
	require.NoError(t, err)

	accounts := ix.Accounts()
	require.Len(t, accounts, 4+4)
	assert.Equal(t, []solana.PublicKey{
		authority, task.ConfigAddress, nextResult, solana.SystemProgramID,
	}, keys(accounts[:4]))

	for i, meta := range accounts[4:] {
		want, err := protocol.PoolAddress(task.ProgramID, uint8(i), 6) //nolint:gosec // bounded
		require.NoError(t, err)
		assert.Equal(t, want, meta.PublicKey, "pool %d", i)
	}
}
