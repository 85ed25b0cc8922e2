package protocol_test

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-labs/epoch-keeper/internal/protocol"
	"github.com/argus-labs/epoch-keeper/internal/testutils"
)

func TestAddressDerivationIsDeterministic(t *testing.T) {
	t.Parallel()
	r := testutils.NewRand(t)

	for range 1000 {
		program := testutils.RandPublicKey(r)
		epoch := r.Uint64()
		index := uint8(r.UintN(8)) //nolint:gosec // bounded

		first, err := protocol.EpochResultAddress(program, epoch)
		require.NoError(t, err)
		second, err := protocol.EpochResultAddress(program, epoch)
		require.NoError(t, err)
		require.Equal(t, first, second, "epoch result address for epoch %d", epoch)

		firstPool, err := protocol.PoolAddress(program, index, epoch)
		require.NoError(t, err)
		secondPool, err := protocol.PoolAddress(program, index, epoch)
		require.NoError(t, err)
		require.Equal(t, firstPool, secondPool, "pool %d address for epoch %d", index, epoch)
	}
}

func TestAddressSeedsMatchProgram(t *testing.T) {
	t.Parallel()
	r := testutils.NewRand(t)
	program := testutils.RandPublicKey(r)

	epochBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(epochBytes, 6)

	want, _, err := solana.FindProgramAddress([][]byte{[]byte("pool"), {3}, epochBytes}, program)
	require.NoError(t, err)
	got, err := protocol.PoolAddress(program, 3, 6)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	want, _, err = solana.FindProgramAddress([][]byte{[]byte("epoch_result"), epochBytes}, program)
	require.NoError(t, err)
	got, err = protocol.EpochResultAddress(program, 6)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	want, _, err = solana.FindProgramAddress([][]byte{[]byte("config")}, program)
	require.NoError(t, err)
	got, err = protocol.ConfigAddress(program)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPoolAddresses(t *testing.T) {
	t.Parallel()
	r := testutils.NewRand(t)
	program := testutils.RandPublicKey(r)

	pools, err := protocol.PoolAddresses(program, 4, 9)
	require.NoError(t, err)
	require.Len(t, pools, 4)

	seen := make(map[solana.PublicKey]struct{})
	for i, pool := range pools {
		want, err := protocol.PoolAddress(program, uint8(i), 9) //nolint:gosec // bounded
		require.NoError(t, err)
		assert.Equal(t, want, pool)
		seen[pool] = struct{}{}
	}
	assert.Len(t, seen, 4, "pool addresses must be distinct")

	none, err := protocol.PoolAddresses(program, 0, 9)
	require.NoError(t, err)
	assert.Empty(t, none)
}
