package protocol

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	"github.com/rotisserie/eris"
)

var (
	seedConfig      = []byte("config")
	seedEpochResult = []byte("epoch_result")
	seedPool        = []byte("pool")
	seedIdentity    = []byte("identity")
)

// ConfigAddress derives the program's config account.
func ConfigAddress(program solana.PublicKey) (solana.PublicKey, error) {
	return findAddress(program, seedConfig)
}

// EpochResultAddress derives the result account of the given epoch.
func EpochResultAddress(program solana.PublicKey, epoch uint64) (solana.PublicKey, error) {
	return findAddress(program, seedEpochResult, epochSeed(epoch))
}

// PoolAddress derives the index-th pool of the given epoch.
func PoolAddress(program solana.PublicKey, index uint8, epoch uint64) (solana.PublicKey, error) {
	return findAddress(program, seedPool, []byte{index}, epochSeed(epoch))
}

// PoolAddresses derives pools 0..count-1 of the given epoch, in index order.
func PoolAddresses(program solana.PublicKey, count uint8, epoch uint64) ([]solana.PublicKey, error) {
	pools := make([]solana.PublicKey, 0, count)
	for i := range count {
		pool, err := PoolAddress(program, i, epoch)
		if err != nil {
			return nil, err
		}
		pools = append(pools, pool)
	}
	return pools, nil
}

// IdentityAddress derives the program identity account the oracle callback is checked against.
func IdentityAddress(program solana.PublicKey) (solana.PublicKey, error) {
	return findAddress(program, seedIdentity)
}

func findAddress(program solana.PublicKey, seeds ...[]byte) (solana.PublicKey, error) {
	address, _, err := solana.FindProgramAddress(seeds, program)
	if err != nil {
		return solana.PublicKey{}, eris.Wrapf(err, "failed to derive address for seed %q", seeds[0])
	}
	return address, nil
}

func epochSeed(epoch uint64) []byte {
	b := make([]byte, 8) //nolint:gomnd // u64
	binary.LittleEndian.PutUint64(b, epoch)
	return b
}
