// Package testutils holds helpers shared by the keeper's tests.
package testutils

import (
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
)

var Seed uint64 //nolint:gochecknoglobals // intentionally global for test reproducibility

func init() { //nolint:gochecknoinits // intentionally using init to set seed
	Seed = uint64(time.Now().UnixNano()) //nolint:gosec // it's ok
	if envSeed := os.Getenv("TEST_SEED"); envSeed != "" {
		parsed, err := strconv.ParseUint(envSeed, 0, 64)
		if err == nil { // Only set using the env if it's valid
			Seed = parsed
		}
	}
	fmt.Printf("to reproduce: TEST_SEED=0x%x\n", Seed) //nolint:forbidigo // just for testing
}

func NewRand(t *testing.T) *rand.Rand {
	t.Helper()
	return rand.New(rand.NewPCG(Seed, Seed)) //nolint:gosec // weak RNG is fine for tests
}

// RandPublicKey returns 32 random bytes as a public key. It is not guaranteed to be on the curve,
// which is fine for program ids and plain account addresses.
func RandPublicKey(r *rand.Rand) solana.PublicKey {
	var key solana.PublicKey
	for i := range key {
		key[i] = byte(r.UintN(256)) //nolint:gosec // bounded
	}
	return key
}
