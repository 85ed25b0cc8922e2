package keeper_test

import (
	"bytes"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/argus-labs/epoch-keeper/internal/ledger"
	"github.com/argus-labs/epoch-keeper/internal/ledger/ledgertest"
	"github.com/argus-labs/epoch-keeper/internal/protocol"
	"github.com/argus-labs/epoch-keeper/internal/testutils"
)

var (
	resolveDisc = protocol.Discriminator("global", protocol.ResolveInstructionName)
	advanceDisc = protocol.Discriminator("global", protocol.AdvanceEpochInstructionName)
)

// program imitates the on-chain program on top of a fake ledger: it owns the config and epoch
// result accounts and reacts to the instructions the keeper sends.
type program struct {
	t    *testing.T
	id   solana.PublicKey
	fake *ledgertest.Fake

	mu      sync.Mutex
	config  protocol.Config
	results map[uint64]protocol.EpochResult

	// afterResolve is the state the current epoch moves to when resolve lands.
	afterResolve protocol.EpochResultState
	// nextEndAt is the deadline given to epochs opened by advance_epoch.
	nextEndAt int64
	// skipAdvance makes advance_epoch land without creating the next epoch.
	skipAdvance bool
}

func newProgram(t *testing.T, current protocol.EpochResult) *program {
	t.Helper()
	r := testutils.NewRand(t)
	p := &program{
		t:            t,
		id:           testutils.RandPublicKey(r),
		fake:         ledgertest.New(),
		results:      make(map[uint64]protocol.EpochResult),
		afterResolve: protocol.StatePending,
		nextEndAt:    current.EndAt + 3600,
		config: protocol.Config{
			Authority:      testutils.RandPublicKey(r),
			CurrentEpoch:   current.Epoch,
			EpochDuration:  3600,
			WeightModel:    protocol.WeightModelStake,
			ResolutionType: protocol.ResolutionOracle,
			Bump:           254,
		},
	}
	p.mu.Lock()
	p.writeConfigLocked()
	p.writeResultLocked(current)
	p.mu.Unlock()
	p.fake.OnSend(p.handle)
	return p
}

func (p *program) setResult(result protocol.EpochResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeResultLocked(result)
}

func (p *program) result(epoch uint64) (protocol.EpochResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.results[epoch]
	return r, ok
}

func (p *program) currentEpoch() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.config.CurrentEpoch
}

func (p *program) writeConfigLocked() {
	address, err := protocol.ConfigAddress(p.id)
	require.NoError(p.t, err)
	data, err := p.config.MarshalAccount()
	require.NoError(p.t, err)
	p.fake.SetAccount(address, data)
}

func (p *program) writeResultLocked(result protocol.EpochResult) {
	address, err := protocol.EpochResultAddress(p.id, result.Epoch)
	require.NoError(p.t, err)
	data, err := result.MarshalAccount()
	require.NoError(p.t, err)
	p.results[result.Epoch] = result
	p.fake.SetAccount(address, data)
}

func (p *program) handle(tx *solana.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ix := range ledgertest.Instructions(tx) {
		if ix.ProgramID != p.id || len(ix.Data) < protocol.DiscriminatorSize {
			continue
		}
		switch {
		case bytes.Equal(ix.Data[:8], resolveDisc[:]):
			current := p.results[p.config.CurrentEpoch]
			current.State = p.afterResolve
			p.writeResultLocked(current)
		case bytes.Equal(ix.Data[:8], advanceDisc[:]):
			if p.skipAdvance {
				continue
			}
			next := binary.LittleEndian.Uint64(ix.Data[8:16])
			prev := p.results[p.config.CurrentEpoch]
			p.writeResultLocked(protocol.EpochResult{
				Epoch:     next,
				StartAt:   prev.EndAt,
				EndAt:     p.nextEndAt,
				State:     protocol.StateActive,
				PoolCount: prev.PoolCount,
				Bump:      253,
			})
			p.config.CurrentEpoch = next
			p.writeConfigLocked()
		}
	}
}

// sent counts the resolve and advance_epoch instructions that landed.
func (p *program) sent() (resolves, advances []ledgertest.Instruction) {
	for _, ix := range p.fake.SentInstructions() {
		switch {
		case bytes.Equal(ix.Data[:8], resolveDisc[:]):
			resolves = append(resolves, ix)
		case bytes.Equal(ix.Data[:8], advanceDisc[:]):
			advances = append(advances, ix)
		}
	}
	return resolves, advances
}

func (p *program) task(t *testing.T) protocol.Task {
	t.Helper()
	p.mu.Lock()
	epoch := p.config.CurrentEpoch
	result := p.results[epoch]
	p.mu.Unlock()

	configAddress, err := protocol.ConfigAddress(p.id)
	require.NoError(t, err)
	resultAddress, err := protocol.EpochResultAddress(p.id, epoch)
	require.NoError(t, err)
	task := protocol.Task{ProgramID: p.id, ConfigAddress: configAddress, Epoch: epoch}
	task.Apply(resultAddress, result)
	return task
}

var fastRetry = ledger.RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}

func newSubmitter(t *testing.T, writer ledger.Writer) *ledger.Submitter {
	t.Helper()
	s, err := ledger.NewSubmitter(writer, solana.NewWallet().PrivateKey, fastRetry, zerolog.Nop())
	require.NoError(t, err)
	return s
}
