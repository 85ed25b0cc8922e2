// Package ledgertest provides an in-memory ledger for tests.
package ledgertest

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rotisserie/eris"

	"github.com/argus-labs/epoch-keeper/internal/ledger"
)

const (
	MethodAccountData     = "AccountData"
	MethodSlot            = "Slot"
	MethodBlockTime       = "BlockTime"
	MethodLatestBlockhash = "LatestBlockhash"
	MethodSendAndConfirm  = "SendAndConfirm"
)

var _ ledger.Client = (*Fake)(nil)

// Instruction is a sent instruction with its account indexes resolved against the message.
type Instruction struct {
	ProgramID solana.PublicKey
	Accounts  []solana.PublicKey
	Data      []byte
}

// Fake is an in-memory ledger. Accounts, the latest slot and block times are set by the test;
// sends can be made to fail and can trigger a hook that moves the fake's state forward, the way
// the real program would after a transaction lands.
type Fake struct {
	mu sync.Mutex

	accounts   map[solana.PublicKey][]byte
	slot       uint64
	blockTimes map[uint64]int64
	blockhash  uint64

	slotErr      error
	blockTimeErr error
	sendFaults   []error
	onSend       func(tx *solana.Transaction)

	sent        []*solana.Transaction
	calls       map[string]int
	commitments map[string][]rpc.CommitmentType
}

func New() *Fake {
	return &Fake{
		accounts:    make(map[solana.PublicKey][]byte),
		blockTimes:  make(map[uint64]int64),
		calls:       make(map[string]int),
		commitments: make(map[string][]rpc.CommitmentType),
	}
}

func (f *Fake) SetAccount(address solana.PublicKey, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[address] = append([]byte(nil), data...)
}

func (f *Fake) DeleteAccount(address solana.PublicKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.accounts, address)
}

// SetSlot sets the latest slot and the block time recorded for it.
func (f *Fake) SetSlot(slot uint64, blockTime int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slot = slot
	f.blockTimes[slot] = blockTime
}

// SetSlotWithoutTime sets the latest slot without recording a block time for it.
func (f *Fake) SetSlotWithoutTime(slot uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slot = slot
	delete(f.blockTimes, slot)
}

func (f *Fake) FailSlot(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slotErr = err
}

func (f *Fake) FailBlockTime(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockTimeErr = err
}

// FailSends queues errors returned by the next sends, one per call. A nil entry lets that send
// succeed. A *ledger.TransactionError or ledger.ErrConfirmationTimeout counts as broadcast: the
// signature is returned with it.
func (f *Fake) FailSends(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendFaults = append(f.sendFaults, errs...)
}

// OnSend registers a hook called after every successful send, outside the fake's lock.
func (f *Fake) OnSend(hook func(tx *solana.Transaction)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onSend = hook
}

func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *Fake) Commitments(method string) []rpc.CommitmentType {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]rpc.CommitmentType(nil), f.commitments[method]...)
}

// Sent returns the transactions that were confirmed, in order.
func (f *Fake) Sent() []*solana.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*solana.Transaction(nil), f.sent...)
}

// SentInstructions flattens the instructions of every confirmed transaction.
func (f *Fake) SentInstructions() []Instruction {
	var out []Instruction
	for _, tx := range f.Sent() {
		out = append(out, Instructions(tx)...)
	}
	return out
}

// Instructions resolves the compiled instructions of tx.
func Instructions(tx *solana.Transaction) []Instruction {
	keys := tx.Message.AccountKeys
	out := make([]Instruction, 0, len(tx.Message.Instructions))
	for _, ci := range tx.Message.Instructions {
		accounts := make([]solana.PublicKey, 0, len(ci.Accounts))
		for _, idx := range ci.Accounts {
			accounts = append(accounts, keys[idx])
		}
		out = append(out, Instruction{
			ProgramID: keys[ci.ProgramIDIndex],
			Accounts:  accounts,
			Data:      append([]byte(nil), ci.Data...),
		})
	}
	return out
}

func (f *Fake) record(method string, commitment rpc.CommitmentType) {
	f.calls[method]++
	if commitment != "" {
		f.commitments[method] = append(f.commitments[method], commitment)
	}
}

func (f *Fake) AccountData(
	_ context.Context,
	address solana.PublicKey,
	commitment rpc.CommitmentType,
) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(MethodAccountData, commitment)
	data, ok := f.accounts[address]
	if !ok {
		return nil, eris.Wrapf(ledger.ErrAccountNotFound, "account %s", address)
	}
	return append([]byte(nil), data...), nil
}

func (f *Fake) Slot(_ context.Context, commitment rpc.CommitmentType) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(MethodSlot, commitment)
	if f.slotErr != nil {
		return 0, f.slotErr
	}
	return f.slot, nil
}

func (f *Fake) BlockTime(_ context.Context, slot uint64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(MethodBlockTime, "")
	if f.blockTimeErr != nil {
		return 0, f.blockTimeErr
	}
	t, ok := f.blockTimes[slot]
	if !ok {
		return 0, eris.Wrapf(ledger.ErrBlockTimeUnavailable, "slot %d", slot)
	}
	return t, nil
}

func (f *Fake) LatestBlockhash(_ context.Context, commitment rpc.CommitmentType) (solana.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(MethodLatestBlockhash, commitment)
	f.blockhash++
	var h solana.Hash
	binary.LittleEndian.PutUint64(h[:], f.blockhash)
	return h, nil
}

func (f *Fake) SendAndConfirm(
	_ context.Context,
	tx *solana.Transaction,
	commitment rpc.CommitmentType,
) (solana.Signature, error) {
	f.mu.Lock()
	f.record(MethodSendAndConfirm, commitment)
	if len(f.sendFaults) > 0 {
		fault := f.sendFaults[0]
		f.sendFaults = f.sendFaults[1:]
		if fault != nil {
			var sig solana.Signature
			if reachedLedger(fault) {
				f.sent = append(f.sent, tx)
				sig = firstSignature(tx)
			}
			f.mu.Unlock()
			return sig, fault
		}
	}
	f.sent = append(f.sent, tx)
	sig := firstSignature(tx)
	hook := f.onSend
	f.mu.Unlock()

	if hook != nil {
		hook(tx)
	}
	return sig, nil
}

// reachedLedger reports whether a send fault happens after broadcast, in which case the real client
// returns the transaction's signature along with the error. The transaction is recorded as sent but
// the OnSend hook does not run.
func reachedLedger(fault error) bool {
	var rejected *ledger.TransactionError
	return errors.Is(fault, ledger.ErrConfirmationTimeout) || errors.As(fault, &rejected)
}

func firstSignature(tx *solana.Transaction) solana.Signature {
	if len(tx.Signatures) == 0 {
		return solana.Signature{}
	}
	return tx.Signatures[0]
}
