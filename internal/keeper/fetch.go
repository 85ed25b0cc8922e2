package keeper

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rotisserie/eris"

	"github.com/argus-labs/epoch-keeper/internal/ledger"
	"github.com/argus-labs/epoch-keeper/internal/protocol"
)

// Reads are made at confirmed commitment: finalized lags too far behind for deadlines measured in
// seconds, and processed can still be rolled back.
const readCommitment = rpc.CommitmentConfirmed

// Fetcher builds a Task from the program's accounts.
type Fetcher struct {
	reader        ledger.Reader
	program       solana.PublicKey
	configAddress solana.PublicKey
	oracleQueue   solana.PublicKey
}

// NewFetcher derives the program's config address up front, so a bad program id fails at startup.
// oracleQueue may be the zero key.
func NewFetcher(reader ledger.Reader, program, oracleQueue solana.PublicKey) (*Fetcher, error) {
	if reader == nil {
		return nil, eris.New("fetcher requires a ledger reader")
	}
	configAddress, err := protocol.ConfigAddress(program)
	if err != nil {
		return nil, eris.Wrap(err, "failed to derive config address")
	}
	return &Fetcher{
		reader:        reader,
		program:       program,
		configAddress: configAddress,
		oracleQueue:   oracleQueue,
	}, nil
}

// Config reads and decodes the program's config account.
func (f *Fetcher) Config(ctx context.Context) (protocol.Config, error) {
	data, err := f.reader.AccountData(ctx, f.configAddress, readCommitment)
	if err != nil {
		return protocol.Config{}, eris.Wrapf(err, "failed to read config account %s", f.configAddress)
	}
	return protocol.DecodeConfig(data)
}

// Fetch reads the config to find the current epoch, then reads that epoch's result.
func (f *Fetcher) Fetch(ctx context.Context) (protocol.Task, error) {
	cfg, err := f.Config(ctx)
	if err != nil {
		return protocol.Task{}, err
	}

	task := protocol.Task{
		ProgramID:     f.program,
		ConfigAddress: f.configAddress,
		OracleQueue:   f.oracleQueue,
		Epoch:         cfg.CurrentEpoch,
	}
	if err := refresh(ctx, f.reader, &task); err != nil {
		return protocol.Task{}, err
	}
	return task, nil
}

// refresh re-reads the result account of task.Epoch and overwrites the observed fields of task.
// A missing or undecodable account is an error; nothing is written to task in that case.
func refresh(ctx context.Context, reader ledger.Reader, task *protocol.Task) error {
	address, err := protocol.EpochResultAddress(task.ProgramID, task.Epoch)
	if err != nil {
		return eris.Wrapf(err, "failed to derive epoch result address for epoch %d", task.Epoch)
	}
	data, err := reader.AccountData(ctx, address, readCommitment)
	if err != nil {
		return eris.Wrapf(err, "failed to read epoch result %d at %s", task.Epoch, address)
	}
	result, err := protocol.DecodeEpochResult(data)
	if err != nil {
		return eris.Wrapf(err, "epoch result %d at %s", task.Epoch, address)
	}
	task.Apply(address, result)
	return nil
}
