package protocol

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/rotisserie/eris"
)

const (
	instructionNamespace = "global"

	ResolveInstructionName      = "resolve"
	AdvanceEpochInstructionName = "advance_epoch"
)

var (
	// VRFProgramID is the randomness oracle that answers resolve requests.
	VRFProgramID = solana.MustPublicKeyFromBase58("Vrf1RNUjXmQGjmQrQLvJHs9SNkvDJEsRVFPkfSQUwGz")
	// SlotHashesSysvarID is the SlotHashes sysvar the oracle request reads.
	SlotHashesSysvarID = solana.MustPublicKeyFromBase58("SysvarS1otHashes111111111111111111111111111")
)

// resolveArgs is the argument block of the resolve instruction. Mode 0 asks for oracle resolution.
type resolveArgs struct {
	Mode uint8
}

type advanceEpochArgs struct {
	Epoch uint64
}

// ResolveInstruction asks the program to start resolving the task's current epoch.
//
// Account order: signer, config, epoch result, [oracle queue], system program, program identity,
// VRF program, SlotHashes sysvar, then every pool of the current epoch.
func ResolveInstruction(authority solana.PublicKey, task Task) (*solana.GenericInstruction, error) {
	identity, err := IdentityAddress(task.ProgramID)
	if err != nil {
		return nil, err
	}
	pools, err := PoolAddresses(task.ProgramID, task.PoolCount, task.Epoch)
	if err != nil {
		return nil, err
	}

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(authority, true, true),
		solana.NewAccountMeta(task.ConfigAddress, true, false),
		solana.NewAccountMeta(task.EpochResultAddress, true, false),
	}
	if task.HasOracleQueue() {
		accounts = append(accounts, solana.NewAccountMeta(task.OracleQueue, true, false))
	}
	accounts = append(accounts,
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(identity, false, false),
		solana.NewAccountMeta(VRFProgramID, false, false),
		solana.NewAccountMeta(SlotHashesSysvarID, false, false),
	)
	accounts = appendPools(accounts, pools)

	data, err := instructionData(ResolveInstructionName, resolveArgs{Mode: 0})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(task.ProgramID, accounts, data), nil
}

// AdvanceEpochInstruction asks the program to initialize the epoch after the task's current one.
//
// Account order: signer, config, next epoch result, system program, then every pool of the next
// epoch.
func AdvanceEpochInstruction(authority solana.PublicKey, task Task) (*solana.GenericInstruction, error) {
	next := task.Epoch + 1
	nextResult, err := EpochResultAddress(task.ProgramID, next)
	if err != nil {
		return nil, err
	}
	pools, err := PoolAddresses(task.ProgramID, task.PoolCount, next)
	if err != nil {
		return nil, err
	}

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(authority, true, true),
		solana.NewAccountMeta(task.ConfigAddress, true, false),
		solana.NewAccountMeta(nextResult, true, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}
	accounts = appendPools(accounts, pools)

	data, err := instructionData(AdvanceEpochInstructionName, advanceEpochArgs{Epoch: next})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(task.ProgramID, accounts, data), nil
}

func appendPools(accounts solana.AccountMetaSlice, pools []solana.PublicKey) solana.AccountMetaSlice {
	for _, pool := range pools {
		accounts = append(accounts, solana.NewAccountMeta(pool, true, false))
	}
	return accounts
}

// instructionData frames args behind the instruction's discriminator.
func instructionData(name string, args any) ([]byte, error) {
	disc := Discriminator(instructionNamespace, name)
	buf := new(bytes.Buffer)
	buf.Write(disc[:])
	if err := bin.NewBorshEncoder(buf).Encode(args); err != nil {
		return nil, eris.Wrapf(err, "failed to encode %s arguments", name)
	}
	return buf.Bytes(), nil
}
