// Package ledger is the keeper's boundary to the remote ledger: reading accounts, slots and block
// times, and submitting signed transactions.
package ledger

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

//go:generate mockgen -source=client.go -package mocks -destination=mocks/client.go

// Client provides everything the keeper needs from the ledger.
type Client interface {
	Reader
	Writer
}

// Reader provides read access to ledger state.
type Reader interface {
	// AccountData returns the raw data of the account at address, read at the given commitment.
	// It returns ErrAccountNotFound if the account does not exist.
	AccountData(ctx context.Context, address solana.PublicKey, commitment rpc.CommitmentType) ([]byte, error)

	// Slot returns the most recent slot that reached the given commitment.
	Slot(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)

	// BlockTime returns the unix timestamp the ledger recorded for slot. It returns
	// ErrBlockTimeUnavailable if the ledger has no time for that slot.
	BlockTime(ctx context.Context, slot uint64) (int64, error)
}

// Writer provides the functionality to submit transactions to the ledger.
type Writer interface {
	// LatestBlockhash returns the recent blockhash new transactions should be anchored to.
	LatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (solana.Hash, error)

	// SendAndConfirm broadcasts tx and waits until it reaches the given commitment.
	SendAndConfirm(
		ctx context.Context,
		tx *solana.Transaction,
		commitment rpc.CommitmentType,
	) (solana.Signature, error)
}
