package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

const (
	defaultConfirmTimeout = 60 * time.Second
	defaultPollInterval   = 500 * time.Millisecond
)

var _ Client = (*RPCClient)(nil)

// RPCClient implements Client over the ledger's JSON-RPC API.
type RPCClient struct {
	rpc *rpc.Client
	log zerolog.Logger

	clock          clock.Clock
	confirmTimeout time.Duration
	pollInterval   time.Duration
}

type RPCOption func(*RPCClient)

func WithLogger(logger zerolog.Logger) RPCOption {
	return func(c *RPCClient) {
		c.log = logger
	}
}

// WithConfirmTimeout bounds how long SendAndConfirm waits for the requested commitment.
func WithConfirmTimeout(timeout time.Duration) RPCOption {
	return func(c *RPCClient) {
		c.confirmTimeout = timeout
	}
}

// WithPollInterval sets how often signature statuses are polled while confirming.
func WithPollInterval(interval time.Duration) RPCOption {
	return func(c *RPCClient) {
		c.pollInterval = interval
	}
}

func WithClock(clk clock.Clock) RPCOption {
	return func(c *RPCClient) {
		c.clock = clk
	}
}

func NewRPCClient(endpoint string, opts ...RPCOption) (*RPCClient, error) {
	if endpoint == "" {
		return nil, eris.New("rpc endpoint must not be empty")
	}
	c := &RPCClient{
		rpc:            rpc.New(endpoint),
		log:            zerolog.Nop(),
		clock:          clock.New(),
		confirmTimeout: defaultConfirmTimeout,
		pollInterval:   defaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.confirmTimeout <= 0 {
		return nil, eris.New("confirm timeout must be positive")
	}
	if c.pollInterval <= 0 {
		return nil, eris.New("poll interval must be positive")
	}
	return c, nil
}

func (c *RPCClient) AccountData(
	ctx context.Context,
	address solana.PublicKey,
	commitment rpc.CommitmentType,
) ([]byte, error) {
	out, err := c.rpc.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, eris.Wrapf(ErrAccountNotFound, "account %s", address)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "failed to get account %s", address)
	}
	if out == nil || out.Value == nil || out.Value.Data == nil {
		return nil, eris.Wrapf(ErrAccountNotFound, "account %s", address)
	}
	return out.Value.Data.GetBinary(), nil
}

func (c *RPCClient) Slot(ctx context.Context, commitment rpc.CommitmentType) (uint64, error) {
	slot, err := c.rpc.GetSlot(ctx, commitment)
	if err != nil {
		return 0, eris.Wrap(err, "failed to get slot")
	}
	return slot, nil
}

func (c *RPCClient) BlockTime(ctx context.Context, slot uint64) (int64, error) {
	out, err := c.rpc.GetBlockTime(ctx, slot)
	if err != nil {
		var rpcErr *jsonrpc.RPCError
		if errors.As(err, &rpcErr) && isMissingBlock(rpcErr.Code) {
			return 0, eris.Wrapf(ErrBlockTimeUnavailable, "slot %d: %s", slot, rpcErr.Message)
		}
		return 0, eris.Wrapf(err, "failed to get block time for slot %d", slot)
	}
	if out == nil {
		return 0, eris.Wrapf(ErrBlockTimeUnavailable, "slot %d", slot)
	}
	return int64(*out), nil
}

func isMissingBlock(code int) bool {
	switch code {
	case codeBlockNotAvailable, codeSlotSkipped, codeLongTermStorageSlotSkip:
		return true
	default:
		return false
	}
}

func (c *RPCClient) LatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (solana.Hash, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, commitment)
	if err != nil {
		return solana.Hash{}, eris.Wrap(err, "failed to get latest blockhash")
	}
	if out == nil || out.Value == nil {
		return solana.Hash{}, eris.New("ledger returned no blockhash")
	}
	return out.Value.Blockhash, nil
}

func (c *RPCClient) SendAndConfirm(
	ctx context.Context,
	tx *solana.Transaction,
	commitment rpc.CommitmentType,
) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: commitment,
	})
	if err != nil {
		return solana.Signature{}, eris.Wrap(err, "failed to send transaction")
	}
	c.log.Debug().Str("signature", sig.String()).Msg("transaction sent, waiting for confirmation")

	if err := c.awaitConfirmation(ctx, sig, commitment); err != nil {
		return sig, err
	}
	return sig, nil
}

// awaitConfirmation polls the signature status until it reaches commitment, the transaction fails,
// or the confirm timeout passes. Status lookups that fail are retried until the timeout.
func (c *RPCClient) awaitConfirmation(
	ctx context.Context,
	sig solana.Signature,
	commitment rpc.CommitmentType,
) error {
	deadline := c.clock.Now().Add(c.confirmTimeout)
	for {
		out, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
		switch {
		case err != nil:
			c.log.Debug().Err(err).Str("signature", sig.String()).Msg("signature status lookup failed")
		case out != nil && len(out.Value) > 0 && out.Value[0] != nil:
			status := out.Value[0]
			if status.Err != nil {
				return eris.Wrap(&TransactionError{Signature: sig, Reason: status.Err}, "transaction rejected")
			}
			if reached(status.ConfirmationStatus, commitment) {
				return nil
			}
		}

		if !c.clock.Now().Before(deadline) {
			return eris.Wrapf(ErrConfirmationTimeout, "signature %s after %s", sig, c.confirmTimeout)
		}
		select {
		case <-ctx.Done():
			return eris.Wrapf(ctx.Err(), "stopped waiting for signature %s", sig)
		case <-c.clock.After(c.pollInterval):
		}
	}
}

func commitmentRank(commitment rpc.CommitmentType) int {
	switch commitment { //nolint:exhaustive // deprecated levels are not used
	case rpc.CommitmentProcessed:
		return 0
	case rpc.CommitmentConfirmed:
		return 1
	case rpc.CommitmentFinalized:
		return 2 //nolint:gomnd // rank
	default:
		return 1
	}
}

func statusRank(status rpc.ConfirmationStatusType) int {
	switch status {
	case rpc.ConfirmationStatusProcessed:
		return 0
	case rpc.ConfirmationStatusConfirmed:
		return 1
	case rpc.ConfirmationStatusFinalized:
		return 2 //nolint:gomnd // rank
	default:
		return -1
	}
}

func reached(status rpc.ConfirmationStatusType, commitment rpc.CommitmentType) bool {
	return statusRank(status) >= commitmentRank(commitment)
}
