package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = time.Second
)

// RetryPolicy bounds the attempts made to land a single transaction. Only the submission is retried;
// callers decide what to do once it is exhausted.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		Delay:       DefaultRetryDelay,
	}
}

func (p RetryPolicy) validate() error {
	if p.MaxAttempts < 1 {
		return eris.Errorf("max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.Delay < 0 {
		return eris.New("retry delay must not be negative")
	}
	return nil
}

// Submission is the outcome of a landed transaction.
type Submission struct {
	Signature solana.Signature
	Attempts  int
}

// Submitter signs instructions with the keeper's key and lands them on the ledger.
type Submitter struct {
	client     Writer
	signer     solana.PrivateKey
	policy     RetryPolicy
	commitment rpc.CommitmentType
	log        zerolog.Logger
}

func NewSubmitter(
	client Writer,
	signer solana.PrivateKey,
	policy RetryPolicy,
	logger zerolog.Logger,
) (*Submitter, error) {
	if client == nil {
		return nil, eris.New("submitter requires a non-nil ledger writer")
	}
	if len(signer) == 0 {
		return nil, eris.New("submitter requires a signing key")
	}
	if err := policy.validate(); err != nil {
		return nil, eris.Wrap(err, "invalid retry policy")
	}
	return &Submitter{
		client:     client,
		signer:     signer,
		policy:     policy,
		commitment: rpc.CommitmentConfirmed,
		log:        logger,
	}, nil
}

// Authority is the public key that pays for and signs every submission.
func (s *Submitter) Authority() solana.PublicKey {
	return s.signer.PublicKey()
}

// Submit builds a transaction around ix and sends it until it is confirmed or the retry policy is
// exhausted. Every attempt uses a fresh blockhash, since an expired blockhash is the most common
// reason an attempt fails. The returned error wraps the error of the last attempt.
//
// A transaction the program rejected (*TransactionError) is not retried. A confirmation timeout is,
// and the timed-out transaction may still land, so one instruction can be broadcast twice; the
// program must reject the duplicate. On failure, the returned Submission carries the signature of
// the last transaction that reached the ledger, if any.
func (s *Submitter) Submit(ctx context.Context, ix solana.Instruction) (Submission, error) {
	var (
		attempts  int
		signature solana.Signature
	)
	payer := s.signer.PublicKey()

	operation := func() error {
		attempts++
		blockhash, err := s.client.LatestBlockhash(ctx, s.commitment)
		if err != nil {
			return eris.Wrapf(err, "attempt %d", attempts)
		}

		tx, err := solana.NewTransaction([]solana.Instruction{ix}, blockhash, solana.TransactionPayer(payer))
		if err != nil {
			return backoff.Permanent(eris.Wrap(err, "failed to build transaction"))
		}
		_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
			if key == payer {
				return &s.signer
			}
			return nil
		})
		if err != nil {
			return backoff.Permanent(eris.Wrap(err, "failed to sign transaction"))
		}

		sig, err := s.client.SendAndConfirm(ctx, tx, s.commitment)
		if sig != (solana.Signature{}) {
			signature = sig
		}
		var rejected *TransactionError
		if errors.As(err, &rejected) {
			return backoff.Permanent(eris.Wrapf(err, "attempt %d", attempts))
		}
		if err != nil {
			return eris.Wrapf(err, "attempt %d", attempts)
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(s.policy.Delay),
			uint64(s.policy.MaxAttempts-1), //nolint:gosec // validated to be >= 1
		),
		ctx,
	)
	notify := func(err error, next time.Duration) {
		s.log.Warn().
			Err(err).
			Int("attempt", attempts).
			Int("max_attempts", s.policy.MaxAttempts).
			Dur("retry_in", next).
			Msg("transaction submission failed, retrying")
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return Submission{Signature: signature, Attempts: attempts},
			eris.Wrapf(err, "submission failed after %d attempts", attempts)
	}
	return Submission{Signature: signature, Attempts: attempts}, nil
}
