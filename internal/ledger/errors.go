package ledger

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrBlockTimeUnavailable = errors.New("block time not available for slot")
	ErrConfirmationTimeout  = errors.New("transaction was not confirmed in time")
)

// JSON-RPC error codes the ledger returns when a slot has no block (and therefore no time).
const (
	codeBlockNotAvailable       = -32004
	codeSlotSkipped             = -32007
	codeLongTermStorageSlotSkip = -32009
)

// TransactionError is returned when a transaction landed but the program rejected it.
type TransactionError struct {
	Signature solana.Signature
	Reason    any
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s failed: %v", e.Signature, e.Reason)
}
