package tx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("tx: required parameter is nil")

	// ErrNoInstructions indicates there is nothing to assemble.
	ErrNoInstructions = errors.New("tx: no instructions")

	// ErrTableIncomplete indicates a compressed transaction references an
	// address the lookup table does not hold.
	ErrTableIncomplete = errors.New("tx: lookup table does not cover every account")

	// ErrMultipleSigners indicates an instruction requires a signer other than the payer.
	ErrMultipleSigners = errors.New("tx: only the payer may sign")

	// ErrTransactionTooLarge indicates the serialized transaction exceeds the packet limit.
	ErrTransactionTooLarge = errors.New("tx: transaction too large")

	// ErrSigningFailed indicates transaction signing failed.
	ErrSigningFailed = errors.New("tx: signing failed")

	// ErrConfirmationTimeout indicates the transaction did not land within the
	// confirmation policy.
	ErrConfirmationTimeout = errors.New("tx: confirmation timeout")
)

// ExecutionError reports a transaction that landed but failed on-chain.
// Such failures are business errors and are never retried.
type ExecutionError struct {
	Signature solana.Signature
	Err       interface{}
	Logs      []string
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("tx: %s failed on-chain: %v", e.Signature, e.Err)
	if len(e.Logs) > 0 {
		msg += "\n  " + strings.Join(e.Logs, "\n  ")
	}
	return msg
}
