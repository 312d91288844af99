package tx

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/matrixkit/matrixkit-go/retry"
)

var errNotLanded = errors.New("tx: not landed yet")

// Confirm polls the status of sig until it reaches confirmed commitment.
// A transaction that landed with an error returns an *ExecutionError carrying
// the program logs; polling stops at once in that case.
func (a *Assembler) Confirm(ctx context.Context, sig solana.Signature) error {
	_, err := retry.Do(ctx, a.logger, func(int) (struct{}, error) {
		st, err := a.ledger.GetSignatureStatus(ctx, sig)
		if err != nil {
			return struct{}{}, err
		}
		if st == nil {
			return struct{}{}, errNotLanded
		}
		if st.Err != nil {
			return struct{}{}, retry.Permanent(a.executionError(ctx, sig, st.Err))
		}
		if !st.Landed() {
			return struct{}{}, fmt.Errorf("%w: %s", errNotLanded, st.Commitment)
		}
		return struct{}{}, nil
	}, retry.WithPolicy(a.cfg.Confirm))

	switch {
	case err == nil:
		a.logger.Info().Stringer("signature", sig).Msg("transaction confirmed")
		return nil
	case errors.Is(err, retry.ErrExhausted):
		return fmt.Errorf("%w: %s: %w", ErrConfirmationTimeout, sig, err)
	default:
		return err
	}
}

func (a *Assembler) executionError(ctx context.Context, sig solana.Signature, cause interface{}) error {
	logs, err := a.ledger.GetTransactionLogs(ctx, sig)
	if err != nil {
		a.logger.Warn().Err(err).Stringer("signature", sig).Msg("could not fetch transaction logs")
	}
	return &ExecutionError{Signature: sig, Err: cause, Logs: logs}
}
