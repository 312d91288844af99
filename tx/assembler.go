// Package tx assembles, signs, submits and confirms the transactions of a
// registration, in legacy form or compressed through a lookup table.
package tx

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/rs/zerolog"

	"github.com/matrixkit/matrixkit-go/alt"
	"github.com/matrixkit/matrixkit-go/network"
	"github.com/matrixkit/matrixkit-go/retry"
)

// MaxTransactionSize is the largest serialized transaction the ledger accepts.
const MaxTransactionSize = 1232

// Config holds the compute budget and confirmation policy.
type Config struct {
	ComputeUnitLimit uint32
	// ComputeUnitPrice is the priority fee in micro-lamports per unit.
	ComputeUnitPrice uint64
	Confirm          retry.Policy
}

// Assembler builds transactions paid and signed by a single wallet.
type Assembler struct {
	ledger network.LedgerService
	payer  solana.PrivateKey
	cfg    Config
	logger zerolog.Logger
}

// Compile-time interface check.
var _ alt.Submitter = (*Assembler)(nil)

// NewAssembler returns an assembler signing with payer.
func NewAssembler(ledger network.LedgerService, payer solana.PrivateKey, cfg Config, logger zerolog.Logger) *Assembler {
	return &Assembler{
		ledger: ledger,
		payer:  payer,
		cfg:    cfg,
		logger: logger.With().Str("component", "assembler").Logger(),
	}
}

// Payer returns the fee payer and sole signer.
func (a *Assembler) Payer() solana.PublicKey { return a.payer.PublicKey() }

// BudgetInstructions returns the compute-unit limit and price instructions
// placed ahead of every transaction.
func (a *Assembler) BudgetInstructions() ([]solana.Instruction, error) {
	limit, err := computebudget.NewSetComputeUnitLimitInstruction(a.cfg.ComputeUnitLimit).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("tx: build compute unit limit instruction: %w", err)
	}
	price, err := computebudget.NewSetComputeUnitPriceInstruction(a.cfg.ComputeUnitPrice).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("tx: build compute unit price instruction: %w", err)
	}
	return []solana.Instruction{limit, price}, nil
}

// Assemble prepends the compute budget to instructions, fetches a fresh
// blockhash and returns the signed transaction. In ModeCompressed every
// account other than signers and invoked programs must be in table.
func (a *Assembler) Assemble(ctx context.Context, instructions []solana.Instruction, mode Mode, table *alt.Handle) (*solana.Transaction, error) {
	if len(instructions) == 0 {
		return nil, ErrNoInstructions
	}
	payer := a.payer.PublicKey()

	budget, err := a.BudgetInstructions()
	if err != nil {
		return nil, err
	}
	all := append(budget, instructions...)

	for i, ix := range all {
		for _, meta := range ix.Accounts() {
			if meta.IsSigner && !meta.PublicKey.Equals(payer) {
				return nil, fmt.Errorf("%w: instruction %d wants %s", ErrMultipleSigners, i, meta.PublicKey)
			}
		}
	}

	opts := []solana.TransactionOption{solana.TransactionPayer(payer)}
	if mode == ModeCompressed {
		if table == nil {
			return nil, fmt.Errorf("%w: table", ErrNilParam)
		}
		var missing int
		for _, addr := range LookupAddresses(all) {
			if !table.Contains(addr) {
				missing++
			}
		}
		if missing > 0 {
			return nil, fmt.Errorf("%w: %d addresses missing from %s", ErrTableIncomplete, missing, table.Address)
		}
		opts = append(opts, solana.TransactionAddressTables(table.AddressTables()))
	}

	blockhash, err := a.ledger.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("tx: fetch blockhash: %w", err)
	}

	txn, err := solana.NewTransaction(all, blockhash, opts...)
	if err != nil {
		return nil, fmt.Errorf("tx: build %s transaction: %w", mode, err)
	}
	if _, err := txn.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer) {
			return &a.payer
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}

	raw, err := txn.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("tx: serialize: %w", err)
	}
	if len(raw) > MaxTransactionSize {
		return nil, fmt.Errorf("%w: %d bytes (limit %d, mode %s)", ErrTransactionTooLarge, len(raw), MaxTransactionSize, mode)
	}

	a.logger.Debug().
		Stringer("mode", mode).
		Int("instructions", len(all)).
		Int("accounts", len(txn.Message.AccountKeys)).
		Int("bytes", len(raw)).
		Msg("transaction assembled")
	return txn, nil
}

// Submit broadcasts txn without preflight simulation.
func (a *Assembler) Submit(ctx context.Context, txn *solana.Transaction) (solana.Signature, error) {
	if txn == nil {
		return solana.Signature{}, fmt.Errorf("%w: transaction", ErrNilParam)
	}
	sig, err := a.ledger.SendTransaction(ctx, txn)
	if err != nil {
		return solana.Signature{}, err
	}
	a.logger.Info().Stringer("signature", sig).Msg("transaction submitted")
	return sig, nil
}

// SubmitAndConfirm assembles instructions as a legacy transaction, submits
// it and waits for it to land.
func (a *Assembler) SubmitAndConfirm(ctx context.Context, instructions []solana.Instruction) (solana.Signature, error) {
	txn, err := a.Assemble(ctx, instructions, ModeDirect, nil)
	if err != nil {
		return solana.Signature{}, err
	}
	sig, err := a.Submit(ctx, txn)
	if err != nil {
		return solana.Signature{}, err
	}
	if err := a.Confirm(ctx, sig); err != nil {
		return sig, err
	}
	return sig, nil
}

// LookupAddresses returns the accounts of instructions that a lookup table
// can stand in for: every account that is neither a signer nor an invoked
// program, deduplicated in first-use order.
func LookupAddresses(instructions []solana.Instruction) []solana.PublicKey {
	programs := make(map[solana.PublicKey]bool, len(instructions))
	signers := make(map[solana.PublicKey]bool)
	for _, ix := range instructions {
		programs[ix.ProgramID()] = true
		for _, meta := range ix.Accounts() {
			if meta.IsSigner {
				signers[meta.PublicKey] = true
			}
		}
	}

	seen := make(map[solana.PublicKey]bool)
	var out []solana.PublicKey
	for _, ix := range instructions {
		for _, meta := range ix.Accounts() {
			key := meta.PublicKey
			if signers[key] || programs[key] || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}
