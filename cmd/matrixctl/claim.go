package main

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"

	"github.com/matrixkit/matrixkit-go/matrix"
	"github.com/matrixkit/matrixkit-go/tx"
	"github.com/matrixkit/matrixkit-go/wallet"
)

var errNotRegistered = errors.New("wallet is not registered")

func claimCommand() *cli.Command {
	return &cli.Command{
		Name:      "claim",
		Usage:     "claim the registered wallet's accrued rewards",
		ArgsUsage: "<wallet-key-file> <config-file>",
		Action:    runClaim,
	}
}

func runClaim(c *cli.Context) error {
	if err := argCount(c, 2, 2); err != nil {
		return err
	}
	s, err := openSession(c, c.Args().Get(1))
	if err != nil {
		return err
	}
	payer, err := wallet.LoadKeypairWithPassphrase(c.Args().Get(0), s.cfg.Runtime.KeyPassphrase)
	if err != nil {
		return err
	}
	ix, err := matrix.BuildClaimInstruction(s.protocol, payer.PublicKey())
	if err != nil {
		return err
	}
	if err := s.connect(c); err != nil {
		return err
	}

	reader := matrix.NewStateReader(s.ledger, s.protocol, s.logger)
	addr, before, err := reader.FetchUserByWallet(c.Context, payer.PublicKey())
	if errors.Is(err, matrix.ErrNotFound) || (err == nil && !before.IsRegistered) {
		return fmt.Errorf("%w: %s", errNotRegistered, payer.PublicKey())
	}
	if err != nil {
		return err
	}

	rt := s.cfg.Runtime
	assembler := tx.NewAssembler(s.ledger, payer, tx.Config{
		ComputeUnitLimit: rt.ComputeUnitLimit,
		ComputeUnitPrice: rt.ComputeUnitPrice,
		Confirm:          rt.ConfirmPolicy(),
	}, s.logger)
	sig, err := assembler.SubmitAndConfirm(c.Context, []solana.Instruction{ix})
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "user account:  %s\n", addr)
	fmt.Fprintf(w, "signature:     %s\n", sig)
	after, err := reader.FetchUserRecord(c.Context, addr)
	if err != nil {
		s.logger.Warn().Err(err).Msg("claim confirmed but the record could not be re-read")
		return nil
	}
	fmt.Fprintf(w, "claimed:       %d -> %d\n", before.Rewards.Claimed, after.Rewards.Claimed)
	return nil
}
