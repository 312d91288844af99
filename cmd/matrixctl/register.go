package main

import (
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"

	"github.com/matrixkit/matrixkit-go/config"
	"github.com/matrixkit/matrixkit-go/journal"
	"github.com/matrixkit/matrixkit-go/register"
	"github.com/matrixkit/matrixkit-go/tx"
	"github.com/matrixkit/matrixkit-go/wallet"
)

func registerCommand() *cli.Command {
	return &cli.Command{
		Name:      "register",
		Usage:     "register the wallet under a referrer",
		ArgsUsage: "<wallet-key-file> <config-file> <referrer-wallet> [lookup-table]",
		Flags: []cli.Flag{
			&cli.Uint64Flag{Name: "deposit", Usage: "deposit in lamports; defaults to the config file's deposit_lamports"},
			&cli.BoolFlag{Name: "no-journal", Usage: "do not record the attempt in the local journal"},
		},
		Action: runRegister,
	}
}

func runRegister(c *cli.Context) error {
	if err := argCount(c, 3, 4); err != nil {
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
	referrer, err := solana.PublicKeyFromBase58(c.Args().Get(2))
	if err != nil {
		return fmt.Errorf("referrer wallet: %w", err)
	}
	req := register.Request{
		Payer:          payer,
		ReferrerWallet: referrer,
		Deposit:        c.Uint64("deposit"),
	}
	if c.NArg() == 4 {
		table, err := solana.PublicKeyFromBase58(c.Args().Get(3))
		if err != nil {
			return fmt.Errorf("lookup table: %w", err)
		}
		req.LookupTable = &table
	}

	if err := s.connect(c); err != nil {
		return err
	}
	rt := s.cfg.Runtime
	orch, err := register.NewOrchestrator(s.ledger, s.protocol, register.Options{
		Tx: tx.Config{
			ComputeUnitLimit: rt.ComputeUnitLimit,
			ComputeUnitPrice: rt.ComputeUnitPrice,
			Confirm:          rt.ConfirmPolicy(),
		},
		TablePolicy: rt.TablePolicy(),
		ExtendBatch: rt.ExtendBatch,
		FeeReserve:  rt.FeeReserve,
	}, s.logger)
	if err != nil {
		return err
	}

	if !c.Bool("no-journal") {
		store, err := journal.Open(s.cfg.JournalPath())
		if err != nil {
			return err
		}
		defer store.Close()
		orch.Journal = store
	}

	res, err := orch.Register(c.Context, req)
	printResult(c, res)
	return err
}

func printResult(c *cli.Context, res *register.Result) {
	if res == nil {
		return
	}
	w := c.App.Writer
	fmt.Fprintf(w, "stage:              %s\n", res.Stage)
	if res.Stage == register.StageAborted {
		fmt.Fprintf(w, "failed at:          %s (%s)\n", res.FailedStage, res.Category)
	}
	fmt.Fprintf(w, "user account:       %s\n", res.User)
	fmt.Fprintf(w, "referrer account:   %s\n", res.Referrer)
	if res.Slot > 0 {
		fmt.Fprintf(w, "slot:               %d\n", res.Slot)
	}
	fmt.Fprintf(w, "uplines:            %d\n", res.Uplines)
	fmt.Fprintf(w, "remaining accounts: %d\n", res.RemainingAccounts)
	fmt.Fprintf(w, "mode:               %s\n", res.Mode)
	if !res.LookupTable.IsZero() {
		fmt.Fprintf(w, "lookup table:       %s\n", res.LookupTable)
	}
	if res.Signature != (solana.Signature{}) {
		fmt.Fprintf(w, "signature:          %s\n", res.Signature)
	}
}

func sealKeyCommand() *cli.Command {
	return &cli.Command{
		Name:      "seal-key",
		Usage:     "encrypt a keypair file with the passphrase in MATRIX_KEY_PASSPHRASE",
		ArgsUsage: "<keypair-file> <sealed-file>",
		Action: func(c *cli.Context) error {
			if err := argCount(c, 2, 2); err != nil {
				return err
			}
			pub, err := wallet.SealKeypairFile(c.Args().Get(0), c.Args().Get(1), os.Getenv(config.EnvPrefix+"KEY_PASSPHRASE"))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "sealed keypair for %s written to %s\n", pub, c.Args().Get(1))
			return nil
		},
	}
}
