package main

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"

	"github.com/matrixkit/matrixkit-go/alt"
	"github.com/matrixkit/matrixkit-go/matrix"
	"github.com/matrixkit/matrixkit-go/register"
)

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "show a participant's record and the program state",
		ArgsUsage: "<config-file> <wallet-address>",
		Action:    runInspect,
	}
}

func runInspect(c *cli.Context) error {
	if err := argCount(c, 2, 2); err != nil {
		return err
	}
	s, err := openSession(c, c.Args().Get(0))
	if err != nil {
		return err
	}
	owner, err := solana.PublicKeyFromBase58(c.Args().Get(1))
	if err != nil {
		return fmt.Errorf("wallet: %w", err)
	}
	if err := s.connect(c); err != nil {
		return err
	}

	reader := matrix.NewStateReader(s.ledger, s.protocol, s.logger)
	w := c.App.Writer

	token, err := s.protocol.TokenAccount(owner)
	if err != nil {
		return err
	}
	addr, rec, err := reader.FetchUserByWallet(c.Context, owner)
	fmt.Fprintf(w, "user account:   %s\n", addr)
	fmt.Fprintf(w, "token account:  %s\n", token)
	switch {
	case errors.Is(err, matrix.ErrNotFound):
		fmt.Fprintln(w, "registered:     no (no account)")
	case err != nil:
		return err
	default:
		resolver := register.NewResolver(reader, s.protocol, s.logger)
		fmt.Fprintf(w, "registered:     %t\n", rec.IsRegistered)
		fmt.Fprintf(w, "owner:          %s\n", rec.Owner)
		fmt.Fprintf(w, "filled slots:   %d/%d\n", rec.Chain.FilledSlots, matrix.SlotCount)
		for i, slot := range rec.Chain.Slots[:rec.Chain.FilledSlots] {
			fmt.Fprintf(w, "  slot %d:       %s\n", i+1, slot)
		}
		fmt.Fprintf(w, "upline depth:   %d (base: %t)\n", rec.Upline.Depth, rec.IsBase())
		for i, e := range rec.Upline.Entries {
			fmt.Fprintf(w, "  upline %d:     %s (wallet %s)\n", i, e.Account, e.Wallet)
		}
		fmt.Fprintf(w, "next needs uplines: %t\n", resolver.NeedsUplines(rec))
		fmt.Fprintf(w, "rewards:        earned %d, claimed %d, last period %d\n", rec.Rewards.Earned, rec.Rewards.Claimed, rec.Rewards.LastPeriod)
	}

	st, err := reader.FetchProgramState(c.Context, s.protocol.State)
	if err != nil {
		return fmt.Errorf("program state: %w", err)
	}
	fmt.Fprintf(w, "program state:  %s\n", s.protocol.State)
	fmt.Fprintf(w, "  owner:        %s\n", st.Owner)
	fmt.Fprintf(w, "  users:        %d\n", st.TotalUsers)
	fmt.Fprintf(w, "  period:       %d\n", st.CurrentPeriod)
	return nil
}

func tableCommand() *cli.Command {
	return &cli.Command{
		Name:      "table",
		Usage:     "show the contents of a lookup table",
		ArgsUsage: "<config-file> <table-address>",
		Action:    runTable,
	}
}

func runTable(c *cli.Context) error {
	if err := argCount(c, 2, 2); err != nil {
		return err
	}
	s, err := openSession(c, c.Args().Get(0))
	if err != nil {
		return err
	}
	addr, err := solana.PublicKeyFromBase58(c.Args().Get(1))
	if err != nil {
		return fmt.Errorf("table: %w", err)
	}
	if err := s.connect(c); err != nil {
		return err
	}

	acct, err := s.ledger.GetAccount(c.Context, addr)
	if err != nil {
		return err
	}
	if !acct.Owner.Equals(alt.ProgramID) {
		return fmt.Errorf("%w: %s owned by %s", alt.ErrNotLookupTable, addr, acct.Owner)
	}
	st, err := alt.DecodeState(acct.Data)
	if err != nil {
		return err
	}
	printTable(c, addr, st)
	return nil
}

func printTable(c *cli.Context, addr solana.PublicKey, st *alt.State) {
	w := c.App.Writer
	fmt.Fprintf(w, "table:      %s\n", addr)
	if st.Authority != nil {
		fmt.Fprintf(w, "authority:  %s\n", st.Authority)
	} else {
		fmt.Fprintln(w, "authority:  none (frozen)")
	}
	fmt.Fprintf(w, "active:     %t\n", st.Active())
	fmt.Fprintf(w, "addresses:  %d/%d\n", len(st.Addresses), alt.Capacity)
	for i, a := range st.Addresses {
		fmt.Fprintf(w, "  %3d  %s\n", i, a)
	}
}
