package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/matrixkit/matrixkit-go/journal"
)

func journalCommand() *cli.Command {
	return &cli.Command{
		Name:      "journal",
		Usage:     "list recorded registration attempts and lookup tables",
		ArgsUsage: "<config-file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "incomplete", Usage: "list only lookup tables that were never verified complete"},
		},
		Action: runJournal,
	}
}

func runJournal(c *cli.Context) error {
	if err := argCount(c, 1, 1); err != nil {
		return err
	}
	s, err := openSession(c, c.Args().Get(0))
	if err != nil {
		return err
	}
	store, err := journal.Open(s.cfg.JournalPath())
	if err != nil {
		return err
	}
	defer store.Close()

	attempts, err := store.ListAttempts()
	if err != nil {
		return err
	}
	tables, err := store.ListTables()
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "attempts: %d\n", len(attempts))
	for _, a := range attempts {
		outcome := "ok"
		if !a.Succeeded {
			outcome = "aborted (" + a.Category + ")"
		}
		fmt.Fprintf(w, "  #%d %s payer=%s stage=%s mode=%s %s\n",
			a.ID, a.StartedAt.Format(time.RFC3339), a.Payer, a.Stage, a.Mode, outcome)
		if a.Signature != "" {
			fmt.Fprintf(w, "      signature=%s\n", a.Signature)
		}
		if a.Error != "" {
			fmt.Fprintf(w, "      error=%s\n", a.Error)
		}
	}

	fmt.Fprintf(w, "lookup tables: %d\n", len(tables))
	for _, t := range tables {
		if c.Bool("incomplete") && t.Complete {
			continue
		}
		fmt.Fprintf(w, "  %s created=%t complete=%t addresses=%d/%d\n", t.Address, t.Created, t.Complete, t.Count, t.Expected)
	}
	return nil
}
