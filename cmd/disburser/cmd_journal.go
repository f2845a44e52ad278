package main

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli"

	"github.com/poolcore/disburser/config"
	"github.com/poolcore/disburser/journal"
)

var journalCommand = cli.Command{
	Name:   "journal",
	Usage:  "print a snapshot of the completion journal",
	Action: journalAction,
}

func journalAction(ctx *cli.Context) error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return cli.NewExitError(err.Error(), exitFatalEngineError)
	}

	j, err := journal.Open(cfg.Journal.JournalPath)
	if err != nil {
		return cli.NewExitError(err.Error(), exitFatalEngineError)
	}

	entries := j.Snapshot()
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Obligation ID", "Transaction ID", "Completed At"})
	for _, e := range entries {
		t.AppendRow(table.Row{e.ObligationID, e.TransactionID, e.CompletedAt.Format("2006-01-02T15:04:05Z07:00")})
	}
	t.Render()
	return nil
}
