// Command disburser is the mining pool payment disburser's entry point. It
// wires the configuration, logging, gateway, journal, and engine layers
// together and dispatches to one of three modes: a default batch run
// (preflight then interactive or automated dispatch), selftest (preflight
// only), or journal (operator inspection of the completion journal).
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

// Exit codes.
const (
	exitOK               = 0
	exitPreflightFailed  = 1
	exitFatalEngineError = 2
)

func main() {
	app := cli.NewApp()
	app.Name = "disburser"
	app.Usage = "mining pool payment disburser"
	app.Version = "0.1.0"
	app.Commands = []cli.Command{
		runCommand,
		selftestCommand,
		journalCommand,
	}
	app.Action = runCommand.Action

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFatalEngineError)
	}
}
