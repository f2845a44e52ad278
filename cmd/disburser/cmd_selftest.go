package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/poolcore/disburser/config"
	"github.com/poolcore/disburser/preflight"
)

var selftestCommand = cli.Command{
	Name:   "selftest",
	Usage:  "run preflight checks only, then exit",
	Action: selftestAction,
}

func selftestAction(ctx *cli.Context) error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return cli.NewExitError(err.Error(), exitFatalEngineError)
	}

	a, err := bootstrap(cfg)
	if err != nil {
		return cli.NewExitError(err.Error(), exitFatalEngineError)
	}
	defer a.close()

	result := preflight.Run(context.Background(), a.chain, a.pool, preflight.Config{WalletName: cfg.Chain.Wallet})
	if !result.Passed {
		fmt.Printf("FAIL at %q: %v\n", result.Step, result.Err)
		return cli.NewExitError("preflight failed", exitPreflightFailed)
	}
	fmt.Println("OK: all preflight checks passed")
	return nil
}
