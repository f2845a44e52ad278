package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/urfave/cli"

	"github.com/poolcore/disburser/amount"
	"github.com/poolcore/disburser/batchdriver"
	"github.com/poolcore/disburser/config"
	"github.com/poolcore/disburser/metrics"
	"github.com/poolcore/disburser/model"
	"github.com/poolcore/disburser/preflight"
)

var runCommand = cli.Command{
	Name:   "run",
	Usage:  "run preflight checks, then dispatch a batch (interactive by default, automated with --automated)",
	Action: runAction,
	Flags: []cli.Flag{
		cli.BoolFlag{Name: "automated", Usage: "run unattended, polling the pool gateway on a fixed cadence"},
	},
}

func runAction(ctx *cli.Context) error {
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
		return cli.NewExitError(fmt.Sprintf("preflight failed at %q: %v", result.Step, result.Err), exitPreflightFailed)
	}

	background, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		cancel()
	}()

	if cfg.Automation.Enabled || ctx.Bool("automated") {
		if cfg.Metrics.ListenAddr != "" {
			go serveMetrics(cfg.Metrics.ListenAddr)
		}
		automatedCfg := batchdriver.AutomatedConfig{
			BatchSize:        cfg.Automation.BatchSize,
			BlockPeriod:      cfg.Automation.BlockPeriod,
			PollInterval:     time.Duration(cfg.Automation.PollIntervalS) * time.Second,
			MinWalletBalance: amount.NewFromAtoms(cfg.Automation.MinWalletBalance),
		}
		if err := batchdriver.RunAutomated(background, a.pool, a.chain, a.engine, automatedCfg); err != nil && err != context.Canceled {
			return cli.NewExitError(err.Error(), exitFatalEngineError)
		}
		return nil
	}

	err = batchdriver.RunInteractive(background, a.pool, a.engine, confirmFromStdin)
	if err != nil {
		return cli.NewExitError(err.Error(), exitFatalEngineError)
	}
	return nil
}

// serveMetrics serves the Prometheus registry at /metrics on addr until
// the process exits. A listen failure is logged, not fatal: automated
// dispatch proceeds without a scrape endpoint rather than refusing to run.
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		fmt.Fprintf(os.Stderr, "metrics server on %s stopped: %v\n", addr, err)
	}
}

// confirmFromStdin implements batchdriver.Confirmer by reading a yes/no
// answer from the terminal.
func confirmFromStdin(obligations []model.Obligation) bool {
	fmt.Printf("dispatch %d obligation(s)? [y/N]: ", len(obligations))
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes"
}
