package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/poolcore/disburser/amount"
	"github.com/poolcore/disburser/build"
	"github.com/poolcore/disburser/chaingateway"
	"github.com/poolcore/disburser/config"
	"github.com/poolcore/disburser/engine"
	"github.com/poolcore/disburser/faillog"
	"github.com/poolcore/disburser/feepolicy"
	"github.com/poolcore/disburser/journal"
	"github.com/poolcore/disburser/logging"
	"github.com/poolcore/disburser/poolapi"
)

// app bundles the wired collaborators a CLI command needs. It is built
// once per invocation from the loaded configuration.
type app struct {
	cfg     *config.Config
	chain   *chaingateway.Client
	pool    *poolapi.Client
	journal *journal.Journal
	faillog *faillog.Writer
	engine  *engine.Engine
	logWriter *build.RotatingLogWriter
}

func bootstrap(cfg *config.Config) (*app, error) {
	logWriter, err := build.NewRotatingLogWriter(filepath.Join(cfg.LogDir, "disburser.log"), cfg.MaxLogFiles)
	if err != nil {
		return nil, fmt.Errorf("initializing log writer: %w", err)
	}
	logging.SetupLoggers(logWriter)
	logWriter.SetLevelAll(logging.LevelFromString(cfg.DebugLevel))

	chain := chaingateway.New(chaingateway.Config{
		RPCURL:      cfg.Chain.RPCURL,
		RPCUser:     cfg.Chain.RPCUser,
		RPCPassword: cfg.Chain.RPCPassword,
		AddressHRP:  cfg.Chain.AddressHRP,
		Retries:     cfg.Chain.Retries,
		Timeout:     time.Duration(cfg.Chain.RequestTimeoutS) * time.Second,
	})
	chain.SetWallet(cfg.Chain.Wallet)

	pool := poolapi.New(poolapi.Config{
		BaseURL: cfg.Pool.BaseURL,
		PoolID:  cfg.Pool.PoolID,
		APIKey:  cfg.Pool.APIKey,
		Timeout: time.Duration(cfg.Pool.RequestTimeoutS) * time.Second,
	})

	j, err := journal.Open(cfg.Journal.JournalPath)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	fl, err := faillog.Open(cfg.Journal.FailedLogPath)
	if err != nil {
		return nil, fmt.Errorf("opening failed-payment log: %w", err)
	}

	policy := feepolicy.Policy{
		FeeRatePerByte:   amount.NewFromAtoms(cfg.Chain.FeeRatePerByte),
		DustThreshold:    amount.NewFromAtoms(cfg.Chain.DustThresholdAtoms),
		MinConfirmations: cfg.Chain.MinConfirmations,
	}

	eng := engine.New(chain, pool, j, policy, engine.Config{MinConfirmations: cfg.Chain.MinConfirmations}, fl)

	return &app{
		cfg:       cfg,
		chain:     chain,
		pool:      pool,
		journal:   j,
		faillog:   fl,
		engine:    eng,
		logWriter: logWriter,
	}, nil
}

func (a *app) close() {
	a.logWriter.Close()
}
