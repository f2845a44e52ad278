// Package preflight implements a short sequence of connectivity and sanity checks run once before
// a disburser process begins accepting batches, so a misconfiguration is
// caught as a clean, logged exit rather than a confusing failure mid-batch.
package preflight

import (
	"context"
	"fmt"

	"github.com/poolcore/disburser/amount"
	"github.com/poolcore/disburser/disperr"
	"github.com/poolcore/disburser/model"
)

// ChainGateway is the subset of the chain gateway preflight exercises.
type ChainGateway interface {
	TestConnection(ctx context.Context) bool
	ListWallets(ctx context.Context) ([]string, error)
	GetBalance(ctx context.Context) (amount.Amount, error)
}

// PoolGateway is the subset of the pool gateway preflight exercises.
type PoolGateway interface {
	TestConnection(ctx context.Context) bool
	GetPending(ctx context.Context) []model.Obligation
}

// Config names the values preflight needs beyond its two gateways.
type Config struct {
	// WalletName is the wallet the chain gateway is expected to operate
	// against; empty fails preflight outright.
	WalletName string
}

// Result is the outcome of a Run call: either every assertion passed, or
// the first one that didn't, recorded with which step failed.
type Result struct {
	Passed bool
	Step   string
	Err    error
}

// Run executes the five sequential assertions in order, short-circuiting
// on the first failure:
//  1. pool gateway connectivity
//  2. wallet name configured
//  3. chain gateway connectivity
//  4. configured wallet exists on the node
//  5. wallet balance vs. pending obligations (warning only, not fatal)
func Run(ctx context.Context, chain ChainGateway, pool PoolGateway, cfg Config) Result {
	if !pool.TestConnection(ctx) {
		return Result{Step: "pool gateway connectivity", Err: fmt.Errorf("pool gateway is unreachable")}
	}
	log.Infof("preflight: pool gateway reachable")

	if cfg.WalletName == "" {
		return Result{Step: "wallet configuration", Err: fmt.Errorf("no wallet name configured")}
	}
	log.Infof("preflight: wallet name configured as %q", cfg.WalletName)

	if !chain.TestConnection(ctx) {
		return Result{Step: "chain gateway connectivity", Err: fmt.Errorf("chain gateway is unreachable")}
	}
	log.Infof("preflight: chain gateway reachable")

	wallets, err := chain.ListWallets(ctx)
	if err != nil {
		return Result{Step: "wallet existence", Err: disperr.Wrap(fmt.Errorf("listing wallets: %w", err))}
	}
	found := false
	for _, w := range wallets {
		if w == cfg.WalletName {
			found = true
			break
		}
	}
	if !found {
		return Result{Step: "wallet existence", Err: &disperr.WalletNotFound{Configured: cfg.WalletName, Available: wallets}}
	}
	log.Infof("preflight: wallet %q found among node's loaded wallets", cfg.WalletName)

	balance, err := chain.GetBalance(ctx)
	if err != nil {
		log.Warnf("preflight: could not fetch wallet balance for sanity check: %v", err)
	} else {
		pending := pool.GetPending(ctx)
		var total amount.Amount
		for _, p := range pending {
			total = total.Add(p.Amount)
		}
		if balance < total {
			log.Warnf("preflight: wallet balance %s is below total pending obligations %s; batches may fail capacity checks",
				balance, total)
		} else {
			log.Infof("preflight: wallet balance %s covers total pending obligations %s", balance, total)
		}
	}

	return Result{Passed: true}
}
