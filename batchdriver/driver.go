// Package batchdriver implements the two ways a disbursement run is
// invoked: an interactive mode that lets an operator review and confirm a
// batch before it touches the chain, and an automated mode that polls the
// pool gateway and the chain's block height on a fixed cadence and runs
// the Engine unattended.
package batchdriver

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/poolcore/disburser/amount"
	"github.com/poolcore/disburser/engine"
	"github.com/poolcore/disburser/metrics"
	"github.com/poolcore/disburser/model"
)

// PoolGateway is the subset of the pool gateway the driver uses directly
// (beyond what it hands to the Engine).
type PoolGateway interface {
	GetPending(ctx context.Context) []model.Obligation
}

// ChainGateway is the subset of the chain gateway the driver uses directly
// for the automated block-height cadence.
type ChainGateway interface {
	GetBlockCount(ctx context.Context) (int64, error)
	GetBalance(ctx context.Context) (amount.Amount, error)
}

// Confirmer is the operator confirmation hook interactive mode calls
// before any chain write. Swappable in tests; in the CLI it reads from
// stdin.
type Confirmer func(obligations []model.Obligation) bool

// RunInteractive fetches pending obligations, renders them in a table,
// asks confirm whether to proceed, and if so hands the batch to the
// Engine, printing a result table afterward.
func RunInteractive(ctx context.Context, pool PoolGateway, eng *engine.Engine, confirm Confirmer) error {
	obligations := pool.GetPending(ctx)
	if len(obligations) == 0 {
		fmt.Println("no pending obligations")
		return nil
	}

	printObligationsTable(obligations)

	if !confirm(obligations) {
		fmt.Println("aborted, no obligations were processed")
		return nil
	}

	results := eng.RunBatch(ctx, obligations)
	metrics.ObserveBatch(results)
	printResultsTable(results)
	return nil
}

func printObligationsTable(obligations []model.Obligation) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Address", "Amount"})
	for _, o := range obligations {
		t.AppendRow(table.Row{o.ID, o.Address, o.Amount.String()})
	}
	t.Render()
}

func printResultsTable(results []model.PaymentResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Status", "Completed", "Transactions"})
	for _, r := range results {
		t.AppendRow(table.Row{r.ObligationID, r.Status.String(), r.CompletedAmount.String(), r.TransactionIDs})
	}
	t.Render()
}

// AutomatedConfig governs unattended polling cadence.
type AutomatedConfig struct {
	BatchSize        int
	BlockPeriod      int64
	PollInterval     time.Duration
	MinWalletBalance amount.Amount
}

// RunAutomated loops indefinitely, pulling obligations and running batches
// once BlockPeriod new blocks have appeared since the last processed
// block, until ctx is canceled. Any error from one iteration is logged and
// the loop sleeps 30 seconds before retrying.
func RunAutomated(ctx context.Context, pool PoolGateway, chain ChainGateway, eng *engine.Engine, cfg AutomatedConfig) error {
	var lastProcessedBlock int64 = -1

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		height, err := chain.GetBlockCount(ctx)
		if err != nil {
			log.Errorf("automated driver: failed to fetch block count: %v", err)
			if !sleepOrDone(ctx, 30*time.Second) {
				return ctx.Err()
			}
			continue
		}

		if lastProcessedBlock >= 0 && height-lastProcessedBlock < cfg.BlockPeriod {
			if !sleepOrDone(ctx, cfg.PollInterval) {
				return ctx.Err()
			}
			continue
		}

		balance, err := chain.GetBalance(ctx)
		if err != nil {
			log.Errorf("automated driver: failed to fetch wallet balance: %v", err)
			if !sleepOrDone(ctx, 30*time.Second) {
				return ctx.Err()
			}
			continue
		}
		metrics.WalletBalanceAtoms.Set(float64(balance))

		if cfg.MinWalletBalance.IsPositive() && balance < cfg.MinWalletBalance {
			log.Warnf("automated driver: wallet balance %s below configured minimum %s, skipping iteration",
				balance, cfg.MinWalletBalance)
			lastProcessedBlock = height
			if !sleepOrDone(ctx, cfg.PollInterval) {
				return ctx.Err()
			}
			continue
		}

		obligations := pool.GetPending(ctx)
		if len(obligations) > cfg.BatchSize {
			log.Infof("automated driver: truncating %d pending obligations to batch size %d",
				len(obligations), cfg.BatchSize)
			obligations = obligations[:cfg.BatchSize]
		}

		if len(obligations) == 0 {
			lastProcessedBlock = height
			if !sleepOrDone(ctx, cfg.PollInterval) {
				return ctx.Err()
			}
			continue
		}

		results := eng.RunBatch(ctx, obligations)
		metrics.ObserveBatch(results)
		log.Infof("automated driver: processed %d obligations at block %d", len(results), height)
		lastProcessedBlock = height
		metrics.LastProcessedBlock.Set(float64(height))

		if !sleepOrDone(ctx, cfg.PollInterval) {
			return ctx.Err()
		}
	}
}

// sleepOrDone sleeps for d or returns false immediately if ctx is
// canceled first.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
