// Package engine implements the disburser engine: the core state machine
// that drains a batch of obligations through journal pre-scan, validation,
// capacity check, UTXO selection, dispatch (single-input aggregated or
// multi-input streaming), and residual logging.
//
// The Engine takes its collaborators as explicit constructor arguments —
// no process-wide singleton registry — and reports per-obligation outcomes
// through the classified model.PaymentResult/model.PaymentStatus types
// rather than exceptions.
package engine

import (
	"context"
	"fmt"

	"github.com/poolcore/disburser/amount"
	"github.com/poolcore/disburser/disperr"
	"github.com/poolcore/disburser/faillog"
	"github.com/poolcore/disburser/feepolicy"
	"github.com/poolcore/disburser/model"
)

// ChainGateway is the subset of the chain gateway the Engine drives.
type ChainGateway interface {
	GetBalance(ctx context.Context) (amount.Amount, error)
	ListUnspent(ctx context.Context) ([]model.UnspentOutput, error)
	ValidateAddress(ctx context.Context, addr string) bool
	GetNewAddress(ctx context.Context) (string, error)
	CreateRawTransaction(ctx context.Context, inputs []model.UnspentOutput, outputs map[string]amount.Amount) (string, error)
	SignTransaction(ctx context.Context, hex string) (string, error)
	SendRawTransaction(ctx context.Context, signedHex string) (string, error)
}

// PoolGateway is the subset of the pool gateway the Engine drives.
type PoolGateway interface {
	MarkCompleted(ctx context.Context, obligationID int64, transactionID string) bool
}

// Journal is the completion journal contract the Engine relies on.
type Journal interface {
	IsCompleted(id int64) bool
	TransactionOf(id int64) (string, bool)
	MarkCompleted(id int64, txid string) error
}

// ResidualLogger records obligations that end a batch un-journaled
// It is optional: a nil logger simply skips residual logging.
type ResidualLogger interface {
	Record(o model.Obligation, completed amount.Amount, txids []string, reason string) error
}

var _ ResidualLogger = (*faillog.Writer)(nil)

// Config configures an Engine.
type Config struct {
	// MinConfirmations is the minimum confirmation count a UTXO must
	// carry to be selectable.
	MinConfirmations int64

	// ChangeAddress is used for change outputs if non-empty; otherwise a
	// fresh address is requested from the chain gateway for each
	// transaction that emits a change output.
	ChangeAddress string
}

// Engine is the payment disburser core state machine. One Engine instance
// processes one batch at a time; there is no intra-batch parallelism.
type Engine struct {
	chain   ChainGateway
	pool    PoolGateway
	journal Journal
	policy  feepolicy.Policy
	cfg     Config
	faillog ResidualLogger
}

// New constructs an Engine from its explicit collaborators.
func New(chain ChainGateway, pool PoolGateway, journal Journal, policy feepolicy.Policy, cfg Config, residual ResidualLogger) *Engine {
	return &Engine{chain: chain, pool: pool, journal: journal, policy: policy, cfg: cfg, faillog: residual}
}

// RunBatch drives obligations through the full protocol and returns one
// PaymentResult per obligation, in the order supplied.
func (e *Engine) RunBatch(ctx context.Context, obligations []model.Obligation) []model.PaymentResult {
	results := make(map[int64]*model.PaymentResult, len(obligations))
	order := make([]int64, 0, len(obligations))
	for _, o := range obligations {
		order = append(order, o.ID)
	}

	// (E0) Journal pre-scan.
	remaining := make([]model.Obligation, 0, len(obligations))
	for _, o := range obligations {
		if txid, ok := e.journal.TransactionOf(o.ID); ok {
			results[o.ID] = &model.PaymentResult{
				ObligationID:    o.ID,
				Status:          model.StatusAlreadyCompleted,
				CompletedAmount: o.Amount,
				TransactionIDs:  []string{txid},
			}
			continue
		}
		remaining = append(remaining, o)
	}

	if len(remaining) > 0 {
		// (E1) Validation: fail-fast across the whole batch.
		if invalid, err := e.validate(ctx, remaining); err != nil {
			log.Errorf("batch validation failed on obligation %d: %v", invalid, err)
			e.failAll(results, remaining, err)
			remaining = nil
		}
	}

	if len(remaining) > 0 {
		// (E2) Capacity check.
		required, err := e.checkCapacity(ctx, remaining)
		if err != nil {
			log.Errorf("batch capacity check failed: %v", err)
			e.failAll(results, remaining, err)
			remaining = nil
		} else {
			// (E3) Selection.
			utxos, err := e.selectUTXOs(ctx, required)
			if err != nil {
				log.Errorf("utxo selection failed: %v", err)
				e.failAll(results, remaining, err)
				remaining = nil
			} else {
				// (E4) Dispatch.
				state := newBatchState()
				if len(utxos) == 1 {
					e.dispatchSingleInput(ctx, remaining, utxos[0], state, results)
				} else {
					e.dispatchStreaming(ctx, remaining, utxos, state, results)
				}
			}
		}
	}

	// (E5) Residual logging for anything not completed and not journaled.
	if e.faillog != nil {
		for _, o := range obligations {
			r := results[o.ID]
			if r == nil {
				continue
			}
			if r.Status == model.StatusPartiallyPaid || r.Status == model.StatusFailed {
				reason := "failed"
				if r.Status == model.StatusPartiallyPaid {
					reason = "partially paid"
				}
				if r.Err != nil {
					reason = r.Err.Error()
				}
				if err := e.faillog.Record(o, r.CompletedAmount, r.TransactionIDs, reason); err != nil {
					log.Errorf("failed to write residual log entry for obligation %d: %v", o.ID, err)
				}
			}
		}
	}

	out := make([]model.PaymentResult, 0, len(order))
	for _, id := range order {
		if r := results[id]; r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// validate implements (E1): amount > 0 and a valid address for every
// remaining obligation. The first failure aborts the whole batch.
func (e *Engine) validate(ctx context.Context, remaining []model.Obligation) (int64, error) {
	for _, o := range remaining {
		if !o.Amount.IsPositive() {
			return o.ID, fmt.Errorf("obligation %d: %w", o.ID, disperr.ErrInvalidAmount)
		}
		if !e.chain.ValidateAddress(ctx, o.Address) {
			return o.ID, fmt.Errorf("obligation %d address %q: %w", o.ID, o.Address, disperr.ErrInvalidAddress)
		}
	}
	return 0, nil
}

// checkCapacity implements (E2): compute T = sum(amount), F = fee estimate,
// and abort if the wallet balance can't cover T+F.
func (e *Engine) checkCapacity(ctx context.Context, remaining []model.Obligation) (amount.Amount, error) {
	total := amount.Sum(amountsOf(remaining))
	distinctAddrs := distinctAddressCount(remaining)
	fee := e.policy.EstimateFee(distinctAddrs, distinctAddrs)
	required := total.Add(fee)

	balance, err := e.chain.GetBalance(ctx)
	if err != nil {
		return 0, disperr.Wrap(fmt.Errorf("querying balance: %w", err))
	}
	if balance < required {
		return 0, disperr.Wrap(&disperr.InsufficientFunds{Required: required, Available: balance})
	}
	return required, nil
}

// selectUTXOs implements (E3).
func (e *Engine) selectUTXOs(ctx context.Context, required amount.Amount) ([]model.UnspentOutput, error) {
	unspent, err := e.chain.ListUnspent(ctx)
	if err != nil {
		return nil, disperr.Wrap(fmt.Errorf("listing unspent outputs: %w", err))
	}
	utxos, err := feepolicy.SelectUTXOs(unspent, required, e.cfg.MinConfirmations)
	if err != nil {
		return nil, disperr.Wrap(err)
	}
	return utxos, nil
}

// failAll marks every obligation in remaining as Failed with err.
func (e *Engine) failAll(results map[int64]*model.PaymentResult, remaining []model.Obligation, err error) {
	for _, o := range remaining {
		results[o.ID] = &model.PaymentResult{
			ObligationID: o.ID,
			Status:       model.StatusFailed,
			Err:          err,
		}
	}
}

func amountsOf(obligations []model.Obligation) []amount.Amount {
	out := make([]amount.Amount, 0, len(obligations))
	for _, o := range obligations {
		out = append(out, o.Amount)
	}
	return out
}

func distinctAddressCount(obligations []model.Obligation) int {
	seen := make(map[string]struct{}, len(obligations))
	for _, o := range obligations {
		seen[o.Address] = struct{}{}
	}
	if len(seen) == 0 {
		return 1
	}
	return len(seen)
}

func (e *Engine) changeAddress(ctx context.Context) (string, error) {
	if e.cfg.ChangeAddress != "" {
		return e.cfg.ChangeAddress, nil
	}
	return e.chain.GetNewAddress(ctx)
}
