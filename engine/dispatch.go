package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/poolcore/disburser/amount"
	"github.com/poolcore/disburser/disperr"
	"github.com/poolcore/disburser/model"
)

// dispatchSingleInput implements (E4a): exactly one UTXO was selected, so
// every remaining obligation is paid in a single transaction with one
// output per distinct address (amounts of obligations sharing an address
// are summed) plus change. The fee is recomputed before the transaction is
// built, for len(remaining)+1 outputs; EstimateFee raises the input count
// to the output count, so this estimate sizes len(remaining)+1 inputs, not
// the single selected one. If the recomputed fee leaves negative change,
// every remaining obligation fails; no other UTXO set is selected.
func (e *Engine) dispatchSingleInput(ctx context.Context, remaining []model.Obligation, input model.UnspentOutput, state *BatchState, results map[int64]*model.PaymentResult) {
	outputCount := len(remaining) + 1 // + change
	fee := e.policy.EstimateFee(1, outputCount)
	total := amount.Sum(amountsOf(remaining))

	change := input.Amount.Sub(total).Sub(fee)
	if !change.IsZero() && change < 0 {
		err := disperr.Wrap(&disperr.InsufficientFunds{
			Required:  total.Add(fee),
			Available: input.Amount,
			UtxoCount: 1,
		})
		e.failAll(results, remaining, err)
		return
	}

	outputs := make(map[string]amount.Amount, outputCount)
	for _, o := range remaining {
		outputs[o.Address] = outputs[o.Address].Add(o.Amount)
	}

	var changeAddr string
	if !change.IsZero() && !e.policy.IsDust(change) {
		addr, err := e.changeAddress(ctx)
		if err != nil {
			e.failAll(results, remaining, disperr.Wrap(fmt.Errorf("obtaining change address: %w", err)))
			return
		}
		changeAddr = addr
		outputs[changeAddr] = outputs[changeAddr].Add(change)
	}

	txid, err := e.buildSignBroadcast(ctx, []model.UnspentOutput{input}, outputs)
	if err != nil {
		log.Errorf("single-input dispatch failed: %v", err)
		e.failAll(results, remaining, err)
		return
	}

	for _, o := range remaining {
		state.recordBroadcast(o.ID, txid, o.Amount)
		if jerr := e.journal.MarkCompleted(o.ID, txid); jerr != nil {
			var conflict *disperr.JournalConflict
			if errors.As(jerr, &conflict) {
				log.Warnf("journal conflict for obligation %d: existing txid %s takes precedence over %s",
					o.ID, conflict.ExistingTxID, conflict.AttemptedTxID)
				e.pool.MarkCompleted(ctx, o.ID, conflict.ExistingTxID)
				results[o.ID] = &model.PaymentResult{
					ObligationID:    o.ID,
					Status:          model.StatusAlreadyCompleted,
					CompletedAmount: o.Amount,
					TransactionIDs:  []string{conflict.ExistingTxID},
				}
				continue
			}
			log.Errorf("journal write failed for obligation %d: %v", o.ID, jerr)
		}
		e.pool.MarkCompleted(ctx, o.ID, txid)
		results[o.ID] = &model.PaymentResult{
			ObligationID:    o.ID,
			Status:          model.StatusSucceeded,
			CompletedAmount: o.Amount,
			TransactionIDs:  []string{txid},
		}
	}
}

// dispatchStreaming implements (E4b): more than one UTXO was selected, so
// each is consumed in its own single-input transaction, paying into
// whichever obligation is first in line and not yet fully paid. A
// transaction failure on one UTXO does not abort the remaining UTXOs; an
// obligation is only journaled once it is fully paid.
func (e *Engine) dispatchStreaming(ctx context.Context, remaining []model.Obligation, utxos []model.UnspentOutput, state *BatchState, results map[int64]*model.PaymentResult) {
	// conflicted records obligations whose final MarkCompleted hit an
	// existing, different journal entry; those are reported as
	// AlreadyCompleted against the existing txid rather than classified by
	// progress below.
	conflicted := make(map[int64]string)

	for _, u := range utxos {
		ownFee := e.policy.EstimateFee(1, 1)
		if u.Amount <= ownFee {
			log.Debugf("skipping utxo %s:%d, too small to cover its own fee", u.TxID, u.Vout)
			continue
		}
		avail := u.Amount.Sub(ownFee)

		o, ok := firstUnpaidObligation(remaining, state, e.policy.DustThreshold)
		if !ok {
			break // every obligation is fully paid, or its remainder is dust and not worth another transaction
		}

		owed := o.Amount.Sub(state.progressOf(o.ID))
		pay := amount.Min(avail, owed)

		outputs := map[string]amount.Amount{o.Address: pay}
		change := avail.Sub(pay)
		if change.IsPositive() && !e.policy.IsDust(change) {
			addr, err := e.changeAddress(ctx)
			if err != nil {
				log.Errorf("obtaining change address for streaming dispatch: %v", err)
				continue
			}
			outputs[addr] = outputs[addr].Add(change)
		}

		txid, err := e.buildSignBroadcast(ctx, []model.UnspentOutput{u}, outputs)
		if err != nil {
			log.Errorf("streaming dispatch utxo %s:%d failed: %v", u.TxID, u.Vout, err)
			continue
		}

		state.recordBroadcast(o.ID, txid, pay)
		if state.isFullyPaid(o) {
			if jerr := e.journal.MarkCompleted(o.ID, txid); jerr != nil {
				var conflict *disperr.JournalConflict
				if errors.As(jerr, &conflict) {
					log.Warnf("journal conflict for obligation %d: existing txid %s takes precedence over %s",
						o.ID, conflict.ExistingTxID, conflict.AttemptedTxID)
					e.pool.MarkCompleted(ctx, o.ID, conflict.ExistingTxID)
					conflicted[o.ID] = conflict.ExistingTxID
					continue
				}
				log.Errorf("journal write failed for obligation %d: %v", o.ID, jerr)
			}
			e.pool.MarkCompleted(ctx, o.ID, txid)
		}
	}

	for _, o := range remaining {
		if existingTxID, ok := conflicted[o.ID]; ok {
			results[o.ID] = &model.PaymentResult{
				ObligationID:    o.ID,
				Status:          model.StatusAlreadyCompleted,
				CompletedAmount: o.Amount,
				TransactionIDs:  []string{existingTxID},
			}
			continue
		}
		paid := state.progressOf(o.ID)
		txids := state.txidsOf(o.ID)
		switch {
		case paid >= o.Amount:
			results[o.ID] = &model.PaymentResult{
				ObligationID:    o.ID,
				Status:          model.StatusSucceeded,
				CompletedAmount: paid,
				TransactionIDs:  txids,
			}
		case paid.IsPositive():
			results[o.ID] = &model.PaymentResult{
				ObligationID:    o.ID,
				Status:          model.StatusPartiallyPaid,
				CompletedAmount: paid,
				TransactionIDs:  txids,
			}
		default:
			results[o.ID] = &model.PaymentResult{
				ObligationID: o.ID,
				Status:       model.StatusFailed,
				Err:          fmt.Errorf("no utxo could be dispatched toward obligation %d", o.ID),
			}
		}
	}
}

// firstUnpaidObligation returns the first obligation (in the original
// submission order) that has not yet received its full amount and whose
// remaining balance exceeds dustThreshold. An obligation whose remainder
// would be dust is skipped rather than targeted: dispatching a dust output
// toward it would likely be rejected by the node, so the remainder is
// surrendered instead of retried.
func firstUnpaidObligation(remaining []model.Obligation, state *BatchState, dustThreshold amount.Amount) (model.Obligation, bool) {
	for _, o := range remaining {
		if state.isFullyPaid(o) {
			continue
		}
		if o.Amount.Sub(state.progressOf(o.ID)) <= dustThreshold {
			continue
		}
		return o, true
	}
	return model.Obligation{}, false
}

// buildSignBroadcast drives the create/sign/broadcast round trip common to
// both dispatch paths.
func (e *Engine) buildSignBroadcast(ctx context.Context, inputs []model.UnspentOutput, outputs map[string]amount.Amount) (string, error) {
	rawHex, err := e.chain.CreateRawTransaction(ctx, inputs, outputs)
	if err != nil {
		return "", fmt.Errorf("creating raw transaction: %w", err)
	}
	signedHex, err := e.chain.SignTransaction(ctx, rawHex)
	if err != nil {
		return "", fmt.Errorf("signing transaction: %w", err)
	}
	txid, err := e.chain.SendRawTransaction(ctx, signedHex)
	if err != nil {
		return "", fmt.Errorf("broadcasting transaction: %w", err)
	}
	return txid, nil
}
