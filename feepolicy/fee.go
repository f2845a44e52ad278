// Package feepolicy implements the pure, I/O-free functions the disburser
// needs to size a payout transaction: fee estimation, UTXO selection, and
// the dust threshold. It is adapted from chanfunding.CoinSelect /
// chanfunding.selectInputs, generalized from channel-funding coin
// selection to miner-payout coin selection: same shape — estimate size
// from input/output counts, accumulate UTXOs descending until the target
// is met — different caller.
package feepolicy

import (
	"sort"

	"github.com/poolcore/disburser/amount"
	"github.com/poolcore/disburser/disperr"
	"github.com/poolcore/disburser/model"
)

// Per-input and per-output byte estimates, and the fixed transaction
// overhead: bytes = 10 + 150*I + 34*O.
const (
	txOverheadBytes = 10
	perInputBytes   = 150
	perOutputBytes  = 34
)

// feeEstimateFallback is the flat fee returned when fee estimation hits an
// arithmetic error. The fallback is always logged at ERROR rather than
// silently substituted, so a misconfigured fee rate is operator-visible.
const feeEstimateFallback = amount.Amount(100000) // 0.001, at 8 fractional digits

// Policy bundles the configuration-derived parameters pure selection and
// fee functions need: the fee rate and the dust threshold are operator
// configuration, not constants, so they are threaded through a Policy value
// rather than hard-coded.
type Policy struct {
	// FeeRatePerByte is the configured atoms-per-byte fee rate.
	FeeRatePerByte amount.Amount

	// DustThreshold is the configured minimum change-output value; change
	// below this is surrendered to fee rather than emitted as an output.
	// This is a distinct configuration value from feeEstimateFallback, not
	// the same magic constant.
	DustThreshold amount.Amount

	// MinConfirmations is the minimum confirmation count a UTXO must have
	// to be selectable.
	MinConfirmations int64
}

// EstimateFee returns the estimated fee for a transaction with inputCount
// inputs and outputCount outputs, using the byte-size formula above. The
// minimum input count considered is max(1, outputCount) even if the caller
// passes a smaller inputCount, so an estimate taken before selection still
// assumes at least one input per distinct output address. A real selected
// input count is used only when it is at least outputCount; a smaller one
// is raised like any other.
func (p Policy) EstimateFee(inputCount, outputCount int) amount.Amount {
	if inputCount < 1 {
		inputCount = 1
	}
	if inputCount < outputCount {
		inputCount = outputCount
	}
	if p.FeeRatePerByte <= 0 {
		log.Errorf("fee rate is not configured (or non-positive); falling back to flat fee %s",
			feeEstimateFallback)
		return feeEstimateFallback
	}

	bytes := int64(txOverheadBytes) + int64(perInputBytes)*int64(inputCount) + int64(perOutputBytes)*int64(outputCount)
	if bytes <= 0 {
		log.Errorf("fee byte estimate computed as non-positive (%d); falling back to flat fee %s",
			bytes, feeEstimateFallback)
		return feeEstimateFallback
	}
	return p.FeeRatePerByte.MulRate(bytes)
}

// IsDust reports whether amt is at or below the configured dust threshold.
func (p Policy) IsDust(amt amount.Amount) bool {
	return amt <= p.DustThreshold
}

// SelectUTXOs selects from available a set whose sum covers required,
// preferring fewer inputs. Filtering, sorting, prefer-single, and
// accumulate are applied in that order.
//
// Step 2 ("prefer single-input") picks the largest eligible UTXO that
// still covers required — the first one in descending order that does —
// rather than the smallest one that covers it, since minimizing to the
// largest single UTXO keeps the transaction at one input and documents the
// choice here rather than leaving it ambiguous at the call site.
func SelectUTXOs(available []model.UnspentOutput, required amount.Amount, minConfirmations int64) ([]model.UnspentOutput, error) {
	eligible := make([]model.UnspentOutput, 0, len(available))
	for _, u := range available {
		if u.IsSelectable(minConfirmations) {
			eligible = append(eligible, u)
		}
	}
	if len(eligible) == 0 {
		return nil, disperr.ErrNoUtxos
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Amount > eligible[j].Amount
	})

	// Step 2: prefer a single UTXO that alone covers required — the first
	// (largest) one in descending order that does.
	for _, u := range eligible {
		if u.Amount >= required {
			return []model.UnspentOutput{u}, nil
		}
	}

	// Step 3: accumulate in descending order until the running sum covers
	// required.
	var running amount.Amount
	selected := make([]model.UnspentOutput, 0, len(eligible))
	for _, u := range eligible {
		selected = append(selected, u)
		running += u.Amount
		if running >= required {
			return selected, nil
		}
	}

	// Step 4: the full eligible set cannot reach required.
	return nil, &disperr.InsufficientFunds{
		Required:  required,
		Available: running,
		UtxoCount: len(eligible),
	}
}
