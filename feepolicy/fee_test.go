package feepolicy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/poolcore/disburser/amount"
	"github.com/poolcore/disburser/disperr"
	"github.com/poolcore/disburser/model"
)

func utxo(txid string, vout uint32, coins float64, confs int64) model.UnspentOutput {
	return model.UnspentOutput{
		TxID: txid, Vout: vout, Amount: amount.New(coins),
		Confirmations: confs, Spendable: true, Solvable: true,
	}
}

func TestEstimateFeePure(t *testing.T) {
	p := Policy{FeeRatePerByte: amount.NewFromAtoms(1000)}
	fee1 := p.EstimateFee(1, 2)
	fee2 := p.EstimateFee(1, 2)
	require.Equal(t, fee1, fee2, "fee_estimate must be a pure function of its arguments")

	// The input count is raised to the output count (2), so the estimate
	// sizes two inputs even though one was passed.
	bytes := int64(10 + 150*2 + 34*2)
	require.Equal(t, amount.NewFromAtoms(1000).MulRate(bytes), fee1)
}

func TestEstimateFeeEnforcesMinimumInputs(t *testing.T) {
	p := Policy{FeeRatePerByte: amount.NewFromAtoms(1000)}
	// distinct_output_addresses = 3 but inputCount passed as 1: the
	// minimum input count assumed is max(1, outputCount).
	got := p.EstimateFee(1, 3)
	want := p.EstimateFee(3, 3)
	require.Equal(t, want, got)
}

func TestEstimateFeeFallsBackOnUnconfiguredRate(t *testing.T) {
	p := Policy{}
	require.Equal(t, feeEstimateFallback, p.EstimateFee(1, 1))
}

func TestSelectUTXOsPrefersSingleInput(t *testing.T) {
	// Scenario S1: one UTXO covers the target on its own.
	available := []model.UnspentOutput{utxo("T1", 0, 10.0, 3)}
	selected, err := SelectUTXOs(available, amount.New(9.0), 1)
	require.NoError(t, err)
	require.Len(t, selected, 1)
	require.Equal(t, "T1", selected[0].TxID)
}

func TestSelectUTXOsAccumulatesDescending(t *testing.T) {
	// Scenario S2: four 10.0 UTXOs, target 35.0 - no single UTXO covers
	// it, so selection accumulates in descending order.
	available := []model.UnspentOutput{
		utxo("A", 0, 10.0, 3), utxo("B", 0, 10.0, 3),
		utxo("C", 0, 10.0, 3), utxo("D", 0, 10.0, 3),
	}
	selected, err := SelectUTXOs(available, amount.New(35.0), 1)
	require.NoError(t, err)
	require.Len(t, selected, 4)
}

func TestSelectUTXOsFiltersByConfirmationsAndSpendable(t *testing.T) {
	available := []model.UnspentOutput{
		utxo("A", 0, 100.0, 0), // below min confirmations
		{TxID: "B", Amount: amount.New(100.0), Confirmations: 3, Spendable: false},
	}
	_, err := SelectUTXOs(available, amount.New(1.0), 1)
	require.ErrorIs(t, err, disperr.ErrNoUtxos)
}

func TestSelectUTXOsInsufficientFunds(t *testing.T) {
	available := []model.UnspentOutput{utxo("A", 0, 1.0, 3)}
	_, err := SelectUTXOs(available, amount.New(100.0), 1)
	require.Error(t, err)
	var insufficient *disperr.InsufficientFunds
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, 1, insufficient.UtxoCount)
}

func TestSelectUTXOsEmptyAvailable(t *testing.T) {
	_, err := SelectUTXOs(nil, amount.New(1.0), 1)
	require.ErrorIs(t, err, disperr.ErrNoUtxos)
}

func TestIsDustBoundary(t *testing.T) {
	p := Policy{DustThreshold: amount.New(0.001)}
	require.True(t, p.IsDust(amount.New(0.001)))
	require.False(t, p.IsDust(amount.New(0.00100001)))
}
