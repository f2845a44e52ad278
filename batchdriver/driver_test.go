package batchdriver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/poolcore/disburser/amount"
	"github.com/poolcore/disburser/engine"
	"github.com/poolcore/disburser/feepolicy"
	"github.com/poolcore/disburser/model"
)

type stubPool struct {
	pending []model.Obligation
}

func (s *stubPool) GetPending(ctx context.Context) []model.Obligation { return s.pending }
func (s *stubPool) MarkCompleted(ctx context.Context, obligationID int64, transactionID string) bool {
	return true
}

type stubChain struct {
	height  int64
	balance amount.Amount
}

func (s *stubChain) GetBlockCount(ctx context.Context) (int64, error) { return s.height, nil }
func (s *stubChain) GetBalance(ctx context.Context) (amount.Amount, error) {
	return s.balance, nil
}
func (s *stubChain) ListUnspent(ctx context.Context) ([]model.UnspentOutput, error) { return nil, nil }
func (s *stubChain) ValidateAddress(ctx context.Context, addr string) bool          { return true }
func (s *stubChain) GetNewAddress(ctx context.Context) (string, error)              { return "change", nil }
func (s *stubChain) CreateRawTransaction(ctx context.Context, inputs []model.UnspentOutput, outputs map[string]amount.Amount) (string, error) {
	return "raw", nil
}
func (s *stubChain) SignTransaction(ctx context.Context, hex string) (string, error) {
	return "signed", nil
}
func (s *stubChain) SendRawTransaction(ctx context.Context, signedHex string) (string, error) {
	return "txid", nil
}

type stubJournal struct{ entries map[int64]string }

func (j *stubJournal) IsCompleted(id int64) bool { _, ok := j.entries[id]; return ok }
func (j *stubJournal) TransactionOf(id int64) (string, bool) {
	txid, ok := j.entries[id]
	return txid, ok
}
func (j *stubJournal) MarkCompleted(id int64, txid string) error {
	j.entries[id] = txid
	return nil
}

func TestRunInteractiveSkipsWhenNoPending(t *testing.T) {
	pool := &stubPool{}
	eng := engine.New(&stubChain{}, pool, &stubJournal{entries: map[int64]string{}}, feepolicy.Policy{}, engine.Config{}, nil)
	err := RunInteractive(context.Background(), pool, eng, func(o []model.Obligation) bool { return true })
	require.NoError(t, err)
}

func TestRunInteractiveAbortsWithoutConfirmation(t *testing.T) {
	pool := &stubPool{pending: []model.Obligation{{ID: 1, Address: "addr1", Amount: amount.New(1.0)}}}
	journal := &stubJournal{entries: map[int64]string{}}
	eng := engine.New(&stubChain{balance: amount.New(10.0)}, pool, journal, feepolicy.Policy{FeeRatePerByte: amount.NewFromAtoms(1)}, engine.Config{}, nil)

	called := false
	err := RunInteractive(context.Background(), pool, eng, func(o []model.Obligation) bool {
		called = true
		return false
	})
	require.NoError(t, err)
	require.True(t, called)
	require.False(t, journal.IsCompleted(1), "aborted confirmation must not touch the journal")
}

func TestRunAutomatedStopsOnCancel(t *testing.T) {
	pool := &stubPool{}
	journal := &stubJournal{entries: map[int64]string{}}
	chain := &stubChain{height: 100}
	eng := engine.New(chain, pool, journal, feepolicy.Policy{}, engine.Config{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := RunAutomated(ctx, pool, chain, eng, AutomatedConfig{BatchSize: 10, BlockPeriod: 1, PollInterval: 10 * time.Millisecond})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
