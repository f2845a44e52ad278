package preflight

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/poolcore/disburser/amount"
	"github.com/poolcore/disburser/disperr"
	"github.com/poolcore/disburser/model"
)

type stubChain struct {
	connected bool
	wallets   []string
	walletErr error
	balance   amount.Amount
	balanceErr error
}

func (s *stubChain) TestConnection(ctx context.Context) bool { return s.connected }
func (s *stubChain) ListWallets(ctx context.Context) ([]string, error) {
	return s.wallets, s.walletErr
}
func (s *stubChain) GetBalance(ctx context.Context) (amount.Amount, error) {
	return s.balance, s.balanceErr
}

type stubPool struct {
	connected bool
	pending   []model.Obligation
}

func (s *stubPool) TestConnection(ctx context.Context) bool { return s.connected }
func (s *stubPool) GetPending(ctx context.Context) []model.Obligation { return s.pending }

func TestRunAllStepsPass(t *testing.T) {
	chain := &stubChain{connected: true, wallets: []string{"payout"}, balance: amount.New(10.0)}
	pool := &stubPool{connected: true}
	r := Run(context.Background(), chain, pool, Config{WalletName: "payout"})
	require.True(t, r.Passed)
	require.NoError(t, r.Err)
}

func TestRunFailsOnPoolUnreachable(t *testing.T) {
	chain := &stubChain{connected: true}
	pool := &stubPool{connected: false}
	r := Run(context.Background(), chain, pool, Config{WalletName: "payout"})
	require.False(t, r.Passed)
	require.Equal(t, "pool gateway connectivity", r.Step)
}

func TestRunFailsOnMissingWalletName(t *testing.T) {
	chain := &stubChain{connected: true}
	pool := &stubPool{connected: true}
	r := Run(context.Background(), chain, pool, Config{})
	require.False(t, r.Passed)
	require.Equal(t, "wallet configuration", r.Step)
}

func TestRunFailsOnChainUnreachable(t *testing.T) {
	chain := &stubChain{connected: false}
	pool := &stubPool{connected: true}
	r := Run(context.Background(), chain, pool, Config{WalletName: "payout"})
	require.False(t, r.Passed)
	require.Equal(t, "chain gateway connectivity", r.Step)
}

func TestRunFailsOnWalletNotFound(t *testing.T) {
	chain := &stubChain{connected: true, wallets: []string{"other"}}
	pool := &stubPool{connected: true}
	r := Run(context.Background(), chain, pool, Config{WalletName: "payout"})
	require.False(t, r.Passed)
	require.Equal(t, "wallet existence", r.Step)
	var notFound *disperr.WalletNotFound
	require.ErrorAs(t, r.Err, &notFound)
}

func TestRunPassesDespiteLowBalanceWarning(t *testing.T) {
	chain := &stubChain{connected: true, wallets: []string{"payout"}, balance: amount.New(1.0)}
	pool := &stubPool{connected: true, pending: []model.Obligation{{ID: 1, Amount: amount.New(5.0)}}}
	r := Run(context.Background(), chain, pool, Config{WalletName: "payout"})
	require.True(t, r.Passed, "low balance is a warning, not a fatal preflight failure")
}
