// Package chaingateway is the typed facade over the chain node's JSON-RPC
// 2.0 endpoint. Every operation is exposed as a Go method with a concrete
// signature; none of them accept or return a bag of interface{}
// parameters, and every failure is classified before it reaches the
// caller.
package chaingateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/decred/dcrd/bech32"
	"github.com/juju/retry"

	"github.com/poolcore/disburser/amount"
	"github.com/poolcore/disburser/disperr"
	"github.com/poolcore/disburser/model"
)

// Config configures a Client.
type Config struct {
	// RPCURL is the base JSON-RPC endpoint, e.g. "http://127.0.0.1:8332".
	RPCURL string

	// RPCUser / RPCPassword authenticate via HTTP Basic.
	RPCUser     string
	RPCPassword string

	// Timeout bounds every individual RPC call (default 30s).
	Timeout time.Duration

	// AddressHRP is the Bech32 human-readable prefix this pool's chain
	// uses, for the local structural pre-check in ValidateAddress.
	AddressHRP string

	// Retries bounds the number of attempts made for transport-classified
	// failures before giving up, each with a bounded exponential backoff.
	Retries int
}

// SignMode selects which node RPC method SignRawTransaction invokes.
type SignMode int

const (
	// SignWithWallet uses signrawtransactionwithwallet — the node's own
	// wallet supplies the keys. This is the only mode the disburser
	// exercises; it never manages private keys itself.
	SignWithWallet SignMode = iota
)

// Client is a stateful facade over one chain node. Wallet scoping and the
// request id counter are single-owner state: a Client is not safe for
// concurrent wallet reassignment. Within a single disburser process the
// wallet is set once, by the CLI bootstrap, before any call is made.
type Client struct {
	cfg    Config
	http   *http.Client
	nextID int64
	wallet string
}

// New constructs a chain gateway Client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// SetWallet scopes subsequent calls to wallet. This is a global reset:
// callers must not interleave calls against two wallets on one Client
// concurrently.
func (c *Client) SetWallet(wallet string) {
	c.wallet = wallet
}

func (c *Client) endpoint() string {
	if c.wallet == "" {
		return c.cfg.RPCURL
	}
	return strings.TrimRight(c.cfg.RPCURL, "/") + "/wallet/" + c.wallet
}

// call performs one JSON-RPC 2.0 round trip, retrying transport-classified
// failures with bounded backoff, and unmarshals the result into out (a
// pointer), if out is non-nil.
func (c *Client) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	id := atomic.AddInt64(&c.nextID, 1)
	req := rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("chaingateway: marshal request for %s: %w", method, err)
	}

	var resp rpcResponse
	attempt := func() error {
		r, callErr := c.doHTTP(ctx, body)
		if callErr != nil {
			return callErr
		}
		resp = r
		return nil
	}

	retryErr := retry.Call(retry.CallArgs{
		Func: attempt,
		IsFatalError: func(err error) bool {
			// Only transport-classified errors are retried; anything
			// else (such as an undecodable response envelope) is
			// fatal immediately. A well-formed RPC error response
			// never reaches IsFatalError: doHTTP returns it as a
			// value, not as an error.
			return !isTransportError(err)
		},
		Attempts:    c.cfg.Retries,
		Delay:       200 * time.Millisecond,
		BackoffFunc: retry.DoubleDelay,
		Clock:       retry.WallClock,
		Stop:        ctx.Done(),
	})
	if retryErr != nil {
		return retryErr
	}

	if resp.Error != nil {
		return &disperr.NodeRpcError{Method: method, Code: resp.Error.Code, Msg: resp.Error.Message}
	}
	if out != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("chaingateway: unmarshal result for %s: %w", method, err)
		}
	}
	return nil
}

func (c *Client) doHTTP(ctx context.Context, body []byte) (rpcResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return rpcResponse{}, fmt.Errorf("chaingateway: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.cfg.RPCUser, c.cfg.RPCPassword)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		if isNetTimeout(err) {
			return rpcResponse{}, &disperr.TransportTimeout{Op: "rpc", Err: err}
		}
		return rpcResponse{}, &disperr.TransportRefused{Op: "rpc", Err: err}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return rpcResponse{}, &disperr.TransportRefused{Op: "rpc", Err: err}
	}
	if httpResp.StatusCode >= 500 {
		return rpcResponse{}, &disperr.TransportRefused{
			Op:  "rpc",
			Err: fmt.Errorf("node returned status %d: %s", httpResp.StatusCode, raw),
		}
	}

	var resp rpcResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return rpcResponse{}, fmt.Errorf("chaingateway: decode envelope: %w", err)
	}
	return resp, nil
}

func isNetTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func isTransportError(err error) bool {
	var tt *disperr.TransportTimeout
	var tr *disperr.TransportRefused
	return errors.As(err, &tt) || errors.As(err, &tr)
}

// TestConnection calls a wallet-agnostic info method and reports whether
// the node is reachable. Any error — transport or application — is
// folded into false.
func (c *Client) TestConnection(ctx context.Context) bool {
	var info blockchainInfoWire
	err := c.call(ctx, "getblockchaininfo", []interface{}{}, &info)
	return err == nil
}

// ListWallets returns the node's loaded wallet names.
func (c *Client) ListWallets(ctx context.Context) ([]string, error) {
	var wallets []string
	if err := c.call(ctx, "listwallets", []interface{}{}, &wallets); err != nil {
		return nil, err
	}
	return wallets, nil
}

// GetBalance returns the spendable balance of the current wallet. The
// result is decoded as json.Number and parsed exactly, never routed
// through a float64.
func (c *Client) GetBalance(ctx context.Context) (amount.Amount, error) {
	var balance json.Number
	if err := c.call(ctx, "getbalance", []interface{}{}, &balance); err != nil {
		return 0, err
	}
	bal, err := amount.ParseDecimal(balance.String())
	if err != nil {
		return 0, fmt.Errorf("chaingateway: parsing wallet balance %q: %w", balance, err)
	}
	return bal, nil
}

// ListUnspent returns the current wallet's unspent outputs.
func (c *Client) ListUnspent(ctx context.Context) ([]model.UnspentOutput, error) {
	var wire []unspentOutputWire
	// minconf=0, maxconf=9999999: the node reports everything; filtering
	// by minimum confirmations is the fee and selection policy's job, not
	// the gateway's.
	if err := c.call(ctx, "listunspent", []interface{}{0, 9999999}, &wire); err != nil {
		return nil, err
	}
	out := make([]model.UnspentOutput, 0, len(wire))
	for _, u := range wire {
		amt, err := amount.ParseDecimal(u.Amount.String())
		if err != nil {
			return nil, fmt.Errorf("chaingateway: parsing utxo %s:%d amount %q: %w", u.TxID, u.Vout, u.Amount, err)
		}
		out = append(out, model.UnspentOutput{
			TxID:          u.TxID,
			Vout:          u.Vout,
			Amount:        amt,
			Confirmations: u.Confirmations,
			Spendable:     u.Spendable,
			Solvable:      u.Solvable,
			Address:       u.Address,
			ScriptPubKey:  u.ScriptPubKey,
		})
	}
	return out, nil
}

// ValidateAddress checks addr against the node's validateaddress RPC. If
// the RPC call itself fails (transport error), the call is treated as
// "assume valid" rather than blocking payments on a single flaky probe; this
// is Open Question §9.1 option (b), and is logged at WARN so the fail-open
// path is operator visible. When AddressHRP is configured, a local Bech32
// decode runs first and short-circuits to false, without calling the node,
// for an address that decodes with a different human-readable prefix; an
// address that does not decode as Bech32 at all is passed on to the node.
func (c *Client) ValidateAddress(ctx context.Context, addr string) bool {
	if c.cfg.AddressHRP != "" {
		if hrp, _, err := bech32.Decode(addr); err == nil {
			if !strings.EqualFold(hrp, c.cfg.AddressHRP) {
				return false
			}
		}
		// A decode error here does not by itself mean the address is
		// invalid — some valid addresses on Bitcoin-derived chains are
		// not Bech32 (legacy base58 formats) — so fall through to the
		// node's authoritative check rather than rejecting locally.
	}

	var result validateAddressWire
	err := c.call(ctx, "validateaddress", []interface{}{addr}, &result)
	if err != nil {
		log.Warnf("validateaddress transport failure for %q, treating as valid: %v", addr, err)
		return true
	}
	return result.IsValid
}

// GetNewAddress requests a fresh receive address from the current wallet,
// for use as a change address when none is configured.
func (c *Client) GetNewAddress(ctx context.Context) (string, error) {
	var addr string
	if err := c.call(ctx, "getnewaddress", []interface{}{}, &addr); err != nil {
		return "", err
	}
	return addr, nil
}

// CreateRawTransaction builds an unsigned transaction hex from the given
// inputs and address->amount outputs. Output amounts are rendered with
// Amount's fixed eight-digit, round-half-to-even textual form before being
// handed to the node, so serialization never passes through a float.
func (c *Client) CreateRawTransaction(ctx context.Context, inputs []model.UnspentOutput, outputs map[string]amount.Amount) (string, error) {
	wireInputs := make([]rawInput, 0, len(inputs))
	for _, in := range inputs {
		wireInputs = append(wireInputs, rawInput{TxID: in.TxID, Vout: in.Vout})
	}
	wireOutputs := make(map[string]json.Number, len(outputs))
	for addr, amt := range outputs {
		wireOutputs[addr] = json.Number(amt.String())
	}

	var hex string
	if err := c.call(ctx, "createrawtransaction", []interface{}{wireInputs, wireOutputs}, &hex); err != nil {
		return "", err
	}
	return hex, nil
}

// SignRawTxResult is the outcome of SignRawTransaction.
type SignRawTxResult struct {
	Hex      string
	Complete bool
}

// SignRawTransaction asks the node to sign hex using the current wallet. If
// the node reports the transaction as incomplete, the call fails with a
// SigningFailed error carrying the per-input error list.
func (c *Client) SignRawTransaction(ctx context.Context, hex string, mode SignMode) (*SignRawTxResult, error) {
	method := "signrawtransactionwithwallet"
	var wire signRawTransactionWire
	if err := c.call(ctx, method, []interface{}{hex}, &wire); err != nil {
		return nil, err
	}
	if !wire.Complete {
		msgs := make([]string, 0, len(wire.Errors))
		for _, e := range wire.Errors {
			msgs = append(msgs, fmt.Sprintf("%s:%d: %s", e.TxID, e.Vout, e.Error))
		}
		return nil, &disperr.SigningFailed{Errors: msgs}
	}
	return &SignRawTxResult{Hex: wire.Hex, Complete: wire.Complete}, nil
}

// SendRawTransaction broadcasts a fully signed transaction and returns its
// txid. A node-level rejection (an RPC error response) is surfaced as
// disperr.ErrBroadcastRejected; transport failures are returned unchanged.
func (c *Client) SendRawTransaction(ctx context.Context, signedHex string) (string, error) {
	var txid string
	err := c.call(ctx, "sendrawtransaction", []interface{}{signedHex}, &txid)
	if err != nil {
		var nodeErr *disperr.NodeRpcError
		if errors.As(err, &nodeErr) {
			return "", fmt.Errorf("%w: %v", disperr.ErrBroadcastRejected, nodeErr)
		}
		return "", err
	}
	return txid, nil
}

// SignTransaction is a convenience wrapper around SignRawTransaction using
// SignWithWallet, the only mode the disburser exercises. It returns just the
// signed hex, which is all the Engine's dispatch loops need.
func (c *Client) SignTransaction(ctx context.Context, hex string) (string, error) {
	result, err := c.SignRawTransaction(ctx, hex, SignWithWallet)
	if err != nil {
		return "", err
	}
	return result.Hex, nil
}

// GetBlockCount returns the current chain height.
func (c *Client) GetBlockCount(ctx context.Context) (int64, error) {
	var height int64
	if err := c.call(ctx, "getblockcount", []interface{}{}, &height); err != nil {
		return 0, err
	}
	return height, nil
}
