package chaingateway

import "encoding/json"

// rpcRequest is the JSON-RPC 2.0 envelope sent to the chain node.
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

// rpcResponse is the JSON-RPC 2.0 envelope the node returns.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcErrorObject `json:"error"`
}

type rpcErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// unspentOutputWire is the wire shape of one listunspent entry. Amount is
// decoded as json.Number, never float64, so the exact decimal string the
// node sent can be parsed by amount.ParseDecimal without a float detour.
type unspentOutputWire struct {
	TxID          string      `json:"txid"`
	Vout          uint32      `json:"vout"`
	Address       string      `json:"address"`
	ScriptPubKey  string      `json:"scriptPubKey"`
	Amount        json.Number `json:"amount"`
	Confirmations int64       `json:"confirmations"`
	Spendable     bool        `json:"spendable"`
	Solvable      bool        `json:"solvable"`
}

// signRawTransactionWire is the wire shape of a sign-raw-transaction result.
type signRawTransactionWire struct {
	Hex      string                  `json:"hex"`
	Complete bool                    `json:"complete"`
	Errors   []signRawTxErrorEntry   `json:"errors"`
}

type signRawTxErrorEntry struct {
	TxID      string `json:"txid"`
	Vout      uint32 `json:"vout"`
	ScriptSig string `json:"scriptSig"`
	Error     string `json:"error"`
}

// blockchainInfoWire is the wire shape of getblockchaininfo, used only as a
// wallet-agnostic connectivity probe by TestConnection.
type blockchainInfoWire struct {
	Chain  string `json:"chain"`
	Blocks int64  `json:"blocks"`
}

// rawInput is one element of the "inputs" array passed to
// createrawtransaction.
type rawInput struct {
	TxID string `json:"txid"`
	Vout uint32 `json:"vout"`
}

// validateAddressWire is the wire shape of validateaddress.
type validateAddressWire struct {
	IsValid bool `json:"isvalid"`
}
