package chaingateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/poolcore/disburser/amount"
	"github.com/poolcore/disburser/model"
)

func newTestServer(t *testing.T, handler func(method string, params json.RawMessage) (interface{}, *rpcErrorObject)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		// UseNumber keeps numeric params in the exact textual form the
		// client sent, rather than round-tripping them through float64.
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		require.NoError(t, dec.Decode(&req))
		rawParams, err := json.Marshal(req.Params)
		require.NoError(t, err)

		result, rpcErr := handler(req.Method, rawParams)
		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
		if rpcErr == nil {
			raw, err := json.Marshal(result)
			require.NoError(t, err)
			resp.Result = raw
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func newTestClient(url string) *Client {
	return New(Config{
		RPCURL:      url,
		RPCUser:     "user",
		RPCPassword: "pass",
		Timeout:     2 * time.Second,
		Retries:     1,
	})
}

func TestGetBalance(t *testing.T) {
	srv := newTestServer(t, func(method string, params json.RawMessage) (interface{}, *rpcErrorObject) {
		require.Equal(t, "getbalance", method)
		return 12.5, nil
	})
	defer srv.Close()

	c := newTestClient(srv.URL)
	bal, err := c.GetBalance(context.Background())
	require.NoError(t, err)
	require.Equal(t, amount.New(12.5), bal)
}

func TestListUnspent(t *testing.T) {
	srv := newTestServer(t, func(method string, params json.RawMessage) (interface{}, *rpcErrorObject) {
		require.Equal(t, "listunspent", method)
		return []unspentOutputWire{
			{TxID: "T1", Vout: 0, Address: "addr1", Amount: "10.0", Confirmations: 3, Spendable: true, Solvable: true},
		}, nil
	})
	defer srv.Close()

	c := newTestClient(srv.URL)
	utxos, err := c.ListUnspent(context.Background())
	require.NoError(t, err)
	require.Len(t, utxos, 1)
	require.Equal(t, model.UnspentOutput{
		TxID: "T1", Vout: 0, Amount: amount.New(10.0), Confirmations: 3,
		Spendable: true, Solvable: true, Address: "addr1",
	}, utxos[0])
}

func TestSendRawTransactionRejected(t *testing.T) {
	srv := newTestServer(t, func(method string, params json.RawMessage) (interface{}, *rpcErrorObject) {
		require.Equal(t, "sendrawtransaction", method)
		return nil, &rpcErrorObject{Code: -26, Message: "bad-txns"}
	})
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.SendRawTransaction(context.Background(), "deadbeef")
	require.Error(t, err)
}

func TestValidateAddressTransportFailureAssumesValid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	require.True(t, c.ValidateAddress(context.Background(), "someaddr"))
}

func TestCreateRawTransactionRendersFixedPointOutputs(t *testing.T) {
	var seenOutputs map[string]json.Number
	srv := newTestServer(t, func(method string, params json.RawMessage) (interface{}, *rpcErrorObject) {
		require.Equal(t, "createrawtransaction", method)
		var args []json.RawMessage
		require.NoError(t, json.Unmarshal(params, &args))
		require.NoError(t, json.Unmarshal(args[1], &seenOutputs))
		return "deadbeef", nil
	})
	defer srv.Close()

	c := newTestClient(srv.URL)
	hex, err := c.CreateRawTransaction(context.Background(),
		[]model.UnspentOutput{{TxID: "T1", Vout: 0}},
		map[string]amount.Amount{"addr1": amount.New(1.5)},
	)
	require.NoError(t, err)
	require.Equal(t, "deadbeef", hex)
	require.Equal(t, json.Number("1.50000000"), seenOutputs["addr1"])
}
