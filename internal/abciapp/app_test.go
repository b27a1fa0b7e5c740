package abciapp

import (
	"encoding/json"
	"math/big"
	"testing"

	abcitypes "github.com/tendermint/tendermint/abci/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"github.com/narwhalabci/evm-engine/internal/wire"
)

func addrPtr(hex string) *common.Address {
	a := common.HexToAddress(hex)
	return &a
}

func deliverTransfer(t *testing.T, app *Application, from, to string, value uint64) abcitypes.ResponseDeliverTx {
	t.Helper()
	gas := hexutil.Uint64(21000)
	val := hexutil.Big(*big.NewInt(0).SetUint64(value))
	tx := wire.TransactionRequest{
		To:    &wire.AddressOrName{Address: addrPtr(to)},
		Value: &val,
		Gas:   &gas,
	}
	if from != "" {
		tx.From = addrPtr(from)
	}
	raw, err := json.Marshal(tx)
	require.NoError(t, err)
	return app.DeliverTx(abcitypes.RequestDeliverTx{Tx: raw})
}

func TestInitChainIsIdempotent(t *testing.T) {
	app := New(1, false)
	app.InitChain(abcitypes.RequestInitChain{ChainId: "test"})
	require.True(t, app.initialized)
	// a second call must not panic or reset anything; it is a no-op.
	resp := app.InitChain(abcitypes.RequestInitChain{ChainId: "test"})
	require.Equal(t, abcitypes.ResponseInitChain{}, resp)
}

// Commit atomicity: a query against committed must see either the whole of
// the previous block's effects, or the whole of the new block's effects,
// never a partial state in between.
func TestCommitPublishesCurrentAtomically(t *testing.T) {
	app := New(1, true)
	app.InitChain(abcitypes.RequestInitChain{})
	app.BeginBlock(abcitypes.RequestBeginBlock{})

	resp := deliverTransfer(t, app, "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", "0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB", 500)
	require.Equal(t, abcitypes.CodeTypeOK, resp.Code)

	// before Commit, committed must not reflect the transfer.
	q := queryBalance(t, app, "0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB")
	require.Equal(t, "0", q)

	app.EndBlock(abcitypes.RequestEndBlock{Height: 1})
	app.Commit()

	q = queryBalance(t, app, "0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB")
	require.Equal(t, "500", q)
}

// A malformed DeliverTx request must be reported as the data-plane "could
// not decode request" string, never as a non-zero ABCI code, and must leave
// current untouched.
func TestDeliverTxMalformedRequest(t *testing.T) {
	app := New(1, false)
	resp := app.DeliverTx(abcitypes.RequestDeliverTx{Tx: []byte("not json")})
	require.Equal(t, abcitypes.CodeTypeOK, resp.Code)
	require.Equal(t, wire.DecodeRequestResponse, string(resp.Data))
}

func TestQueryMalformedRequest(t *testing.T) {
	app := New(1, false)
	resp := app.Query(abcitypes.RequestQuery{Data: []byte("not json")})
	require.Equal(t, abcitypes.CodeTypeOK, resp.Code)

	var qr wire.QueryResponse
	require.Error(t, json.Unmarshal(resp.Value, &qr))
	require.Equal(t, wire.DecodeRequestResponse, string(resp.Value))
}

func TestInfoReportsCommittedHeight(t *testing.T) {
	app := New(1, false)
	app.InitChain(abcitypes.RequestInitChain{})
	app.BeginBlock(abcitypes.RequestBeginBlock{})
	app.EndBlock(abcitypes.RequestEndBlock{Height: 7})
	app.Commit()

	resp := app.Info(abcitypes.RequestInfo{})
	require.Equal(t, int64(7), resp.LastBlockHeight)
}

func queryBalance(t *testing.T, app *Application, addr string) string {
	t.Helper()
	q := wire.Query{Balance: addrPtr(addr)}
	data, err := json.Marshal(q)
	require.NoError(t, err)
	resp := app.Query(abcitypes.RequestQuery{Data: data})
	require.Equal(t, abcitypes.CodeTypeOK, resp.Code)

	var qr wire.QueryResponse
	require.NoError(t, json.Unmarshal(resp.Value, &qr))
	require.NotNil(t, qr.Balance)
	return *qr.Balance
}
