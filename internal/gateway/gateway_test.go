package gateway

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	abcitypes "github.com/tendermint/tendermint/abci/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/narwhalabci/evm-engine/internal/wire"
)

func addrPtr(hex string) *common.Address {
	a := common.HexToAddress(hex)
	return &a
}

type fakeEnqueuer struct {
	resp     abcitypes.ResponseQuery
	captured *wire.QueryRequest
}

func (f fakeEnqueuer) Enqueue(req wire.QueryRequest) <-chan abcitypes.ResponseQuery {
	if f.captured != nil {
		*f.captured = req
	}
	ch := make(chan abcitypes.ResponseQuery, 1)
	ch <- f.resp
	return ch
}

func TestBroadcastTxFramesAndForwards(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		var lenPrefix [4]byte
		io.ReadFull(conn, lenPrefix[:])
		n := int(lenPrefix[0])<<24 | int(lenPrefix[1])<<16 | int(lenPrefix[2])<<8 | int(lenPrefix[3])
		payload := make([]byte, n)
		io.ReadFull(conn, payload)
		received <- payload
	}()

	g := New("127.0.0.1:0", ln.Addr().String(), fakeEnqueuer{}, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/broadcast_tx?tx=hello", nil)
	g.server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "hello", rec.Body.String())
	require.Equal(t, []byte("hello"), <-received)
}

func TestBroadcastTxReportsConnectFailure(t *testing.T) {
	g := New("127.0.0.1:0", "127.0.0.1:1", fakeEnqueuer{}, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/broadcast_tx?tx=hello", nil)
	g.server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ERROR IN:")
}

func TestAbciQueryRoundTrip(t *testing.T) {
	qr := wire.NewBalanceResponse("500")
	value, err := json.Marshal(qr)
	require.NoError(t, err)

	g := New("127.0.0.1:0", "127.0.0.1:0", fakeEnqueuer{resp: abcitypes.ResponseQuery{Value: value}}, nil)

	data, err := json.Marshal(wire.Query{Balance: addrPtr("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/abci_query?data="+url.QueryEscape(string(data)), nil)
	g.server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got wire.QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.Balance)
	require.Equal(t, "500", *got.Balance)
}

func TestAbciQueryForwardsPathHeightProve(t *testing.T) {
	qr := wire.NewBalanceResponse("0")
	value, err := json.Marshal(qr)
	require.NoError(t, err)

	var captured wire.QueryRequest
	g := New("127.0.0.1:0", "127.0.0.1:0", fakeEnqueuer{resp: abcitypes.ResponseQuery{Value: value}, captured: &captured}, nil)

	data, err := json.Marshal(wire.Query{Balance: addrPtr("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")})
	require.NoError(t, err)

	target := "/abci_query?data=" + url.QueryEscape(string(data)) + "&path=/balance&height=42&prove=true"
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	g.server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "/balance", captured.Path)
	require.Equal(t, int64(42), captured.Height)
	require.True(t, captured.Prove)
}

func TestHealthzReflectsReadiness(t *testing.T) {
	ready := false
	g := New("127.0.0.1:0", "127.0.0.1:0", fakeEnqueuer{}, func() bool { return ready })

	rec := httptest.NewRecorder()
	g.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ready = true
	rec = httptest.NewRecorder()
	g.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

