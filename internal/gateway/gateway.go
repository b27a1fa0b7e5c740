// Package gateway implements the HTTP surface clients use to submit
// transactions and issue queries: GET /broadcast_tx and GET /abci_query, plus
// a supplemented /healthz liveness probe.
package gateway

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	abcitypes "github.com/tendermint/tendermint/abci/types"

	"github.com/ethereum/go-ethereum/log"

	"github.com/narwhalabci/evm-engine/internal/wire"
)

// Enqueuer is the subset of *engine.Engine the gateway depends on: submit a
// query, get back the one-shot reply channel.
type Enqueuer interface {
	Enqueue(req wire.QueryRequest) <-chan abcitypes.ResponseQuery
}

// Gateway serves the client-facing HTTP API. mempoolAddr is the TCP address
// transactions are framed and forwarded to; engine answers queries.
type Gateway struct {
	mempoolAddr string
	engine      Enqueuer
	ready       func() bool

	server *http.Server
}

// New returns a Gateway bound to addr, proxying broadcasts to mempoolAddr and
// queries to engine. ready reports whether engine startup has completed, for
// /healthz.
func New(addr, mempoolAddr string, engine Enqueuer, ready func() bool) *Gateway {
	g := &Gateway{mempoolAddr: mempoolAddr, engine: engine, ready: ready}

	router := mux.NewRouter()
	router.HandleFunc("/broadcast_tx", g.handleBroadcastTx).Methods(http.MethodGet)
	router.HandleFunc("/abci_query", g.handleAbciQuery).Methods(http.MethodGet)
	router.HandleFunc("/healthz", g.handleHealthz).Methods(http.MethodGet)

	handler := cors.AllowAll().Handler(router)

	// always rebind to 0.0.0.0 regardless of the host portion of the
	// configured address.
	_, port, err := net.SplitHostPort(addr)
	bind := addr
	if err == nil {
		bind = net.JoinHostPort("0.0.0.0", port)
	}

	g.server = &http.Server{Addr: bind, Handler: handler}
	return g
}

// ListenAndServe starts the HTTP server; it blocks until the server stops.
func (g *Gateway) ListenAndServe() error {
	log.Info("gateway listening", "addr", g.server.Addr)
	return g.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (g *Gateway) Shutdown(ctx context.Context) error {
	return g.server.Shutdown(ctx)
}

func (g *Gateway) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if g.ready != nil && !g.ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleBroadcastTx opens a one-shot TCP connection to the mempool address,
// frames the raw tx bytes with a 4-byte big-endian length prefix, sends it,
// and closes. Connect/send failures are reported as a 200 with an
// "ERROR IN:" prefix rather than an HTTP error — the upstream consensus
// layer, not this gateway, is responsible for rejecting malformed admission.
func (g *Gateway) handleBroadcastTx(w http.ResponseWriter, r *http.Request) {
	tx := r.URL.Query().Get("tx")

	conn, err := net.DialTimeout("tcp", g.mempoolAddr, 5*time.Second)
	if err != nil {
		fmt.Fprintf(w, "ERROR IN: connecting to mempool: %v", err)
		return
	}
	defer conn.Close()

	if err := writeFrame(conn, []byte(tx)); err != nil {
		fmt.Fprintf(w, "ERROR IN: sending to mempool: %v", err)
		return
	}

	fmt.Fprintf(w, "%s", tx)
}

func writeFrame(conn net.Conn, payload []byte) error {
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(payload)))
	if _, err := conn.Write(lenPrefix[:]); err != nil {
		return err
	}
	_, err := conn.Write(payload)
	return err
}

// handleAbciQuery builds a wire.QueryRequest from the query string,
// enqueues it on the engine's channel, and waits for the reply. path,
// height and prove are forwarded verbatim into the ABCI RequestQuery the
// engine issues; data carries the EthCall/Balance tagged union.
func (g *Gateway) handleAbciQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	path := q.Get("path")
	var height int64
	if h := q.Get("height"); h != "" {
		height, _ = strconv.ParseInt(h, 10, 64)
	}
	prove := q.Get("prove") == "true"

	query := wire.Query{}
	if err := json.Unmarshal([]byte(q.Get("data")), &query); err != nil {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(wire.NewBalanceResponse(wire.DecodeRequestResponse))
		return
	}

	reply := g.engine.Enqueue(wire.QueryRequest{Query: query, Path: path, Height: height, Prove: prove})
	resp, ok := <-reply
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(wire.NewBalanceResponse(wire.DecodeRequestResponse))
		return
	}

	qr := wire.QueryResponse{}
	if err := json.Unmarshal(resp.Value, &qr); err != nil {
		qr = wire.NewBalanceResponse(wire.DecodeRequestResponse)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(qr)
}
