// Package engine implements the execution engine: the single writer to the
// ABCI application's consensus role, translating an ordered certificate
// stream into BeginBlock/DeliverTx*/EndBlock/Commit calls, and answering
// queries against the application's info/query role without ever competing
// with the consensus socket for a connection.
package engine

import (
	"encoding/json"
	"sync/atomic"

	"github.com/pkg/errors"
	abcitypes "github.com/tendermint/tendermint/abci/types"

	"github.com/ethereum/go-ethereum/log"

	"github.com/narwhalabci/evm-engine/internal/wire"
	"github.com/narwhalabci/evm-engine/internal/workerstore"
)

// ErrCertificateAborted names the outcome of a failed certificate. handleCert
// neither returns nor logs this value: it logs each abort with its own
// message and moves on to the next certificate rather than stopping the
// engine.
var ErrCertificateAborted = errors.New("certificate aborted")

// queryRequest pairs an inbound wire.QueryRequest with the one-shot reply
// slot the Gateway is waiting on.
type queryRequest struct {
	req   wire.QueryRequest
	reply chan abcitypes.ResponseQuery
}

// ConsensusClient is the subset of abciclient.Client the engine drives its
// block lifecycle through. Narrowing the dependency to just these methods
// lets tests exercise handleCert against a small fake instead of the full
// socket client.
type ConsensusClient interface {
	InfoSync(abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error)
	InitChainSync(abcitypes.RequestInitChain) (*abcitypes.ResponseInitChain, error)
	BeginBlockSync(abcitypes.RequestBeginBlock) (*abcitypes.ResponseBeginBlock, error)
	DeliverTxSync(abcitypes.RequestDeliverTx) (*abcitypes.ResponseDeliverTx, error)
	EndBlockSync(abcitypes.RequestEndBlock) (*abcitypes.ResponseEndBlock, error)
	CommitSync() (*abcitypes.ResponseCommit, error)
}

// QueryClient is the subset of abciclient.Client the engine issues queries
// through.
type QueryClient interface {
	QuerySync(abcitypes.RequestQuery) (*abcitypes.ResponseQuery, error)
}

// Engine owns the two ABCI client connections and the query channel.
type Engine struct {
	consensus ConsensusClient
	queries   QueryClient
	store     *workerstore.Store

	rxQueries chan queryRequest

	lastHeight atomic.Int64
}

// New returns an Engine driving consensus and queries over the given ABCI
// client connections, looking up batches in store.
func New(consensus ConsensusClient, queries QueryClient, store *workerstore.Store) *Engine {
	return &Engine{
		consensus: consensus,
		queries:   queries,
		store:     store,
		rxQueries: make(chan queryRequest, 1000),
	}
}

// Start connects to the application, resolves the resume height from Info,
// and calls InitChain, tolerating an already-initialized chain.
func (e *Engine) Start() error {
	info, err := e.consensus.InfoSync(abcitypes.RequestInfo{})
	if err != nil {
		return errors.Wrap(err, "engine startup: Info")
	}
	e.lastHeight.Store(info.LastBlockHeight)

	if _, err := e.consensus.InitChainSync(abcitypes.RequestInitChain{}); err != nil {
		log.Warn("engine startup: InitChain failed, assuming already initialized", "error", err)
	}
	return nil
}

// LastBlockHeight reports the height of the last certificate this engine has
// started processing — used to assert the resume invariant across restarts.
func (e *Engine) LastBlockHeight() int64 {
	return e.lastHeight.Load()
}

// CertificateSource supplies the ordered certificate stream the engine
// drives its consensus calls from. The DAG/consensus layer that produces
// this stream lives outside this module; only an in-memory producer for
// local testing is implemented here.
type CertificateSource interface {
	Certificates() <-chan wire.Certificate
}

// RunFrom drives Run from a CertificateSource, for callers that don't want
// to reach into the channel directly.
func (e *Engine) RunFrom(src CertificateSource) {
	e.Run(src.Certificates())
}

// Run dispatches each certificate from certs and each query from rxQueries
// as it arrives. It returns only once both certs and rxQueries are closed;
// nothing in this package closes rxQueries, so after certs closes Run keeps
// answering queries.
func (e *Engine) Run(certs <-chan wire.Certificate) {
	for certs != nil || e.rxQueries != nil {
		select {
		case cert, ok := <-certs:
			if !ok {
				certs = nil
				continue
			}
			e.handleCert(cert)
		case req, ok := <-e.rxQueries:
			if !ok {
				e.rxQueries = nil
				continue
			}
			e.handleQuery(req)
		}
	}
}

// Enqueue submits a query for the engine to answer, returning the one-shot
// reply channel the caller should receive from. It blocks if the query
// channel is at capacity, which is the intended backpressure signal to HTTP
// callers.
func (e *Engine) Enqueue(req wire.QueryRequest) <-chan abcitypes.ResponseQuery {
	reply := make(chan abcitypes.ResponseQuery, 1)
	e.rxQueries <- queryRequest{req: req, reply: reply}
	return reply
}

func (e *Engine) handleCert(cert wire.Certificate) {
	h := e.lastHeight.Load() + 1
	e.lastHeight.Store(h)

	if _, err := e.consensus.BeginBlockSync(abcitypes.RequestBeginBlock{Height: h}); err != nil {
		log.Error("BeginBlock failed, aborting certificate", "height", h, "error", err)
		return
	}

	for _, item := range cert.Header.Payload {
		batch, err := e.store.Batch(item.WorkerID, item.Digest)
		if err != nil {
			log.Error("certificate reconstruction failed, batch missing", "height", h, "digest", item.Digest, "worker", item.WorkerID, "error", err)
			return
		}
		for _, tx := range batch {
			log.Warn("delivering tx", "height", h, "bytes", len(tx))
			if _, err := e.consensus.DeliverTxSync(abcitypes.RequestDeliverTx{Tx: tx}); err != nil {
				log.Error("DeliverTx failed, aborting certificate", "height", h, "error", err)
				return
			}
		}
	}

	if _, err := e.consensus.EndBlockSync(abcitypes.RequestEndBlock{Height: h}); err != nil {
		log.Error("EndBlock failed, aborting certificate", "height", h, "error", err)
		return
	}
	if _, err := e.consensus.CommitSync(); err != nil {
		log.Error("Commit failed, aborting certificate", "height", h, "error", err)
		return
	}
}

func (e *Engine) handleQuery(req queryRequest) {
	data, err := json.Marshal(req.req.Query)
	if err != nil {
		log.Error("could not encode outbound query", "error", err)
		close(req.reply)
		return
	}

	resp, err := e.queries.QuerySync(abcitypes.RequestQuery{
		Data:   data,
		Path:   req.req.Path,
		Height: req.req.Height,
		Prove:  req.req.Prove,
	})
	if err != nil {
		log.Error("Query failed", "error", err)
		close(req.reply)
		return
	}

	select {
	case req.reply <- *resp:
	default:
		log.Warn("query reply slot closed, dropping response")
	}
}
