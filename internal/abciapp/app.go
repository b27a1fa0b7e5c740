// Package abciapp implements the ABCI application sitting between the
// consensus layer's ordered certificate stream and the EVM execution
// primitive in internal/evmstate. It keeps two world states: current, which
// the consensus role mutates over the course of one block, and committed,
// the last state a Commit has published. Queries only ever see committed.
package abciapp

import (
	"encoding/json"
	"sync"

	abcitypes "github.com/tendermint/tendermint/abci/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/narwhalabci/evm-engine/internal/evmstate"
	"github.com/narwhalabci/evm-engine/internal/wire"
)

// demoAccount is seeded with 1.5 ETH at genesis when Application is started
// in demo mode.
var demoAccount = common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")

func demoBalance() *uint256.Int {
	v, _ := uint256.FromDecimal("1500000000000000000")
	return v
}

// Application implements abcitypes.Application. currentMu guards current,
// committedMu guards committed; Commit always takes currentMu then
// committedMu, and every other method that touches committed takes only
// committedMu, so the two locks never nest in the opposite order.
type Application struct {
	currentMu sync.Mutex
	current   *evmstate.State

	committedMu sync.Mutex
	committed   *evmstate.State

	initialized bool
	initMu      sync.Mutex
}

// New returns an Application with an empty world-state. When demo is true
// the genesis account is pre-funded, mirroring the reference server's
// `--demo` mode.
func New(chainID uint64, demo bool) *Application {
	env := evmstate.DefaultEnv(chainID)
	s := evmstate.New(env)
	if demo {
		s.SeedAccount(demoAccount, demoBalance())
	}
	return &Application{current: s, committed: s.Clone()}
}

var _ abcitypes.Application = (*Application)(nil)

// InitChain is idempotent: a second InitChain call (e.g. a node rejoining
// before its first Commit) is logged and otherwise ignored rather than
// re-seeding state on top of whatever DeliverTx has already done.
func (a *Application) InitChain(req abcitypes.RequestInitChain) abcitypes.ResponseInitChain {
	a.initMu.Lock()
	defer a.initMu.Unlock()
	if a.initialized {
		log.Warn("InitChain called again, ignoring", "chainId", req.ChainId)
		return abcitypes.ResponseInitChain{}
	}
	a.initialized = true
	return abcitypes.ResponseInitChain{}
}

// BeginBlock is a pure lifecycle signal; there is nothing to prepare beyond
// what InitChain and the previous Commit already left in current.
func (a *Application) BeginBlock(req abcitypes.RequestBeginBlock) abcitypes.ResponseBeginBlock {
	return abcitypes.ResponseBeginBlock{}
}

// DeliverTx decodes and executes a single transaction against current. A
// malformed request or a symbolic recipient is a data-plane failure: it is
// reported in the response body as "could not decode request" rather than a
// non-zero ABCI code, and current is left untouched.
func (a *Application) DeliverTx(req abcitypes.RequestDeliverTx) abcitypes.ResponseDeliverTx {
	var tx wire.TransactionRequest
	if err := json.Unmarshal(req.Tx, &tx); err != nil {
		log.Debug("DeliverTx: could not decode request", "error", err)
		return abcitypes.ResponseDeliverTx{Code: abcitypes.CodeTypeOK, Data: []byte(wire.DecodeRequestResponse)}
	}
	if err := wire.ResolveRecipient(&tx); err != nil {
		log.Debug("DeliverTx: could not resolve recipient", "error", err)
		return abcitypes.ResponseDeliverTx{Code: abcitypes.CodeTypeOK, Data: []byte(wire.DecodeRequestResponse)}
	}

	a.currentMu.Lock()
	defer a.currentMu.Unlock()

	result, err := evmstate.Execute(a.current, &tx, evmstate.Write)
	if err != nil {
		log.Debug("DeliverTx: could not decode request", "error", err)
		return abcitypes.ResponseDeliverTx{Code: abcitypes.CodeTypeOK, Data: []byte(wire.DecodeRequestResponse)}
	}

	data, err := json.Marshal(result)
	if err != nil {
		log.Error("DeliverTx: could not encode execution result", "error", err)
		return abcitypes.ResponseDeliverTx{Code: abcitypes.CodeTypeOK}
	}
	return abcitypes.ResponseDeliverTx{Code: abcitypes.CodeTypeOK, Data: data, GasUsed: int64(result.GasUsed)}
}

// EndBlock stamps current's height. app_hash is left empty: this layer keeps
// no state commitment, by design (spec's non-goals exclude state roots).
func (a *Application) EndBlock(req abcitypes.RequestEndBlock) abcitypes.ResponseEndBlock {
	a.currentMu.Lock()
	defer a.currentMu.Unlock()
	a.current.BlockHeight = req.Height
	a.current.AppHash = nil
	return abcitypes.ResponseEndBlock{}
}

// Commit publishes current as the new committed, atomically with respect to
// Query and Info. Lock order is always current, then committed.
func (a *Application) Commit() abcitypes.ResponseCommit {
	a.currentMu.Lock()
	defer a.currentMu.Unlock()

	snapshot := a.current.Clone()

	a.committedMu.Lock()
	a.committed = snapshot
	a.committedMu.Unlock()

	log.Debug("Commit", "height", snapshot.BlockHeight)
	return abcitypes.ResponseCommit{Data: nil, RetainHeight: 0}
}

// CheckTx always accepts: there is no mempool admission policy at this
// layer, ordering and inclusion are decided upstream of the ABCI boundary.
func (a *Application) CheckTx(req abcitypes.RequestCheckTx) abcitypes.ResponseCheckTx {
	return abcitypes.ResponseCheckTx{Code: abcitypes.CodeTypeOK}
}

// Info reports committed's height and app hash, used by the engine to
// resume a restarted node at last_block_height + 1.
func (a *Application) Info(req abcitypes.RequestInfo) abcitypes.ResponseInfo {
	a.committedMu.Lock()
	defer a.committedMu.Unlock()
	return abcitypes.ResponseInfo{
		LastBlockHeight:  a.committed.BlockHeight,
		LastBlockAppHash: a.committed.AppHash,
	}
}

// Query answers EthCall and Balance requests against committed only, never
// current — this is the query isolation invariant: an in-progress block's
// mutations must never be visible to a concurrent query.
func (a *Application) Query(req abcitypes.RequestQuery) abcitypes.ResponseQuery {
	q, err := wire.DecodeQuery(req.Data)
	if err != nil {
		log.Debug("Query: could not decode request", "error", err)
		return abcitypes.ResponseQuery{Code: abcitypes.CodeTypeOK, Key: req.Data, Value: []byte(wire.DecodeRequestResponse)}
	}

	a.committedMu.Lock()
	defer a.committedMu.Unlock()

	var resp wire.QueryResponse
	switch {
	case q.Balance != nil:
		resp = wire.NewBalanceResponse(a.committed.Balance(*q.Balance).String())
	case q.EthCall != nil:
		if err := wire.ResolveRecipient(q.EthCall); err != nil {
			return abcitypes.ResponseQuery{Code: abcitypes.CodeTypeOK, Key: req.Data, Value: []byte(wire.DecodeRequestResponse)}
		}
		result, err := evmstate.Execute(a.committed, q.EthCall, evmstate.ReadOnly)
		if err != nil {
			return abcitypes.ResponseQuery{Code: abcitypes.CodeTypeOK, Key: req.Data, Value: []byte(wire.DecodeRequestResponse)}
		}
		resp = wire.NewTxResponse(result)
	}

	value, err := json.Marshal(resp)
	if err != nil {
		log.Error("Query: could not encode response", "error", err)
		return abcitypes.ResponseQuery{Code: abcitypes.CodeTypeOK, Key: req.Data}
	}
	return abcitypes.ResponseQuery{Code: abcitypes.CodeTypeOK, Key: req.Data, Value: value}
}

// ListSnapshots, OfferSnapshot, LoadSnapshotChunk and ApplySnapshotChunk are
// not implemented: this layer has no state-sync story, so the state-sync
// connection reports it has nothing to offer.
func (a *Application) ListSnapshots(req abcitypes.RequestListSnapshots) abcitypes.ResponseListSnapshots {
	return abcitypes.ResponseListSnapshots{}
}

func (a *Application) OfferSnapshot(req abcitypes.RequestOfferSnapshot) abcitypes.ResponseOfferSnapshot {
	return abcitypes.ResponseOfferSnapshot{}
}

func (a *Application) LoadSnapshotChunk(req abcitypes.RequestLoadSnapshotChunk) abcitypes.ResponseLoadSnapshotChunk {
	return abcitypes.ResponseLoadSnapshotChunk{}
}

func (a *Application) ApplySnapshotChunk(req abcitypes.RequestApplySnapshotChunk) abcitypes.ResponseApplySnapshotChunk {
	return abcitypes.ResponseApplySnapshotChunk{}
}
