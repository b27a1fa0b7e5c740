// Package evmstate implements the EVM world-state container and the
// single-transaction execution primitive: a flat, in-memory account map (the
// Go analogue of the Rust side's CacheDB<EmptyDB>) executed against
// go-ethereum's vm.EVM. There is no trie/DB backing and no block-hash or
// state-root commitment.
package evmstate

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Account is a world-state entry: balance, nonce, code and storage.
type Account struct {
	Balance *uint256.Int
	Nonce   uint64
	Code    []byte
	Storage map[common.Hash]common.Hash
}

func newAccount() *Account {
	return &Account{Balance: uint256.NewInt(0), Storage: make(map[common.Hash]common.Hash)}
}

func (a *Account) clone() *Account {
	cp := &Account{
		Balance: new(uint256.Int).Set(a.Balance),
		Nonce:   a.Nonce,
		Code:    append([]byte(nil), a.Code...),
		Storage: make(map[common.Hash]common.Hash, len(a.Storage)),
	}
	for k, v := range a.Storage {
		cp.Storage[k] = v
	}
	return cp
}

// Env carries the block-wide EVM parameters that stay fixed across all
// transactions in a block.
type Env struct {
	ChainID     *big.Int
	BlockNumber *big.Int
	Timestamp   uint64
	Difficulty  *big.Int
	GasLimit    uint64
	Coinbase    common.Address
}

// DefaultEnv returns a deterministic, zero-difficulty environment suitable
// for a BFT-ordered chain with no proof-of-work (app_hash/difficulty carry
// no consensus meaning here).
func DefaultEnv(chainID uint64) Env {
	return Env{
		ChainID:     new(big.Int).SetUint64(chainID),
		BlockNumber: big.NewInt(0),
		Timestamp:   0,
		Difficulty:  big.NewInt(0),
		GasLimit:    30_000_000,
		Coinbase:    common.Address{},
	}
}

// State is the EVM world-state container: a flat account map plus the
// block context it is to be executed against. BlockHeight/AppHash track
// block lifecycle bookkeeping; app_hash is always left empty.
type State struct {
	accounts    map[common.Address]*Account
	BlockHeight int64
	AppHash     []byte
	Env         Env
}

// New returns an empty world-state, as produced at genesis.
func New(env Env) *State {
	return &State{accounts: make(map[common.Address]*Account), Env: env}
}

// Clone returns a deep, independent copy of the state — used to snapshot
// committed by value at commit time.
func (s *State) Clone() *State {
	cp := &State{
		accounts:    make(map[common.Address]*Account, len(s.accounts)),
		BlockHeight: s.BlockHeight,
		AppHash:     append([]byte(nil), s.AppHash...),
		Env:         s.Env,
	}
	for addr, acc := range s.accounts {
		cp.accounts[addr] = acc.clone()
	}
	return cp
}

// SeedAccount credits an account with the given balance at genesis. Used by
// the ABCI application's optional demo mode.
func (s *State) SeedAccount(addr common.Address, balance *uint256.Int) {
	acc := s.account(addr)
	acc.Balance = new(uint256.Int).Set(balance)
}

func (s *State) account(addr common.Address) *Account {
	acc, ok := s.accounts[addr]
	if !ok {
		acc = newAccount()
		s.accounts[addr] = acc
	}
	return acc
}

// Balance returns the balance of addr, zero if the account does not exist.
func (s *State) Balance(addr common.Address) *uint256.Int {
	if acc, ok := s.accounts[addr]; ok {
		return new(uint256.Int).Set(acc.Balance)
	}
	return uint256.NewInt(0)
}

