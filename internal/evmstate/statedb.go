package evmstate

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"
)

// stateDBAdapter implements vm.StateDB directly over a flat in-memory
// account map, with no trie/DB backing — the Go analogue of the Rust side's
// revm CacheDB<EmptyDB>. Snapshotting is implemented as a stack of deep
// clones of the account map rather than a fine-grained journal; at this
// system's scale (per-tx execution, no block-wide batching of thousands of
// contracts) that trade-off keeps the adapter simple and obviously correct.
type stateDBAdapter struct {
	accounts map[common.Address]*Account
	snaps    []map[common.Address]*Account
	suicided map[common.Address]bool
	refund   uint64
	logs     []*types.Log
	preimage map[common.Hash][]byte

	accessAddrs map[common.Address]bool
	accessSlots map[common.Address]map[common.Hash]bool
}

func newStateDBAdapter(accounts map[common.Address]*Account) *stateDBAdapter {
	return &stateDBAdapter{
		accounts:    accounts,
		suicided:    make(map[common.Address]bool),
		preimage:    make(map[common.Hash][]byte),
		accessAddrs: make(map[common.Address]bool),
		accessSlots: make(map[common.Address]map[common.Hash]bool),
	}
}

func cloneAccounts(in map[common.Address]*Account) map[common.Address]*Account {
	out := make(map[common.Address]*Account, len(in))
	for addr, acc := range in {
		out[addr] = acc.clone()
	}
	return out
}

func (s *stateDBAdapter) account(addr common.Address) *Account {
	acc, ok := s.accounts[addr]
	if !ok {
		acc = newAccount()
		s.accounts[addr] = acc
	}
	return acc
}

func (s *stateDBAdapter) CreateAccount(addr common.Address) {
	s.accounts[addr] = newAccount()
}

func (s *stateDBAdapter) SubBalance(addr common.Address, amount *big.Int) {
	if amount.Sign() == 0 {
		return
	}
	acc := s.account(addr)
	v, _ := uint256.FromBig(amount)
	acc.Balance = new(uint256.Int).Sub(acc.Balance, v)
}

func (s *stateDBAdapter) AddBalance(addr common.Address, amount *big.Int) {
	if amount.Sign() == 0 {
		return
	}
	acc := s.account(addr)
	v, _ := uint256.FromBig(amount)
	acc.Balance = new(uint256.Int).Add(acc.Balance, v)
}

func (s *stateDBAdapter) GetBalance(addr common.Address) *big.Int {
	return s.account(addr).Balance.ToBig()
}

func (s *stateDBAdapter) GetNonce(addr common.Address) uint64 {
	return s.account(addr).Nonce
}

func (s *stateDBAdapter) SetNonce(addr common.Address, nonce uint64) {
	s.account(addr).Nonce = nonce
}

func (s *stateDBAdapter) GetCodeHash(addr common.Address) common.Hash {
	code := s.account(addr).Code
	if len(code) == 0 {
		return common.Hash{}
	}
	return common.BytesToHash(code[:min(len(code), 32)])
}

func (s *stateDBAdapter) GetCode(addr common.Address) []byte {
	return s.account(addr).Code
}

func (s *stateDBAdapter) SetCode(addr common.Address, code []byte) {
	s.account(addr).Code = code
}

func (s *stateDBAdapter) GetCodeSize(addr common.Address) int {
	return len(s.account(addr).Code)
}

func (s *stateDBAdapter) AddRefund(gas uint64) { s.refund += gas }

func (s *stateDBAdapter) SubRefund(gas uint64) {
	if gas > s.refund {
		s.refund = 0
		return
	}
	s.refund -= gas
}

func (s *stateDBAdapter) GetRefund() uint64 { return s.refund }

// GetCommittedState mirrors GetState: this layer does not model a
// gas-metered fee market, so EIP-2200 style "original value" refund
// accounting is not tracked separately from live storage.
func (s *stateDBAdapter) GetCommittedState(addr common.Address, key common.Hash) common.Hash {
	return s.GetState(addr, key)
}

func (s *stateDBAdapter) GetState(addr common.Address, key common.Hash) common.Hash {
	return s.account(addr).Storage[key]
}

func (s *stateDBAdapter) SetState(addr common.Address, key, value common.Hash) {
	s.account(addr).Storage[key] = value
}

func (s *stateDBAdapter) Suicide(addr common.Address) bool {
	if _, ok := s.accounts[addr]; !ok {
		return false
	}
	s.suicided[addr] = true
	s.accounts[addr] = newAccount()
	return true
}

func (s *stateDBAdapter) HasSuicided(addr common.Address) bool {
	return s.suicided[addr]
}

func (s *stateDBAdapter) Exist(addr common.Address) bool {
	_, ok := s.accounts[addr]
	return ok || s.suicided[addr]
}

func (s *stateDBAdapter) Empty(addr common.Address) bool {
	acc, ok := s.accounts[addr]
	if !ok {
		return true
	}
	return acc.Nonce == 0 && acc.Balance.IsZero() && len(acc.Code) == 0
}

func (s *stateDBAdapter) PrepareAccessList(sender common.Address, dest *common.Address, precompiles []common.Address, txAccesses types.AccessList) {
	s.accessAddrs[sender] = true
	if dest != nil {
		s.accessAddrs[*dest] = true
	}
	for _, p := range precompiles {
		s.accessAddrs[p] = true
	}
	for _, a := range txAccesses {
		s.accessAddrs[a.Address] = true
		for _, slot := range a.StorageKeys {
			s.addSlot(a.Address, slot)
		}
	}
}

func (s *stateDBAdapter) addSlot(addr common.Address, slot common.Hash) {
	m, ok := s.accessSlots[addr]
	if !ok {
		m = make(map[common.Hash]bool)
		s.accessSlots[addr] = m
	}
	m[slot] = true
}

func (s *stateDBAdapter) AddressInAccessList(addr common.Address) bool {
	return s.accessAddrs[addr]
}

func (s *stateDBAdapter) SlotInAccessList(addr common.Address, slot common.Hash) (bool, bool) {
	addrOk := s.accessAddrs[addr]
	slotOk := s.accessSlots[addr] != nil && s.accessSlots[addr][slot]
	return addrOk, slotOk
}

func (s *stateDBAdapter) AddAddressToAccessList(addr common.Address) {
	s.accessAddrs[addr] = true
}

func (s *stateDBAdapter) AddSlotToAccessList(addr common.Address, slot common.Hash) {
	s.accessAddrs[addr] = true
	s.addSlot(addr, slot)
}

func (s *stateDBAdapter) RevertToSnapshot(id int) {
	if id < 0 || id >= len(s.snaps) {
		return
	}
	s.accounts = cloneAccounts(s.snaps[id])
	s.snaps = s.snaps[:id]
}

func (s *stateDBAdapter) Snapshot() int {
	s.snaps = append(s.snaps, cloneAccounts(s.accounts))
	return len(s.snaps) - 1
}

func (s *stateDBAdapter) AddLog(log *types.Log) {
	s.logs = append(s.logs, log)
}

func (s *stateDBAdapter) AddPreimage(hash common.Hash, preimage []byte) {
	s.preimage[hash] = append([]byte(nil), preimage...)
}

func (s *stateDBAdapter) ForEachStorage(addr common.Address, cb func(common.Hash, common.Hash) bool) error {
	for k, v := range s.account(addr).Storage {
		if !cb(k, v) {
			break
		}
	}
	return nil
}

var _ vm.StateDB = (*stateDBAdapter)(nil)
