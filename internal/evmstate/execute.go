package evmstate

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"

	"github.com/narwhalabci/evm-engine/internal/wire"
)

// Mode selects whether Execute commits its mutations back into State
// (Write) or discards them (ReadOnly).
type Mode int

const (
	// Write commits the execution's state diff into the receiving State.
	Write Mode = iota
	// ReadOnly discards any mutation; used for /abci_query EthCall.
	ReadOnly
)

// chainConfigForEnv maps Env into a go-ethereum ChainConfig with every known
// fork already active — this layer has no notion of historical forking
// rules, only "the current EVM semantics".
func chainConfigForEnv(env Env) *params.ChainConfig {
	cfg := *params.AllEthashProtocolChanges
	cfg.ChainID = new(big.Int).Set(env.ChainID)
	return &cfg
}

func blockContext(s *State) vm.BlockContext {
	return vm.BlockContext{
		CanTransfer: func(db vm.StateDB, addr common.Address, amount *big.Int) bool {
			return db.GetBalance(addr).Cmp(amount) >= 0
		},
		Transfer: func(db vm.StateDB, from, to common.Address, amount *big.Int) {
			db.SubBalance(from, amount)
			db.AddBalance(to, amount)
		},
		GetHash:     func(uint64) common.Hash { return common.Hash{} },
		Coinbase:    s.Env.Coinbase,
		GasLimit:    s.Env.GasLimit,
		BlockNumber: new(big.Int).Set(s.Env.BlockNumber),
		Time:        new(big.Int).SetUint64(s.Env.Timestamp),
		Difficulty:  new(big.Int).Set(s.Env.Difficulty),
		BaseFee:     big.NewInt(0),
	}
}

// txContext builds the per-transaction EVM fields: caller = tx.from or 0;
// chain_id from env; gas_price = tx.gasPrice or 0 (gas_priority_fee mirrors
// gas_price — this layer does not model a separate priority fee market).
func txContext(s *State, tx *wire.TransactionRequest) vm.TxContext {
	return vm.TxContext{
		Origin:   tx.FromAddress(),
		GasPrice: tx.GasPriceU256().ToBig(),
	}
}

// Execute runs tx against state and always returns the execution trace,
// including reverts — a revert is not an error at this layer. Callers must
// have already resolved tx.To via wire.ResolveRecipient; Execute itself does
// not attempt name resolution.
//
// Gas accounting mirrors go-ethereum's StateTransition: the sender is
// charged gasLimit*gasPrice up front, the EVM only ever runs against the
// gas left after the intrinsic cost is deducted, and any leftover gas plus
// a capped refund is credited back once execution finishes.
func Execute(state *State, tx *wire.TransactionRequest, mode Mode) (wire.TransactionResult, error) {
	if tx.To != nil && !tx.To.IsAddress() {
		return wire.TransactionResult{}, wire.ErrInvalidRecipient
	}

	from := tx.FromAddress()
	gas := tx.GasLimit()
	gasPrice := tx.GasPriceU256().ToBig()
	value := tx.ValueU256().ToBig()
	contractCreation := tx.ToAddress() == nil

	intrinsicGas, err := core.IntrinsicGas(tx.CallData(), nil, contractCreation, true, true)
	if err != nil {
		return wire.TransactionResult{}, err
	}

	result := wire.TransactionResult{Request: *tx}

	if gas < intrinsicGas {
		result.Reverted = true
		result.ExitCode = "intrinsic gas too low"
		result.GasUsed = gas
		return result, nil
	}

	// Execute always runs against a private clone of the account map so that
	// a ReadOnly call can discard its mutations by simply not writing the
	// clone back, with no separate per-call revert path needed.
	adapter := newStateDBAdapter(cloneAccounts(state.accounts))

	gasCost := new(big.Int).Mul(new(big.Int).SetUint64(gas), gasPrice)
	if adapter.GetBalance(from).Cmp(gasCost) < 0 {
		result.Reverted = true
		result.ExitCode = "insufficient balance for gas"
		result.GasUsed = gas
		return result, nil
	}
	adapter.SubBalance(from, gasCost)

	evm := vm.NewEVM(blockContext(state), txContext(state, tx), adapter, chainConfigForEnv(state.Env), vm.Config{})
	caller := vm.AccountRef(from)
	execGas := gas - intrinsicGas

	var (
		ret         []byte
		leftOverGas uint64
		createdAddr common.Address
		vmErr       error
	)

	if to := tx.ToAddress(); to != nil {
		ret, leftOverGas, vmErr = evm.Call(caller, *to, tx.CallData(), execGas, value)
	} else {
		ret, createdAddr, leftOverGas, vmErr = evm.Create(caller, tx.CallData(), execGas, value)
		result.CreatedAddr = &createdAddr
	}

	preRefundGasUsed := gas - leftOverGas
	refund := adapter.GetRefund()
	if refundCap := preRefundGasUsed / params.RefundQuotientEIP3529; refund > refundCap {
		refund = refundCap
	}
	gasRemaining := leftOverGas + refund
	adapter.AddBalance(from, new(big.Int).Mul(new(big.Int).SetUint64(gasRemaining), gasPrice))

	result.Output = ret
	result.GasUsed = gas - gasRemaining
	result.Logs = wire.LogsFromTypes(adapter.logs)
	if vmErr != nil {
		result.Reverted = true
		result.ExitCode = vmErr.Error()
	} else {
		result.ExitCode = "success"
	}

	if mode == Write {
		state.accounts = adapter.accounts
	}

	return result, nil
}
