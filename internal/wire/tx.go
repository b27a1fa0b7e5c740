// Package wire defines the on-the-wire JSON types exchanged between clients,
// the gateway, the execution engine and the ABCI application: transaction
// requests, query/query-response tagged unions, certificates and the
// worker batch envelope.
package wire

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// ErrInvalidRecipient is returned when a TransactionRequest's `to` field
// names a symbolic recipient instead of carrying a concrete address.
// Resolution happens here, in the wire layer, not inside the EVM state
// execution primitive.
var ErrInvalidRecipient = errors.New("invalid recipient: symbolic names are not resolved at this layer")

// TransactionRequest is the JSON transaction object clients submit and the
// engine delivers to the ABCI application: from, to, value, gas, gasPrice,
// nonce, data.
type TransactionRequest struct {
	From     *common.Address `json:"from,omitempty"`
	To       *AddressOrName  `json:"to,omitempty"`
	Value    *hexutil.Big    `json:"value,omitempty"`
	Gas      *hexutil.Uint64 `json:"gas,omitempty"`
	GasPrice *hexutil.Big    `json:"gasPrice,omitempty"`
	Nonce    *hexutil.Uint64 `json:"nonce,omitempty"`
	Data     *hexutil.Bytes  `json:"data,omitempty"`
}

// AddressOrName models the tagged `to` field: either a concrete 20-byte
// address, or a symbolic name the engine must reject.
// It round-trips through JSON as a bare hex string; a string that does not
// parse as an address is kept as a Name and later rejected by
// ResolveRecipient.
type AddressOrName struct {
	Address *common.Address
	Name    string
}

func (a AddressOrName) MarshalJSON() ([]byte, error) {
	if a.Address != nil {
		return json.Marshal(a.Address.Hex())
	}
	return json.Marshal(a.Name)
}

func (a *AddressOrName) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if common.IsHexAddress(s) {
		addr := common.HexToAddress(s)
		a.Address = &addr
		return nil
	}
	a.Name = s
	return nil
}

// IsAddress reports whether the recipient is a concrete address rather than
// a symbolic name.
func (a *AddressOrName) IsAddress() bool {
	return a != nil && a.Address != nil
}

// ResolveRecipient validates tx.To, failing fast with ErrInvalidRecipient if
// it names a symbolic recipient. A nil To (contract creation) is always
// valid.
func ResolveRecipient(tx *TransactionRequest) error {
	if tx.To == nil {
		return nil
	}
	if !tx.To.IsAddress() {
		return ErrInvalidRecipient
	}
	return nil
}

// ToAddress returns the resolved recipient, or nil for contract creation.
// Callers must have run ResolveRecipient first.
func (tx *TransactionRequest) ToAddress() *common.Address {
	if tx.To == nil {
		return nil
	}
	return tx.To.Address
}

// ValueU256 returns the transaction value as a u256, defaulting to zero.
func (tx *TransactionRequest) ValueU256() *uint256.Int {
	if tx.Value == nil {
		return uint256.NewInt(0)
	}
	v, _ := uint256.FromBig((*big.Int)(tx.Value))
	return v
}

// GasLimit returns tx.Gas, defaulting to zero.
func (tx *TransactionRequest) GasLimit() uint64 {
	if tx.Gas == nil {
		return 0
	}
	return uint64(*tx.Gas)
}

// GasPriceU256 returns tx.GasPrice, defaulting to zero.
func (tx *TransactionRequest) GasPriceU256() *uint256.Int {
	if tx.GasPrice == nil {
		return uint256.NewInt(0)
	}
	v, _ := uint256.FromBig((*big.Int)(tx.GasPrice))
	return v
}

// TxNonce returns tx.Nonce, defaulting to zero.
func (tx *TransactionRequest) TxNonce() uint64 {
	if tx.Nonce == nil {
		return 0
	}
	return uint64(*tx.Nonce)
}

// CallData returns tx.Data, defaulting to an empty slice.
func (tx *TransactionRequest) CallData() []byte {
	if tx.Data == nil {
		return nil
	}
	return []byte(*tx.Data)
}

// FromAddress returns tx.From, defaulting to the zero address.
func (tx *TransactionRequest) FromAddress() common.Address {
	if tx.From == nil {
		return common.Address{}
	}
	return *tx.From
}
