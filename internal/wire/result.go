package wire

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// Log is the wire representation of a single EVM log entry.
type Log struct {
	Address common.Address `json:"address"`
	Topics  []common.Hash  `json:"topics"`
	Data    hexutil.Bytes  `json:"data"`
}

// TransactionResult is the execution trace R returned for both DeliverTx and
// EthCall queries. A revert is carried in ExitCode, never as a
// transport-level error.
type TransactionResult struct {
	Request       TransactionRequest `json:"request"`
	ExitCode      string             `json:"exitCode"`
	Output        hexutil.Bytes      `json:"output,omitempty"`
	CreatedAddr   *common.Address    `json:"createdAddress,omitempty"`
	GasUsed       uint64             `json:"gasUsed"`
	Logs          []Log              `json:"logs"`
	Reverted      bool               `json:"reverted"`
}

// LogsFromTypes converts go-ethereum's *types.Log slice into the wire Log
// representation.
func LogsFromTypes(logs []*types.Log) []Log {
	out := make([]Log, 0, len(logs))
	for _, l := range logs {
		out = append(out, Log{Address: l.Address, Topics: l.Topics, Data: l.Data})
	}
	return out
}
