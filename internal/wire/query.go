package wire

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// ErrDecodeRequest is returned when a Query or TransactionRequest cannot be
// parsed. This is a data-plane error: callers convert it into a successful
// response carrying the literal string "could not decode request", never a
// protocol-level failure.
var ErrDecodeRequest = errors.New("could not decode request")

// Query is the tagged union clients send to /abci_query: EthCall(T) or
// Balance(address).
type Query struct {
	EthCall *TransactionRequest `json:"EthCall,omitempty"`
	Balance *common.Address     `json:"Balance,omitempty"`
}

// DecodeQuery parses the JSON-tagged union, mapping any malformed input to
// ErrDecodeRequest.
func DecodeQuery(data []byte) (Query, error) {
	var q Query
	if err := json.Unmarshal(data, &q); err != nil {
		return Query{}, ErrDecodeRequest
	}
	if q.EthCall == nil && q.Balance == nil {
		return Query{}, ErrDecodeRequest
	}
	return q, nil
}

// QueryRequest bundles the client-facing Query payload with the ABCI
// RequestQuery fields that sit alongside it rather than inside it: path,
// height and prove. The /abci_query route accepts all four as separate
// query-string parameters.
type QueryRequest struct {
	Query  Query
	Path   string
	Height int64
	Prove  bool
}

// QueryResponse is the tagged union returned from /abci_query: Tx(R) or
// Balance(u256, rendered as a decimal string).
type QueryResponse struct {
	Tx      *TransactionResult `json:"Tx,omitempty"`
	Balance *string            `json:"Balance,omitempty"`
}

// NewBalanceResponse renders a u256 balance as the decimal string expected
// for query responses.
func NewBalanceResponse(decimal string) QueryResponse {
	return QueryResponse{Balance: &decimal}
}

// NewTxResponse wraps an execution trace as a query response.
func NewTxResponse(r TransactionResult) QueryResponse {
	return QueryResponse{Tx: &r}
}

// DecodeRequestResponse is the literal payload ABCI DeliverTx/Query return
// on a decode failure.
const DecodeRequestResponse = "could not decode request"
