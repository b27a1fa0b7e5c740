package wire

import (
	amino "github.com/tendermint/go-amino"
)

// workerCodec is the binary codec used for the worker store's value
// encoding: a compact, deterministic binary codec for this kind of wire
// struct.
var workerCodec = amino.NewCodec()

// EncodeWorkerMessage serializes a WorkerMessage the same way a worker
// would before storing it under its certificate digest.
func EncodeWorkerMessage(msg WorkerMessage) ([]byte, error) {
	return workerCodec.MarshalBinaryBare(msg)
}

// DecodeWorkerMessage parses the bytes read back from the worker store.
func DecodeWorkerMessage(data []byte) (WorkerMessage, error) {
	var msg WorkerMessage
	if err := workerCodec.UnmarshalBinaryBare(data, &msg); err != nil {
		return WorkerMessage{}, err
	}
	return msg, nil
}
