package wire

import "fmt"

// WorkerID identifies a worker shard within a primary's store.
type WorkerID uint32

// Digest is the opaque fixed-width key a certificate payload item uses to
// look up a batch in a worker's store.
type Digest []byte

func (d Digest) String() string {
	return fmt.Sprintf("%x", []byte(d))
}

// PayloadItem is one (digest, worker) reference inside a certificate header.
type PayloadItem struct {
	Digest   Digest
	WorkerID WorkerID
}

// CertificateHeader carries the block height and the ordered list of batch
// references that make up the certificate's payload.
type CertificateHeader struct {
	Height  int64
	Payload []PayloadItem
}

// Certificate is the BFT-ordered container the consensus layer hands to the
// execution engine, by value, once per block.
type Certificate struct {
	Header CertificateHeader
}

// Batch is an ordered sequence of raw transaction bytes.
type Batch [][]byte

// WorkerMessage is the tagged union stored under a digest key in a worker's
// store. Only the Batch variant exists today.
type WorkerMessage struct {
	Batch Batch
}
