// Package workerstore provides the execution engine's read-only view onto a
// worker's batch store: a digest-keyed byte blob, decoded as an amino-encoded
// wire.WorkerMessage. Each lookup opens the relevant worker's pebble database
// read-only at "{storePathPrefix}-{workerID}" and closes it again — a single
// short-blocking disk op per payload item, not a held-open connection pool,
// matching narwhal's own per-lookup worker DB access pattern.
package workerstore

import (
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	"github.com/narwhalabci/evm-engine/internal/wire"
)

// ErrBatchMissing is returned when a certificate references a digest that is
// not present in the named worker's store. This is a fatal condition for the
// certificate being processed, not a condition the store itself recovers
// from.
var ErrBatchMissing = errors.New("batch missing from worker store")

// Store locates worker databases under a shared path prefix.
type Store struct {
	pathPrefix string
}

// New returns a Store rooted at pathPrefix.
func New(pathPrefix string) *Store {
	return &Store{pathPrefix: pathPrefix}
}

func (s *Store) workerPath(id wire.WorkerID) string {
	return fmt.Sprintf("%s-%d", s.pathPrefix, id)
}

// Batch opens worker id's store read-only, looks up digest, and decodes the
// stored WorkerMessage's Batch variant. A missing key is ErrBatchMissing.
func (s *Store) Batch(id wire.WorkerID, digest wire.Digest) (wire.Batch, error) {
	db, err := pebble.Open(s.workerPath(id), &pebble.Options{ReadOnly: true})
	if err != nil {
		return nil, errors.Wrapf(err, "opening worker store for worker %d", id)
	}
	defer db.Close()

	value, closer, err := db.Get([]byte(digest))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, errors.Wrapf(ErrBatchMissing, "digest %s, worker %d", digest, id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading digest %s from worker %d", digest, id)
	}
	defer closer.Close()

	msg, err := wire.DecodeWorkerMessage(value)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding worker message for digest %s", digest)
	}
	return msg.Batch, nil
}
