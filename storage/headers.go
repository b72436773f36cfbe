package storage

import (
	"github.com/Cardinal-Cryptography/alephsync/model/chain"
)

// Headers represents persistent storage for block headers.
type Headers interface {
	// Store will store a header. Storing the same header again is a no-op.
	Store(header *chain.Header) error

	// ByHash returns the header with the given hash. It is available for all
	// stored blocks, finalized or not.
	// Expected errors during normal operations:
	//   - storage.ErrNotFound if no block is known with the given hash
	ByHash(hash chain.Hash) (*chain.Header, error)

	// ByNumber returns the header finalized at the given number.
	// Expected errors during normal operations:
	//   - storage.ErrNotFound if no finalized block is known at the number
	ByNumber(number uint64) (*chain.Header, error)

	// HashByNumber returns the hash finalized at the given number, skipping
	// the header retrieval.
	// Expected errors during normal operations:
	//   - storage.ErrNotFound if no finalized block is known at the number
	HashByNumber(number uint64) (chain.Hash, error)

	// ByParentHash returns the headers of all imported blocks extending the
	// block with the given hash. A block without known children yields an
	// empty slice.
	// Expected errors during normal operations:
	//   - storage.ErrNotFound if no block is known with the given hash
	ByParentHash(parent chain.Hash) ([]*chain.Header, error)
}
