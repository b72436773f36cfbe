package storage

import (
	"github.com/Cardinal-Cryptography/alephsync/model/chain"
)

// Blocks represents persistent storage for blocks, composed of the header
// and payload stores.
type Blocks interface {
	// Store will store the block header and payload. Storing the same block
	// again is a no-op.
	Store(block *chain.Block) error

	// ByHash returns the block with the given hash. A block is available
	// exactly when both its header and its payload are, which is what the
	// chain state guarantees for imported blocks.
	// Expected errors during normal operations:
	//   - storage.ErrNotFound if no imported block is known with the hash
	ByHash(hash chain.Hash) (*chain.Block, error)
}
