package storage

import (
	"github.com/Cardinal-Cryptography/alephsync/model/chain"
)

// Justifications represents persistent storage for justifications, keyed by
// the hash of the block they prove. Justifications are persisted in their
// wire form; whoever stored them is vouching they were verified.
type Justifications interface {
	// Store will store a justification. Storing a justification for the same
	// block again is a no-op.
	Store(justification chain.UnverifiedJustification) error

	// ByHash returns the justification for the block with the given hash.
	// Expected errors during normal operations:
	//   - storage.ErrNotFound if no justification is stored for the block
	ByHash(hash chain.Hash) (chain.UnverifiedJustification, error)
}
