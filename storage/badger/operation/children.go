package operation

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
	"github.com/Cardinal-Cryptography/alephsync/storage"
)

// IndexBlockChild adds the child to the list of children indexed under the
// parent hash, creating the list if it does not exist yet. Indexing an
// already indexed child is a no-op.
func IndexBlockChild(parent chain.Hash, child chain.Hash) func(*badger.Txn) error {
	return func(tx *badger.Txn) error {

		var children []chain.Hash
		err := retrieve(makePrefix(codeIndexChildren, parent), &children)(tx)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("could not look up block children: %w", err)
		}

		for _, known := range children {
			if known == child {
				return nil
			}
		}

		children = append(children, child)
		return upsert(makePrefix(codeIndexChildren, parent), children)(tx)
	}
}

// LookupBlockChildren looks up the hashes of all imported children of the
// parent block. Fails with storage.ErrNotFound if no child was ever indexed
// under the parent.
func LookupBlockChildren(parent chain.Hash, children *[]chain.Hash) func(*badger.Txn) error {
	return retrieve(makePrefix(codeIndexChildren, parent), children)
}
