package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
)

// InsertTopFinalized writes the initial top finalized block id, set once at
// bootstrap.
func InsertTopFinalized(id chain.BlockID) func(*badger.Txn) error {
	return insert(makePrefix(codeTopFinalized), id)
}

// UpdateTopFinalized moves the top finalized block id forward.
func UpdateTopFinalized(id chain.BlockID) func(*badger.Txn) error {
	return update(makePrefix(codeTopFinalized), id)
}

// RetrieveTopFinalized reads the id of the top finalized block.
func RetrieveTopFinalized(id *chain.BlockID) func(*badger.Txn) error {
	return retrieve(makePrefix(codeTopFinalized), id)
}
