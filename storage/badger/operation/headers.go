package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
)

func InsertHeader(hash chain.Hash, header *chain.Header) func(*badger.Txn) error {
	return insert(makePrefix(codeHeader, hash), header)
}

func RetrieveHeader(hash chain.Hash, header *chain.Header) func(*badger.Txn) error {
	return retrieve(makePrefix(codeHeader, hash), header)
}

// IndexBlockNumber indexes the hash of the block finalized at the number.
func IndexBlockNumber(number uint64, hash chain.Hash) func(*badger.Txn) error {
	return insert(makePrefix(codeHeightToHash, number), hash)
}

// LookupBlockNumber looks up the hash of the block finalized at the number.
func LookupBlockNumber(number uint64, hash *chain.Hash) func(*badger.Txn) error {
	return retrieve(makePrefix(codeHeightToHash, number), hash)
}
