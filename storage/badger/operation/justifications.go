package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
)

func InsertJustification(hash chain.Hash, justification chain.UnverifiedJustification) func(*badger.Txn) error {
	return insert(makePrefix(codeJustification, hash), justification)
}

func RetrieveJustification(hash chain.Hash, justification *chain.UnverifiedJustification) func(*badger.Txn) error {
	return retrieve(makePrefix(codeJustification, hash), justification)
}

func ExistsJustification(hash chain.Hash, keyExists *bool) func(*badger.Txn) error {
	return exists(makePrefix(codeJustification, hash), keyExists)
}
