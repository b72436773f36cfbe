package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
)

func InsertPayload(hash chain.Hash, payload *chain.Payload) func(*badger.Txn) error {
	return insert(makePrefix(codeBlockBody, hash), payload)
}

func RetrievePayload(hash chain.Hash, payload *chain.Payload) func(*badger.Txn) error {
	return retrieve(makePrefix(codeBlockBody, hash), payload)
}

func ExistsPayload(hash chain.Hash, keyExists *bool) func(*badger.Txn) error {
	return exists(makePrefix(codeBlockBody, hash), keyExists)
}
