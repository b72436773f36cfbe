package operation

import (
	"encoding/binary"
	"fmt"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
)

const (
	// the first byte of every key names the table it belongs to
	codeHeader        = 1 // block hash -> header
	codeBlockBody     = 2 // block hash -> payload
	codeJustification = 3 // block hash -> justification
	codeHeightToHash  = 4 // finalized number -> block hash
	codeTopFinalized  = 5 // singleton, id of the top finalized block
	codeIndexChildren = 6 // block hash -> hashes of imported children
)

func makePrefix(code byte, keys ...interface{}) []byte {
	prefix := make([]byte, 1)
	prefix[0] = code
	for _, key := range keys {
		prefix = append(prefix, b(key)...)
	}
	return prefix
}

func b(v interface{}) []byte {
	switch i := v.(type) {
	case uint64:
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, i)
		return key
	case chain.Hash:
		return i[:]
	default:
		panic(fmt.Sprintf("unsupported type to convert (%T)", v))
	}
}
