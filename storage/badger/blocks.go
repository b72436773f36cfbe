package badger

import (
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
	"github.com/Cardinal-Cryptography/alephsync/storage"
)

// Blocks implements block storage by composing the header and payload
// stores.
type Blocks struct {
	db       *badger.DB
	headers  *Headers
	payloads *Payloads
}

var _ storage.Blocks = (*Blocks)(nil)

func NewBlocks(db *badger.DB, headers *Headers, payloads *Payloads) *Blocks {
	return &Blocks{
		db:       db,
		headers:  headers,
		payloads: payloads,
	}
}

func (b *Blocks) Store(block *chain.Block) error {
	err := b.headers.Store(block.Header)
	if err != nil {
		return fmt.Errorf("could not store header: %w", err)
	}
	payload := block.Payload
	err = b.payloads.Store(block.Header.Hash, &payload)
	if err != nil {
		return fmt.Errorf("could not store payload: %w", err)
	}
	return nil
}

func (b *Blocks) ByHash(hash chain.Hash) (*chain.Block, error) {
	header, err := b.headers.ByHash(hash)
	if err != nil {
		return nil, fmt.Errorf("could not get header: %w", err)
	}
	payload, err := b.payloads.ByHash(hash)
	if err != nil {
		return nil, fmt.Errorf("could not get payload: %w", err)
	}
	return &chain.Block{Header: header, Payload: *payload}, nil
}
