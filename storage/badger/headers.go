// Package badger implements the storage interfaces on a badger key-value
// database, with a write-through LRU cache per table.
package badger

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
	"github.com/Cardinal-Cryptography/alephsync/module"
	"github.com/Cardinal-Cryptography/alephsync/module/metrics"
	"github.com/Cardinal-Cryptography/alephsync/storage"
	"github.com/Cardinal-Cryptography/alephsync/storage/badger/operation"
)

// Headers implements header storage around a badger DB.
type Headers struct {
	db    *badger.DB
	cache *Cache
}

var _ storage.Headers = (*Headers)(nil)

func NewHeaders(collector module.CacheMetrics, db *badger.DB) *Headers {

	store := func(hash chain.Hash, val interface{}) error {
		header := val.(*chain.Header)
		return operation.RetryOnConflict(db.Update,
			operation.SkipDuplicates(operation.InsertHeader(hash, header)))
	}

	retrieve := func(hash chain.Hash) (interface{}, error) {
		var header chain.Header
		err := db.View(operation.RetrieveHeader(hash, &header))
		return &header, err
	}

	return &Headers{
		db: db,
		cache: newCache(collector,
			withLimit(4096),
			withStore(store),
			withRetrieve(retrieve),
			withResource(metrics.ResourceHeader)),
	}
}

func (h *Headers) Store(header *chain.Header) error {
	return h.cache.Put(header.Hash, header)
}

func (h *Headers) ByHash(hash chain.Hash) (*chain.Header, error) {
	header, err := h.cache.Get(hash)
	if err != nil {
		return nil, err
	}
	return header.(*chain.Header), nil
}

func (h *Headers) ByNumber(number uint64) (*chain.Header, error) {
	hash, err := h.HashByNumber(number)
	if err != nil {
		return nil, err
	}
	return h.ByHash(hash)
}

func (h *Headers) HashByNumber(number uint64) (chain.Hash, error) {
	var hash chain.Hash
	err := h.db.View(operation.LookupBlockNumber(number, &hash))
	if err != nil {
		return chain.Hash{}, fmt.Errorf("could not look up number %d: %w", number, err)
	}
	return hash, nil
}

func (h *Headers) ByParentHash(parent chain.Hash) ([]*chain.Header, error) {
	var hashes []chain.Hash
	err := h.db.View(operation.LookupBlockChildren(parent, &hashes))
	if errors.Is(err, storage.ErrNotFound) {
		// a missing index entry means no children, provided the parent
		// itself is known
		_, err = h.ByHash(parent)
		if err != nil {
			return nil, fmt.Errorf("could not check parent: %w", err)
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not look up children: %w", err)
	}
	headers := make([]*chain.Header, 0, len(hashes))
	for _, hash := range hashes {
		header, err := h.ByHash(hash)
		if err != nil {
			return nil, fmt.Errorf("could not retrieve child header: %w", err)
		}
		headers = append(headers, header)
	}
	return headers, nil
}
