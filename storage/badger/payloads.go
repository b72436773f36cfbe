package badger

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
	"github.com/Cardinal-Cryptography/alephsync/module"
	"github.com/Cardinal-Cryptography/alephsync/module/metrics"
	"github.com/Cardinal-Cryptography/alephsync/storage/badger/operation"
)

// Payloads implements block payload storage around a badger DB.
type Payloads struct {
	db    *badger.DB
	cache *Cache
}

func NewPayloads(collector module.CacheMetrics, db *badger.DB) *Payloads {

	store := func(hash chain.Hash, val interface{}) error {
		payload := val.(*chain.Payload)
		return operation.RetryOnConflict(db.Update,
			operation.SkipDuplicates(operation.InsertPayload(hash, payload)))
	}

	retrieve := func(hash chain.Hash) (interface{}, error) {
		var payload chain.Payload
		err := db.View(operation.RetrievePayload(hash, &payload))
		return &payload, err
	}

	return &Payloads{
		db: db,
		cache: newCache(collector,
			withLimit(1024),
			withStore(store),
			withRetrieve(retrieve),
			withResource(metrics.ResourceBlockBody)),
	}
}

func (p *Payloads) Store(hash chain.Hash, payload *chain.Payload) error {
	return p.cache.Put(hash, payload)
}

func (p *Payloads) ByHash(hash chain.Hash) (*chain.Payload, error) {
	payload, err := p.cache.Get(hash)
	if err != nil {
		return nil, err
	}
	return payload.(*chain.Payload), nil
}
