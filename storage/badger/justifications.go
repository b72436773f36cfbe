package badger

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
	"github.com/Cardinal-Cryptography/alephsync/module"
	"github.com/Cardinal-Cryptography/alephsync/module/metrics"
	"github.com/Cardinal-Cryptography/alephsync/storage"
	"github.com/Cardinal-Cryptography/alephsync/storage/badger/operation"
)

// Justifications implements justification storage around a badger DB.
type Justifications struct {
	db    *badger.DB
	cache *Cache
}

var _ storage.Justifications = (*Justifications)(nil)

func NewJustifications(collector module.CacheMetrics, db *badger.DB) *Justifications {

	store := func(hash chain.Hash, val interface{}) error {
		justification := val.(chain.UnverifiedJustification)
		return operation.RetryOnConflict(db.Update,
			operation.SkipDuplicates(operation.InsertJustification(hash, justification)))
	}

	retrieve := func(hash chain.Hash) (interface{}, error) {
		var justification chain.UnverifiedJustification
		err := db.View(operation.RetrieveJustification(hash, &justification))
		return justification, err
	}

	return &Justifications{
		db: db,
		cache: newCache(collector,
			withLimit(1024),
			withStore(store),
			withRetrieve(retrieve),
			withResource(metrics.ResourceJustification)),
	}
}

func (j *Justifications) Store(justification chain.UnverifiedJustification) error {
	return j.cache.Put(justification.Header.Hash, justification)
}

func (j *Justifications) ByHash(hash chain.Hash) (chain.UnverifiedJustification, error) {
	justification, err := j.cache.Get(hash)
	if err != nil {
		return chain.UnverifiedJustification{}, err
	}
	return justification.(chain.UnverifiedJustification), nil
}
