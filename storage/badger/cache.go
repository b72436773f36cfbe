package badger

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
	"github.com/Cardinal-Cryptography/alephsync/module"
	"github.com/Cardinal-Cryptography/alephsync/storage"
)

func withLimit(limit uint) func(*Cache) {
	return func(c *Cache) {
		c.limit = limit
	}
}

type storeFunc func(chain.Hash, interface{}) error

func withStore(store storeFunc) func(*Cache) {
	return func(c *Cache) {
		c.store = store
	}
}

func noStore(chain.Hash, interface{}) error {
	return fmt.Errorf("no store function for cache put available")
}

type retrieveFunc func(chain.Hash) (interface{}, error)

func withRetrieve(retrieve retrieveFunc) func(*Cache) {
	return func(c *Cache) {
		c.retrieve = retrieve
	}
}

func noRetrieve(chain.Hash) (interface{}, error) {
	return nil, fmt.Errorf("no retrieve function for cache get available")
}

func withResource(resource string) func(*Cache) {
	return func(c *Cache) {
		c.resource = resource
	}
}

// Cache is a read-through write-through LRU in front of one badger table.
type Cache struct {
	metrics  module.CacheMetrics
	limit    uint
	store    storeFunc
	retrieve retrieveFunc
	resource string
	cache    *lru.Cache
}

func newCache(collector module.CacheMetrics, options ...func(*Cache)) *Cache {
	c := Cache{
		metrics:  collector,
		limit:    1000,
		store:    noStore,
		retrieve: noRetrieve,
	}
	for _, option := range options {
		option(&c)
	}
	c.cache, _ = lru.New(int(c.limit))
	c.metrics.CacheEntries(c.resource, uint(c.cache.Len()))
	return &c
}

// Get will try to retrieve the resource from cache first, and then from the
// injected retrieve function.
func (c *Cache) Get(hash chain.Hash) (interface{}, error) {

	resource, cached := c.cache.Get(hash)
	if cached {
		c.metrics.CacheHit(c.resource)
		return resource, nil
	}

	resource, err := c.retrieve(hash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.metrics.CacheNotFound(c.resource)
			return nil, err
		}
		c.metrics.CacheMiss(c.resource)
		return nil, fmt.Errorf("could not retrieve resource: %w", err)
	}
	c.metrics.CacheMiss(c.resource)

	evicted := c.cache.Add(hash, resource)
	if !evicted {
		c.metrics.CacheEntries(c.resource, uint(c.cache.Len()))
	}

	return resource, nil
}

// Put will pass the resource to the injected store function and add it to the
// cache on success.
func (c *Cache) Put(hash chain.Hash, resource interface{}) error {

	err := c.store(hash, resource)
	if err != nil {
		return fmt.Errorf("could not store resource: %w", err)
	}

	evicted := c.cache.Add(hash, resource)
	if !evicted {
		c.metrics.CacheEntries(c.resource, uint(c.cache.Len()))
	}

	return nil
}
