package state

import (
	"sync"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
)

// Consumer defines the events emitted by the chain state that other
// components can subscribe to. Implementations must be non-blocking; they are
// called synchronously from the import and finalization paths.
type Consumer interface {

	// BlockImported is called when a block body has been stored. The callback
	// is informationally idempotent, consumers must handle repeated calls
	// with the same header.
	BlockImported(header *chain.Header)

	// BlockFinalized is called when a block becomes finalized, in order of
	// increasing number.
	BlockFinalized(header *chain.Header)
}

// Distributor fans chain state events out to all subscribed consumers.
type Distributor struct {
	consumers []Consumer
	lock      sync.RWMutex
}

var _ Consumer = (*Distributor)(nil)

func NewDistributor() *Distributor {
	return &Distributor{}
}

func (d *Distributor) AddConsumer(consumer Consumer) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.consumers = append(d.consumers, consumer)
}

func (d *Distributor) BlockImported(header *chain.Header) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	for _, consumer := range d.consumers {
		consumer.BlockImported(header)
	}
}

func (d *Distributor) BlockFinalized(header *chain.Header) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	for _, consumer := range d.consumers {
		consumer.BlockFinalized(header)
	}
}
