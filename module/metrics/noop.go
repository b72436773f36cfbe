package metrics

import (
	"time"

	"github.com/Cardinal-Cryptography/alephsync/model/chainsync"
	"github.com/Cardinal-Cryptography/alephsync/module"
)

type NoopCollector struct{}

func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

func (nc *NoopCollector) MessageSent(engine string, message string)     {}
func (nc *NoopCollector) MessageReceived(engine string, message string) {}
func (nc *NoopCollector) MessageHandled(engine string, message string)  {}
func (nc *NoopCollector) ForestVertices(count uint)                     {}
func (nc *NoopCollector) ForestCompostBin(count uint)                   {}
func (nc *NoopCollector) FinalizedHeight(height uint64)                 {}
func (nc *NoopCollector) PrunedBlock(status *chainsync.Status)          {}
func (nc *NoopCollector) PrunedBlocks(pruned int, stored int)           {}
func (nc *NoopCollector) BlockRequested(attempts uint)                  {}
func (nc *NoopCollector) RequestServed(chunks int, d time.Duration)     {}
func (nc *NoopCollector) RequestDeclined(reason string)                 {}
func (nc *NoopCollector) CacheEntries(resource string, entries uint)    {}
func (nc *NoopCollector) CacheHit(resource string)                      {}
func (nc *NoopCollector) CacheNotFound(resource string)                 {}
func (nc *NoopCollector) CacheMiss(resource string)                     {}

var _ module.EngineMetrics = (*NoopCollector)(nil)
var _ module.ForestMetrics = (*NoopCollector)(nil)
var _ module.ChainSyncMetrics = (*NoopCollector)(nil)
var _ module.ResponderMetrics = (*NoopCollector)(nil)
var _ module.CacheMetrics = (*NoopCollector)(nil)
