package module

import (
	"time"

	"github.com/Cardinal-Cryptography/alephsync/model/chainsync"
)

// EngineMetrics counts the inbound and outbound messages of the engines.
type EngineMetrics interface {
	MessageSent(engine string, message string)
	MessageReceived(engine string, message string)
	MessageHandled(engine string, message string)
}

// ForestMetrics reports the size and progress of the block-tree knowledge
// kept by the sync engine.
type ForestMetrics interface {
	// ForestVertices is called with the number of tracked vertices after
	// every mutation that changes it.
	ForestVertices(count uint)

	// ForestCompostBin is called with the number of tombstoned block ids.
	ForestCompostBin(count uint)

	// FinalizedHeight records the number of the highest finalized block.
	FinalizedHeight(height uint64)
}

// ChainSyncMetrics reports the fetch scheduler's activity.
type ChainSyncMetrics interface {
	// PrunedBlock records one block request dropped by finalization.
	// Requested and received times of the status might be zero values.
	PrunedBlock(status *chainsync.Status)

	// PrunedBlocks records the outcome of one pruning pass.
	PrunedBlocks(pruned int, stored int)

	// BlockRequested records a request being sent out, with the attempt
	// count it has reached.
	BlockRequested(attempts uint)
}

// ResponderMetrics reports served catch-up requests.
type ResponderMetrics interface {
	// RequestServed records a completed response with its chunk count and
	// the time it took to assemble.
	RequestServed(chunks int, duration time.Duration)

	// RequestDeclined records a request that produced no response, with the
	// reason it was declined.
	RequestDeclined(reason string)
}

// CacheMetrics reports storage cache behaviour, one resource per cache.
type CacheMetrics interface {
	// CacheEntries records the size of the node's caches.
	CacheEntries(resource string, entries uint)

	// CacheHit records the number of hits in the node's caches.
	CacheHit(resource string)

	// CacheNotFound records when the cache knows the queried key is absent.
	CacheNotFound(resource string)

	// CacheMiss records the number of misses in the node's caches.
	CacheMiss(resource string)
}
