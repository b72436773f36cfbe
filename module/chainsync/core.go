// Package chainsync tracks which blocks the node has asked its peers for.
// The forest decides what is worth having; this package remembers what was
// queued, backs off between retries, gives up after too many attempts and
// forgets everything finalization made irrelevant.
package chainsync

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
	"github.com/Cardinal-Cryptography/alephsync/model/chainsync"
	"github.com/Cardinal-Cryptography/alephsync/module"
)

type Config struct {
	RetryInterval time.Duration // the initial interval before we retry a request, uses exponential backoff
	MaxAttempts   uint          // the maximum number of attempts we make for each requested block before discarding
	MaxRequests   uint          // the maximum number of requests we send during each scanning period
	MaxQueued     uint          // the maximum number of block requests we track at any one time
}

func DefaultConfig() Config {
	return Config{
		RetryInterval: 4 * time.Second,
		MaxAttempts:   5,
		MaxRequests:   3,
		MaxQueued:     512,
	}
}

// Core contains the logic, configuration, and state for block request
// tracking. It stays agnostic of transports and of the block tree; an engine
// wraps it, feeds it the identifiers the forest wants, and turns the ids it
// hands back into wire requests.
//
// Core is safe for concurrent use by multiple goroutines.
type Core struct {
	log            zerolog.Logger
	Config         Config
	mu             sync.Mutex
	statuses       map[chain.BlockID]*chainsync.Status
	metrics        module.ChainSyncMetrics
	localFinalized uint64
}

func New(log zerolog.Logger, config Config, metrics module.ChainSyncMetrics) (*Core, error) {
	if config.MaxRequests == 0 {
		return nil, fmt.Errorf("max requests must be positive")
	}
	if config.MaxQueued == 0 {
		return nil, fmt.Errorf("queued limit must be positive")
	}
	core := &Core{
		log:      log.With().Str("component", "sync_core").Logger(),
		Config:   config,
		statuses: make(map[chain.BlockID]*chainsync.Status),
		metrics:  metrics,
	}
	return core, nil
}

// RequestBlock queues a block for requesting. Queueing an already tracked
// block, a block at or below the local finalized height, or anything beyond
// the queued limit is a no-op.
func (c *Core) RequestBlock(id chain.BlockID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// the check != 0 is necessary or we would never queue blocks while the
	// local chain still sits on a genesis root
	if id.Number <= c.localFinalized && c.localFinalized != 0 {
		return
	}

	if c.statuses[id].WasQueued() {
		return
	}

	if uint(len(c.statuses)) >= c.Config.MaxQueued {
		c.log.Debug().
			Uint64("block_number", id.Number).
			Uint("queued", uint(len(c.statuses))).
			Msg("request queue full - discarding")
		return
	}

	c.statuses[id] = chainsync.NewQueuedStatus(id)
	c.log.Debug().Uint64("block_number", id.Number).Msg("enqueued requested block")
}

// Received marks a tracked block as arrived, so it is not requested again.
// Blocks we never asked for are ignored.
func (c *Core) Received(id chain.BlockID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := c.statuses[id]
	if !status.WasQueued() || status.WasReceived() {
		return
	}
	status.Received = time.Now()
}

// ScanPending prunes everything the new finalized block made irrelevant and
// returns the blocks that should be requested now: queued, not received,
// past their backoff and under the attempt limit. The result is ascending by
// number and capped at MaxRequests.
func (c *Core) ScanPending(final *chain.Header) []chain.BlockID {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prune(final)

	now := time.Now()
	var due []chain.BlockID
	for id, status := range c.statuses {

		// if the last request is young enough, skip
		retryAfter := status.Requested.Add(c.Config.RetryInterval << status.Attempts)
		if now.Before(retryAfter) {
			continue
		}

		if status.WasReceived() {
			continue
		}

		// if we reached the maximum number of attempts, give up on the block
		if status.Attempts >= c.Config.MaxAttempts {
			c.log.Debug().Uint64("block_number", id.Number).Msg("giving up on block")
			delete(c.statuses, id)
			continue
		}

		due = append(due, id)
	}

	// lower blocks first, they unlock importing the ones above them
	slices.SortFunc(due, func(a, b chain.BlockID) int {
		if a.Number != b.Number {
			if a.Number < b.Number {
				return -1
			}
			return 1
		}
		return bytes.Compare(a.Hash[:], b.Hash[:])
	})

	if uint(len(due)) > c.Config.MaxRequests {
		due = due[:c.Config.MaxRequests]
	}

	c.log.Debug().Int("requestable", len(due)).Msg("scanned pending blocks")
	return due
}

// RequestSent updates the status of a block that has been successfully
// requested. Must be called when a request is submitted.
func (c *Core) RequestSent(id chain.BlockID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	status, exists := c.statuses[id]
	if !exists {
		return
	}
	status.Requested = time.Now()
	status.Attempts++
	c.metrics.BlockRequested(status.Attempts)
}

// Drop forgets a single tracked block, whatever its state. Used when the
// block tree loses interest in a block before it was received, e.g. because
// its whole branch got discarded.
func (c *Core) Drop(id chain.BlockID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	status, exists := c.statuses[id]
	if !exists {
		return
	}
	delete(c.statuses, id)
	c.metrics.PrunedBlock(status)
}

// Prune removes all tracked requests at or below the given finalized block.
func (c *Core) Prune(final *chain.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prune(final)
}

func (c *Core) prune(final *chain.Header) {
	if c.localFinalized >= final.Number {
		return
	}
	c.localFinalized = final.Number

	initial := len(c.statuses)

	for id, status := range c.statuses {
		if id.Number <= final.Number {
			delete(c.statuses, id)
			c.metrics.PrunedBlock(status)
		}
	}

	pruned := initial - len(c.statuses)
	c.metrics.PrunedBlocks(pruned, len(c.statuses))

	c.log.Debug().
		Uint64("final_number", final.Number).
		Msgf("pruned %d block requests", pruned)
}
