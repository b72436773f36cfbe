package chainsync

import (
	"time"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
)

// Status keeps track of a block fetch request.
type Status struct {
	BlockID   chain.BlockID
	Queued    time.Time // when we originally queued this request
	Requested time.Time // the last time we requested this block
	Attempts  uint      // how many times we've requested this block
	Received  time.Time // when we received a response
}

func (s *Status) WasQueued() bool {
	return s != nil
}

func (s *Status) WasRequested() bool {
	return s.WasQueued() && !s.Requested.IsZero()
}

func (s *Status) WasReceived() bool {
	return s.WasQueued() && !s.Received.IsZero()
}

// NewQueuedStatus returns a new status for a freshly queued block.
func NewQueuedStatus(blockID chain.BlockID) *Status {
	return &Status{
		BlockID: blockID,
		Queued:  time.Now(),
	}
}
