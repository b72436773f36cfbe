// Package messages contains the wire-level message types exchanged by the
// sync engines. Every type here has a code registered in network/codec.
package messages

import (
	"github.com/Cardinal-Cryptography/alephsync/model/chain"
	"github.com/Cardinal-Cryptography/alephsync/model/chainsync"
)

// SyncState is the periodic broadcast of a node's sync state.
type SyncState struct {
	State chainsync.State
}

// SyncStateResponse answers a SyncState broadcast from a peer that is behind:
// the justification closing the peer's current session and, when useful, one
// more justification bringing it further forward.
type SyncStateResponse struct {
	Justification      chain.UnverifiedJustification
	MaybeJustification *chain.UnverifiedJustification
}

// Justifications lists the carried justifications in delivery order.
func (s *SyncStateResponse) Justifications() []chain.UnverifiedJustification {
	justifications := []chain.UnverifiedJustification{s.Justification}
	if s.MaybeJustification != nil {
		justifications = append(justifications, *s.MaybeJustification)
	}
	return justifications
}

// SyncRequest asks a peer for everything needed to get from the requester's
// top justification to the target block.
type SyncRequest struct {
	Request chainsync.Request
}

// SyncResponse carries the ordered chunks answering a SyncRequest.
type SyncResponse struct {
	Chunks []chainsync.Chunk
}
