// Package stub implements the network interfaces in-process, for testing
// multi-node interactions without a real transport. Messages still pass
// through the codec, so tests exercise the same envelopes as production.
package stub

import (
	"sync"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
)

// Hub is an in-process message bus. All nodes attached to the same hub can
// exchange messages with each other.
type Hub struct {
	mu       sync.Mutex
	networks map[chain.NodeID]*Network
}

func NewHub() *Hub {
	return &Hub{
		networks: make(map[chain.NodeID]*Network),
	}
}

func (h *Hub) addNetwork(net *Network) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.networks[net.origin] = net
}

func (h *Hub) network(id chain.NodeID) (*Network, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	net, ok := h.networks[id]
	return net, ok
}

// peers returns the ids of all attached networks except the given one.
func (h *Hub) peers(origin chain.NodeID) []chain.NodeID {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]chain.NodeID, 0, len(h.networks))
	for id := range h.networks {
		if id == origin {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
