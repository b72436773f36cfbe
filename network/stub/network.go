package stub

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
	"github.com/Cardinal-Cryptography/alephsync/network"
)

// Network is the in-process network of one node. Delivery is synchronous:
// sending returns after the recipients' processors ran, which keeps tests
// deterministic. Processors must therefore be non-blocking, the same
// contract they have against a real transport.
type Network struct {
	hub     *Hub
	origin  chain.NodeID
	codec   network.Codec
	mu      sync.Mutex
	engines map[network.Channel]network.MessageProcessor
}

var _ network.Network = (*Network)(nil)

// NewNetwork creates the stub network of one node and attaches it to the hub.
func NewNetwork(hub *Hub, origin chain.NodeID, codec network.Codec) *Network {
	net := &Network{
		hub:     hub,
		origin:  origin,
		codec:   codec,
		engines: make(map[network.Channel]network.MessageProcessor),
	}
	hub.addNetwork(net)
	return net
}

func (n *Network) Register(channel network.Channel, engine network.MessageProcessor) (network.Conduit, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, registered := n.engines[channel]; registered {
		return nil, fmt.Errorf("channel %s already registered", channel)
	}
	n.engines[channel] = engine

	return &Conduit{net: n, channel: channel}, nil
}

func (n *Network) unregister(channel network.Channel) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.engines, channel)
}

// submit encodes the event once and delivers it to every target. Failures
// are collected per target so one unreachable peer does not hide the others.
func (n *Network) submit(channel network.Channel, event interface{}, targetIDs ...chain.NodeID) error {

	data, err := n.codec.Encode(event)
	if err != nil {
		return fmt.Errorf("could not encode event: %w", err)
	}

	var result *multierror.Error
	for _, targetID := range targetIDs {
		target, found := n.hub.network(targetID)
		if !found {
			result = multierror.Append(result, fmt.Errorf("could not find target network: %v", targetID))
			continue
		}
		err := target.deliver(channel, n.origin, data)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("could not deliver to %v: %w", targetID, err))
		}
	}
	return result.ErrorOrNil()
}

func (n *Network) deliver(channel network.Channel, originID chain.NodeID, data []byte) error {

	n.mu.Lock()
	engine, registered := n.engines[channel]
	n.mu.Unlock()
	if !registered {
		return fmt.Errorf("no engine registered on channel %s", channel)
	}

	// decode a fresh copy, the way a real transport would
	event, err := n.codec.Decode(data)
	if err != nil {
		return fmt.Errorf("could not decode event: %w", err)
	}

	return engine.Process(channel, originID, event)
}

// Conduit sends on one channel of a stub network.
type Conduit struct {
	net     *Network
	channel network.Channel
}

var _ network.Conduit = (*Conduit)(nil)

// Publish delivers the event to the given targets, or to every other node
// on the hub when no targets are named.
func (c *Conduit) Publish(event interface{}, targetIDs ...chain.NodeID) error {
	if len(targetIDs) == 0 {
		targetIDs = c.net.hub.peers(c.net.origin)
	}
	return c.net.submit(c.channel, event, targetIDs...)
}

func (c *Conduit) Unicast(event interface{}, targetID chain.NodeID) error {
	return c.net.submit(c.channel, event, targetID)
}

func (c *Conduit) Close() error {
	c.net.unregister(c.channel)
	return nil
}
