// Package network defines how sync engines talk to their counterparts on
// other nodes. Engines register on a channel and get back a conduit for
// sending; incoming messages on the channel are handed to the registered
// processor.
package network

import (
	"io"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
)

// Network represents the network layer of the node. Processes that work
// across the peer-to-peer network register themselves as an engine on a
// channel. The returned conduit allows the process to communicate to the
// same engine on other nodes across the network in a network-agnostic way.
type Network interface {

	// Register will subscribe to the channel with the given engine and the
	// engine will be notified with incoming messages on the channel. On a
	// single node, only one engine can be subscribed to a channel at any
	// given time.
	Register(channel Channel, engine MessageProcessor) (Conduit, error)
}

// Conduit represents the interface for engines to communicate over the
// peer-to-peer network. Upon registration with the network, each engine is
// assigned a conduit, which it can use to communicate across the network in
// a network-agnostic way.
type Conduit interface {

	// Publish submits an event to the network layer for unreliable delivery
	// to all peers, or to the given subset when target ids are provided.
	Publish(event interface{}, targetIDs ...chain.NodeID) error

	// Unicast sends the event in a reliable way to the given recipient over
	// a 1-1 direct connection.
	Unicast(event interface{}, targetID chain.NodeID) error

	// Close unsubscribes from the channel of this conduit. After it returns,
	// the conduit can no longer be used to send.
	Close() error
}

// MessageProcessor represents a component which receives messages from the
// networking layer. Since these messages come from other nodes, which may be
// Byzantine, implementations must expect and handle arbitrary message inputs
// including invalid message types and malformed messages. Implementations of
// Process should be non-blocking, in general queueing the message internally
// for later asynchronous processing.
type MessageProcessor interface {
	Process(channel Channel, originID chain.NodeID, event interface{}) error
}

// Codec provides factory functions for encoders and decoders, plus one-shot
// encoding and decoding of single messages.
type Codec interface {
	NewEncoder(w io.Writer) Encoder
	NewDecoder(r io.Reader) Decoder
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte) (interface{}, error)
}

// Encoder encodes the given message into the underlying writer.
type Encoder interface {
	Encode(v interface{}) error
}

// Decoder decodes a message from the underlying reader.
type Decoder interface {
	Decode() (interface{}, error)
}
