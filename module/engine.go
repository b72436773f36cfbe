package module

import (
	"github.com/Cardinal-Cryptography/alephsync/network"
)

// Engine is the interface all engines should implement in order to have a
// manageable lifecycle and receive messages from the networking layer.
type Engine interface {
	ReadyDoneAware
	network.MessageProcessor
}
