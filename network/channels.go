package network

// Channel specifies a virtual and isolated communication medium. Nodes
// subscribed to the same channel exchange messages among each other.
type Channel string

func (c Channel) String() string {
	return string(c)
}

// ChannelChainSync carries all block synchronization traffic: state
// broadcasts, catch-up requests and their responses.
const ChannelChainSync Channel = "chain-sync"
