package chain

// Header carries the linkage information of a single block.
type Header struct {
	// Hash is this block's own hash, as computed by the chain's hashing rule.
	Hash Hash
	// Number is the block's height above the chain root.
	Number uint64
	// ParentHash is the hash of the block at Number-1 this block extends.
	// It is zero only for the chain root.
	ParentHash Hash
}

// ID returns the block identifier of this header.
func (h *Header) ID() BlockID {
	return BlockID{Hash: h.Hash, Number: h.Number}
}

// ParentID returns the identifier of the parent block. The second return is
// false only for the chain root, which has no parent.
func (h *Header) ParentID() (BlockID, bool) {
	if h.Number == 0 {
		return BlockID{}, false
	}
	return BlockID{Hash: h.ParentHash, Number: h.Number - 1}, true
}

// Payload is the opaque body of a block. The sync layer never interprets
// extrinsics, it only moves them between nodes.
type Payload struct {
	Extrinsics [][]byte
}

// Block combines a header with the body it authenticates.
type Block struct {
	Header  *Header
	Payload Payload
}

// ID returns the block identifier of this block.
func (b *Block) ID() BlockID {
	return b.Header.ID()
}
