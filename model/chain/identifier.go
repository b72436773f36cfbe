package chain

import (
	"encoding/hex"
	"fmt"
)

// HashLen is the byte length of block hashes and node identifiers.
const HashLen = 32

// Hash is the canonical 32-byte identifier of a block, as produced by the
// chain's hashing rule. The sync layer treats it as opaque.
type Hash [HashLen]byte

// ZeroHash is the parent hash of the chain root.
var ZeroHash = Hash{}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// HashFromHex parses a 64-character hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("could not decode hash: %w", err)
	}
	if len(b) != HashLen {
		return h, fmt.Errorf("invalid hash length: got %d, want %d", len(b), HashLen)
	}
	copy(h[:], b)
	return h, nil
}

// NodeID identifies a peer on the sync network. The zero value means
// "no peer" and is used for updates originating from the local node.
type NodeID [HashLen]byte

// ZeroNodeID marks updates that did not come from a remote peer.
var ZeroNodeID = NodeID{}

func (n NodeID) String() string {
	return hex.EncodeToString(n[:])
}

// BlockID pins a block to a spot in the chain: the hash identifies the block,
// the number is its distance from the chain root. Blocks are totally ordered
// by number; equality additionally requires equal hashes.
type BlockID struct {
	Hash   Hash
	Number uint64
}

func (id BlockID) String() string {
	return fmt.Sprintf("%.12s@%d", id.Hash.String(), id.Number)
}
