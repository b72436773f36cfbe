package unittest

import (
	crand "crypto/rand"
	"math/rand"
	"testing"
	"time"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
	"github.com/Cardinal-Cryptography/alephsync/model/chainsync"
)

// GetPRG returns a deterministic math/rand PRG for test randomness. The seed
// is logged so a failing iteration can be reproduced.
func GetPRG(t *testing.T) *rand.Rand {
	seed := time.Now().UnixNano()
	t.Logf("rng seed is %d", seed)
	return rand.New(rand.NewSource(seed))
}

func HashFixture() chain.Hash {
	var hash chain.Hash
	_, _ = crand.Read(hash[:])
	return hash
}

func NodeIDFixture() chain.NodeID {
	var nodeID chain.NodeID
	_, _ = crand.Read(nodeID[:])
	return nodeID
}

func NodeIDsFixture(n int) []chain.NodeID {
	nodeIDs := make([]chain.NodeID, 0, n)
	for i := 0; i < n; i++ {
		nodeIDs = append(nodeIDs, NodeIDFixture())
	}
	return nodeIDs
}

func BlockIDFixture() chain.BlockID {
	return chain.BlockID{
		Hash:   HashFixture(),
		Number: 1 + uint64(rand.Uint32()), // avoiding the genesis edge case
	}
}

// HeaderFixture returns a header at a random positive number with a random
// parent hash. Use the options to pin fields.
func HeaderFixture(opts ...func(*chain.Header)) *chain.Header {
	header := &chain.Header{
		Hash:       HashFixture(),
		Number:     1 + uint64(rand.Uint32()),
		ParentHash: HashFixture(),
	}
	for _, opt := range opts {
		opt(header)
	}
	return header
}

func WithNumber(number uint64) func(*chain.Header) {
	return func(header *chain.Header) {
		header.Number = number
	}
}

// GenesisHeaderFixture returns a header at number zero with a zero parent
// hash, the only place a zero parent hash is legal.
func GenesisHeaderFixture() *chain.Header {
	return &chain.Header{
		Hash:       HashFixture(),
		Number:     0,
		ParentHash: chain.ZeroHash,
	}
}

// HeaderWithParentFixture returns a header extending the parent.
func HeaderWithParentFixture(parent *chain.Header) *chain.Header {
	return &chain.Header{
		Hash:       HashFixture(),
		Number:     parent.Number + 1,
		ParentHash: parent.Hash,
	}
}

func PayloadFixture(extrinsics int) chain.Payload {
	payload := chain.Payload{}
	for i := 0; i < extrinsics; i++ {
		extrinsic := make([]byte, 32)
		_, _ = crand.Read(extrinsic)
		payload.Extrinsics = append(payload.Extrinsics, extrinsic)
	}
	return payload
}

func BlockFixture() *chain.Block {
	return &chain.Block{
		Header:  HeaderFixture(),
		Payload: PayloadFixture(3),
	}
}

func BlockWithParentFixture(parent *chain.Header) *chain.Block {
	return &chain.Block{
		Header:  HeaderWithParentFixture(parent),
		Payload: PayloadFixture(3),
	}
}

func ProofFixture() []byte {
	proof := make([]byte, 64)
	_, _ = crand.Read(proof)
	return proof
}

// JustificationFixture returns a verified justification for the header. Test
// code vouches for it the same way a verifier would.
func JustificationFixture(header *chain.Header) chain.Justification {
	return chain.NewJustification(header, ProofFixture())
}

func UnverifiedJustificationFixture(header *chain.Header) chain.UnverifiedJustification {
	return chain.UnverifiedJustification{
		Header: header,
		Proof:  ProofFixture(),
	}
}

// ChainFixtureFrom returns count blocks, each extending the previous one,
// with the first extending the parent. Oldest first.
func ChainFixtureFrom(count int, parent *chain.Header) []*chain.Block {
	blocks := make([]*chain.Block, 0, count)
	for i := 0; i < count; i++ {
		block := BlockWithParentFixture(parent)
		blocks = append(blocks, block)
		parent = block.Header
	}
	return blocks
}

// HeadersFromBlocks projects a block chain onto its headers.
func HeadersFromBlocks(blocks []*chain.Block) []*chain.Header {
	headers := make([]*chain.Header, 0, len(blocks))
	for _, block := range blocks {
		headers = append(headers, block.Header)
	}
	return headers
}

// StateFixture returns a sync state whose top justification proves the given
// header.
func StateFixture(top *chain.Header) chainsync.State {
	return chainsync.State{
		TopJustification: UnverifiedJustificationFixture(top),
	}
}
