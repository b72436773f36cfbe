package chainsync

import (
	"fmt"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
)

// State is a node's sync handshake: the highest justification it holds.
// Nodes broadcast it periodically and attach it to every request so the
// responder knows where the requester's finalized chain ends.
type State struct {
	TopJustification chain.UnverifiedJustification
}

// TopID returns the identifier of the block behind the top justification.
func (s State) TopID() chain.BlockID {
	return s.TopJustification.ID()
}

// KnowledgeKind discriminates the two ways a requester can summarize its
// knowledge of the branch leading to a requested block.
type KnowledgeKind uint8

const (
	// KnowledgeTopImported marks the highest block the requester already
	// holds with its body imported.
	KnowledgeTopImported KnowledgeKind = iota + 1
	// KnowledgeLowestID marks the lowest block the requester knows anything
	// about, possibly only its identifier.
	KnowledgeLowestID
)

// BranchKnowledge is a requester's compact summary of how much of the
// requested branch it already possesses, used to bound response size.
type BranchKnowledge struct {
	Kind KnowledgeKind
	ID   chain.BlockID
}

// TopImported declares that everything at and below id is already imported.
func TopImported(id chain.BlockID) BranchKnowledge {
	return BranchKnowledge{Kind: KnowledgeTopImported, ID: id}
}

// LowestID declares that id is the lowest block the requester knows about.
func LowestID(id chain.BlockID) BranchKnowledge {
	return BranchKnowledge{Kind: KnowledgeLowestID, ID: id}
}

func (b BranchKnowledge) String() string {
	switch b.Kind {
	case KnowledgeTopImported:
		return fmt.Sprintf("top imported %s", b.ID)
	case KnowledgeLowestID:
		return fmt.Sprintf("lowest id %s", b.ID)
	}
	return "unknown"
}

// Request asks a peer for everything needed to get from the requester's top
// justification to the target block.
type Request struct {
	State           State
	Target          chain.BlockID
	BranchKnowledge BranchKnowledge
}

// Chunk is one unit of a sync response: a justification, a batch of headers,
// or a batch of blocks. Exactly one field is set. Within a response chunks
// are ordered oldest-first, and header/block batches are ascending by number.
type Chunk struct {
	Justification *chain.UnverifiedJustification
	Headers       []*chain.Header
	Blocks        []*chain.Block
}

// JustificationChunk wraps a single justification.
func JustificationChunk(j chain.UnverifiedJustification) Chunk {
	return Chunk{Justification: &j}
}

// HeadersChunk wraps a batch of headers, ascending by number.
func HeadersChunk(headers []*chain.Header) Chunk {
	return Chunk{Headers: headers}
}

// BlocksChunk wraps a batch of blocks, ascending by number.
func BlocksChunk(blocks []*chain.Block) Chunk {
	return Chunk{Blocks: blocks}
}
