// Package state provides access to the locally known chain: which blocks
// have been imported, which are finalized, and the justifications that
// finalized them. It is the source of truth the sync machinery reads when
// deciding what it already has and what it can serve to peers.
package state

import (
	"github.com/Cardinal-Cryptography/alephsync/model/chain"
)

// BlockStatusKind enumerates how much the chain state knows about a block.
type BlockStatusKind uint8

const (
	// StatusUnknown means neither header nor justification are known.
	StatusUnknown BlockStatusKind = iota
	// StatusPresent means the header is known, but the block is not justified.
	StatusPresent
	// StatusJustified means a verified justification for the block is known.
	StatusJustified
)

func (k BlockStatusKind) String() string {
	switch k {
	case StatusUnknown:
		return "unknown"
	case StatusPresent:
		return "present"
	case StatusJustified:
		return "justified"
	default:
		return "invalid"
	}
}

// BlockStatus reports what the chain state knows about a single block.
// Header is set unless the kind is StatusUnknown; Justification is set
// only for StatusJustified.
type BlockStatus struct {
	Kind          BlockStatusKind
	Header        *chain.Header
	Justification chain.Justification
}

// Unknown returns the status of a block we know nothing about.
func Unknown() BlockStatus {
	return BlockStatus{Kind: StatusUnknown}
}

// Present returns the status of a block whose header we hold.
func Present(header *chain.Header) BlockStatus {
	return BlockStatus{Kind: StatusPresent, Header: header}
}

// Justified returns the status of a block we hold a verified justification for.
func Justified(justification chain.Justification) BlockStatus {
	return BlockStatus{
		Kind:          StatusJustified,
		Header:        justification.Header(),
		Justification: justification,
	}
}

// ChainStatus answers queries about the locally known chain. Implementations
// must be safe for concurrent use.
type ChainStatus interface {

	// StatusOf reports what is known about the given block. A block we have
	// never heard of yields StatusUnknown with a nil error; errors indicate
	// storage failures only.
	StatusOf(id chain.BlockID) (BlockStatus, error)

	// FinalizedAt returns the justification of the block finalized at the
	// given number.
	// Error returns:
	//   - storage.ErrNotFound if no block is finalized at that number yet
	FinalizedAt(number uint64) (chain.Justification, error)

	// TopFinalized returns the justification of the highest finalized block.
	TopFinalized() (chain.Justification, error)

	// Block returns a block together with its body.
	// Error returns:
	//   - storage.ErrNotFound if the block has not been imported
	Block(id chain.BlockID) (*chain.Block, error)

	// Header returns the header of an imported block.
	// Error returns:
	//   - storage.ErrNotFound if the block has not been imported
	Header(id chain.BlockID) (*chain.Header, error)

	// Children returns the headers of all imported blocks extending the
	// given block. A block without imported children yields an empty slice.
	// Used to rebuild the in-memory block tree after a restart.
	// Error returns:
	//   - storage.ErrNotFound if the block itself has not been imported
	Children(id chain.BlockID) ([]*chain.Header, error)
}

// BlockImporter adds blocks to the chain state.
type BlockImporter interface {

	// ImportBlock stores the block header and body. The parent block must
	// already be imported, so that every imported block is connected to the
	// finalized chain. Importing the same block twice is a no-op.
	// Error returns:
	//   - ErrMissingParent if the parent body has not been imported
	ImportBlock(block *chain.Block) error
}

// Finalizer extends the finalized chain. The forest hands justifications to
// the finalizer strictly in order, each child of the previously finalized
// block.
type Finalizer interface {

	// Finalize marks the block proven by the justification as finalized,
	// persists the justification and advances the finalized chain. The block
	// body must already be imported.
	// Error returns:
	//   - ErrBadState if the block does not extend the current top finalized
	//     block or its body is missing
	Finalize(justification chain.Justification) error
}
