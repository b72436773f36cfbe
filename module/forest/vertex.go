package forest

import (
	"github.com/Cardinal-Cryptography/alephsync/model/chain"
)

// Importance says how much the sync component needs a block. Levels only
// ever increase over the lifetime of a vertex.
type Importance uint8

const (
	// Auxiliary marks blocks we merely know to exist, typically via a child's
	// parent hash or a peer's announcement.
	Auxiliary Importance = iota
	// Imported marks blocks whose body has been imported.
	Imported
	// Required marks ancestors of blocks the component needs, which must be
	// fetched before their descendants can be imported.
	Required
	// TopRequired marks blocks explicitly requested as sync targets.
	TopRequired
)

func (i Importance) String() string {
	switch i {
	case Auxiliary:
		return "auxiliary"
	case Imported:
		return "imported"
	case Required:
		return "required"
	case TopRequired:
		return "top_required"
	default:
		return "unknown"
	}
}

// TransitionSummary reports what an insert changed. Changed is true if any
// new knowledge was recorded; GainedParent is true only the first time the
// parent of the block became known, which is when the vertex can be linked
// into the tree.
type TransitionSummary struct {
	Changed      bool
	GainedParent bool
}

// Vertex accumulates everything known about a single unfinalized block: the
// header, whether the body has been imported, a verified justification, and
// the set of peers that advertised the block. What we know is tracked
// separately from how much we need the block, since a body can be imported
// for a block that is also required.
//
// A vertex belongs to exactly one Forest and is never accessed concurrently.
type Vertex struct {
	header        *chain.Header
	imported      bool
	justification *chain.Justification
	importance    Importance
	holders       map[chain.NodeID]struct{}
}

// NewVertex creates an empty vertex, optionally recording the peer that made
// the block known.
func NewVertex(holder chain.NodeID) *Vertex {
	vertex := &Vertex{
		holders: make(map[chain.NodeID]struct{}),
	}
	vertex.addHolder(holder)
	return vertex
}

func (v *Vertex) addHolder(holder chain.NodeID) {
	if holder != chain.ZeroNodeID {
		v.holders[holder] = struct{}{}
	}
}

// checkConsistent rejects headers that contradict what the vertex already
// knows. Hash and number always agree, since the caller looked the vertex up
// by the header's own id, so only the parent hash can conflict.
func (v *Vertex) checkConsistent(header *chain.Header) error {
	if v.header != nil && *v.header != *header {
		return VertexError{ID: header.ID(), Reason: "header conflicts with previously stored header"}
	}
	if v.justification != nil && *v.justification.Header() != *header {
		return VertexError{ID: header.ID(), Reason: "header conflicts with justified header"}
	}
	return nil
}

// TryInsertHeader records the header if it is not already known. Inserting
// the same header again is a no-op; a conflicting header is a VertexError.
func (v *Vertex) TryInsertHeader(header *chain.Header, holder chain.NodeID) (TransitionSummary, error) {
	v.addHolder(holder)
	if err := v.checkConsistent(header); err != nil {
		return TransitionSummary{}, err
	}
	if v.header != nil {
		return TransitionSummary{}, nil
	}
	v.header = header
	return TransitionSummary{Changed: true, GainedParent: true}, nil
}

// TryInsertBody marks the block body as imported, recording the header along
// the way if it was missing. Importance is raised to at least Imported.
func (v *Vertex) TryInsertBody(header *chain.Header, holder chain.NodeID) (TransitionSummary, error) {
	v.addHolder(holder)
	if err := v.checkConsistent(header); err != nil {
		return TransitionSummary{}, err
	}
	var summary TransitionSummary
	if v.header == nil {
		v.header = header
		summary.Changed = true
		summary.GainedParent = true
	}
	if !v.imported {
		v.imported = true
		v.raise(Imported)
		summary.Changed = true
	}
	return summary, nil
}

// TryInsertJustification records a verified justification, recording its
// header along the way if it was missing. A justified block is needed for
// finalization, so importance is raised to at least Required.
func (v *Vertex) TryInsertJustification(justification chain.Justification, holder chain.NodeID) (TransitionSummary, error) {
	v.addHolder(holder)
	header := justification.Header()
	if err := v.checkConsistent(header); err != nil {
		return TransitionSummary{}, err
	}
	var summary TransitionSummary
	if v.header == nil {
		v.header = header
		summary.Changed = true
		summary.GainedParent = true
	}
	if v.justification == nil {
		v.justification = &justification
		v.raise(Required)
		summary.Changed = true
	}
	return summary, nil
}

// raise bumps importance to level unless it is already at or above it.
func (v *Vertex) raise(level Importance) bool {
	if v.importance >= level {
		return false
	}
	v.importance = level
	return true
}

// TrySetRequired raises importance to Required, reporting whether anything
// changed.
func (v *Vertex) TrySetRequired() bool {
	return v.raise(Required)
}

// TrySetTopRequired raises importance to TopRequired, reporting whether
// anything changed.
func (v *Vertex) TrySetTopRequired() bool {
	return v.raise(TopRequired)
}

// Header returns the known header, or nil.
func (v *Vertex) Header() *chain.Header {
	return v.header
}

// Parent returns the parent id, which is known exactly when the header is.
func (v *Vertex) Parent() (chain.BlockID, bool) {
	if v.header == nil {
		return chain.BlockID{}, false
	}
	return v.header.ParentID()
}

// Justification returns the verified justification, if one was inserted.
func (v *Vertex) Justification() (chain.Justification, bool) {
	if v.justification == nil {
		return chain.Justification{}, false
	}
	return *v.justification, true
}

// Importance returns the current importance level.
func (v *Vertex) Importance() Importance {
	return v.importance
}

// IsImported reports whether the block body has been imported.
func (v *Vertex) IsImported() bool {
	return v.imported
}

// IsFull reports whether header, body and justification are all known, the
// precondition for the block to appear on the finalized trunk.
func (v *Vertex) IsFull() bool {
	return v.header != nil && v.imported && v.justification != nil
}

// Holders returns the peers known to hold the block, in no particular order.
func (v *Vertex) Holders() []chain.NodeID {
	holders := make([]chain.NodeID, 0, len(v.holders))
	for holder := range v.holders {
		holders = append(holders, holder)
	}
	return holders
}
