// Package forest tracks everything the node knows about unfinalized blocks:
// headers, imported bodies, verified justifications and which peers hold
// what. It decides which blocks are worth requesting and extracts runs of
// finalizable blocks as knowledge accumulates.
//
// The forest is a tree rooted at the highest block known to be justified.
// Blocks at or below the root, and blocks on forks that can no longer be
// finalized, are deliberately forgotten; the compost bin remembers just their
// ids so late arrivals for them are dropped cheaply.
package forest

import (
	"bytes"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
	"github.com/Cardinal-Cryptography/alephsync/model/chainsync"
	"github.com/Cardinal-Cryptography/alephsync/module"
)

// ChangeSet collects the ids whose state changed during one operation, so the
// caller can revisit its fetch decisions for exactly those blocks.
type ChangeSet map[chain.BlockID]struct{}

func (cs ChangeSet) add(id chain.BlockID) {
	cs[id] = struct{}{}
}

func (cs ChangeSet) merge(other ChangeSet) {
	for id := range other {
		cs[id] = struct{}{}
	}
}

// Contains reports whether the id is part of the change set.
func (cs ChangeSet) Contains(id chain.BlockID) bool {
	_, ok := cs[id]
	return ok
}

// IDs returns the changed ids ordered by number, then hash, so callers can
// process them deterministically.
func (cs ChangeSet) IDs() []chain.BlockID {
	ids := make([]chain.BlockID, 0, len(cs))
	for id := range cs {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b chain.BlockID) int {
		if a.Number != b.Number {
			if a.Number < b.Number {
				return -1
			}
			return 1
		}
		return bytes.Compare(a.Hash[:], b.Hash[:])
	})
	return ids
}

// FinalizedUnit pairs a finalized block with the justification proving it.
type FinalizedUnit struct {
	ID            chain.BlockID
	Justification chain.Justification
}

// InterestLevel says whether, and how urgently, a block should be requested
// from peers.
type InterestLevel uint8

const (
	// Uninterested blocks are not requested. Peers may still push data for
	// them and the forest will record it.
	Uninterested InterestLevel = iota
	// InterestRequired blocks are ancestors of sync targets.
	InterestRequired
	// InterestTopRequired blocks are sync targets themselves.
	InterestTopRequired
)

func (l InterestLevel) String() string {
	switch l {
	case Uninterested:
		return "uninterested"
	case InterestRequired:
		return "required"
	case InterestTopRequired:
		return "top_required"
	default:
		return "unknown"
	}
}

// Interest is the forest's advice on requesting a single block: how urgently
// it is needed, which peers are most likely able to serve the whole missing
// branch, and how far down our knowledge of that branch reaches. The branch
// knowledge is forwarded verbatim in requests so responders can skip data we
// already have.
type Interest struct {
	Level           InterestLevel
	KnowMost        []chain.NodeID
	BranchKnowledge chainsync.BranchKnowledge
}

// handleKind classifies a block id relative to the forest.
type handleKind uint8

const (
	// handleUnknown ids have never been seen.
	handleUnknown handleKind = iota
	// handleHopelessFork ids are tombstoned in the compost bin.
	handleHopelessFork
	// handleBelowMinimal ids are at or below the root height but are not the
	// root itself; nothing at those heights can change what gets finalized.
	handleBelowMinimal
	// handleHighestFinalized is the root id itself.
	handleHighestFinalized
	// handleCandidate ids have a live vertex.
	handleCandidate
)

type vertexHandle struct {
	kind   handleKind
	vertex *Vertex
}

// Forest is the block tree above the highest justified block. The vertices
// and children maps are mutated in lockstep: every tracked id has an entry in
// both, and the root keeps a children entry without a vertex.
//
// The forest is not safe for concurrent use; the sync engine owns it
// exclusively.
type Forest struct {
	log        zerolog.Logger
	metrics    module.ForestMetrics
	vertices   map[chain.BlockID]*Vertex
	children   map[chain.BlockID]map[chain.BlockID]struct{}
	rootID     chain.BlockID
	compostBin map[chain.BlockID]struct{}
}

// NewForest creates a forest rooted at the given block, which must be the
// highest justified block known to the node.
func NewForest(log zerolog.Logger, metrics module.ForestMetrics, highestJustified chain.BlockID) *Forest {
	forest := &Forest{
		log:      log.With().Str("component", "forest").Logger(),
		metrics:  metrics,
		vertices: make(map[chain.BlockID]*Vertex),
		children: map[chain.BlockID]map[chain.BlockID]struct{}{
			highestJustified: make(map[chain.BlockID]struct{}),
		},
		rootID:     highestJustified,
		compostBin: make(map[chain.BlockID]struct{}),
	}
	forest.metrics.FinalizedHeight(highestJustified.Number)
	return forest
}

// Root returns the id of the highest justified block.
func (f *Forest) Root() chain.BlockID {
	return f.rootID
}

// VertexCount returns the number of tracked candidate blocks.
func (f *Forest) VertexCount() int {
	return len(f.vertices)
}

// get classifies the id. The checks are ordered so that the root is never
// reported as below minimal and tombstones never shadow live vertices.
func (f *Forest) get(id chain.BlockID) vertexHandle {
	if id == f.rootID {
		return vertexHandle{kind: handleHighestFinalized}
	}
	if id.Number <= f.rootID.Number {
		return vertexHandle{kind: handleBelowMinimal}
	}
	if _, ok := f.compostBin[id]; ok {
		return vertexHandle{kind: handleHopelessFork}
	}
	if vertex, ok := f.vertices[id]; ok {
		return vertexHandle{kind: handleCandidate, vertex: vertex}
	}
	return vertexHandle{kind: handleUnknown}
}

// addVertex creates the vertex and its children entry together, keeping the
// two maps in lockstep.
func (f *Forest) addVertex(id chain.BlockID, holder chain.NodeID) error {
	if _, ok := f.vertices[id]; ok {
		return fmt.Errorf("adding vertex %v: %w", id, ErrUnknownIDPresent)
	}
	if _, ok := f.children[id]; ok {
		return fmt.Errorf("adding children entry %v: %w", id, ErrUnknownIDPresent)
	}
	f.vertices[id] = NewVertex(holder)
	f.children[id] = make(map[chain.BlockID]struct{})
	f.metrics.ForestVertices(uint(len(f.vertices)))
	return nil
}

// ensure makes the id tracked if it is trackable, reporting whether a vertex
// was created. Ids at or below the root and tombstoned ids stay untracked.
func (f *Forest) ensure(id chain.BlockID, holder chain.NodeID) (bool, error) {
	switch handle := f.get(id); handle.kind {
	case handleUnknown:
		if err := f.addVertex(id, holder); err != nil {
			return false, err
		}
		return true, nil
	case handleCandidate:
		handle.vertex.addHolder(holder)
	}
	return false, nil
}

// UpdateBlockIdentifier records that a block with this id exists and that
// holder claims to have it. This is the cheapest form of knowledge: no
// header, so the vertex stays unlinked.
func (f *Forest) UpdateBlockIdentifier(id chain.BlockID, holder chain.NodeID) (ChangeSet, error) {
	changed := make(ChangeSet)
	created, err := f.ensure(id, holder)
	if err != nil {
		return nil, err
	}
	if created {
		changed.add(id)
	}
	return changed, nil
}

// insertHeader is the shared core of the update operations: it ensures
// vertices exist for the header's block and its parent, records the header,
// links the child to the parent the first time the parent becomes known, and
// propagates requiredness up the newly connected ancestry. When the parent
// turns out to be on a dead fork the block is pruned instead of linked.
func (f *Forest) insertHeader(header *chain.Header, holder chain.NodeID) (ChangeSet, error) {
	changed := make(ChangeSet)
	id := header.ID()

	handle := f.get(id)
	switch handle.kind {
	case handleHighestFinalized, handleBelowMinimal, handleHopelessFork:
		return changed, nil
	case handleUnknown:
		if err := f.addVertex(id, holder); err != nil {
			return nil, err
		}
		changed.add(id)
		handle = f.get(id)
	}

	// id is above the root, so its number is positive and the parent exists
	parentID, _ := header.ParentID()
	created, err := f.ensure(parentID, holder)
	if err != nil {
		return nil, err
	}
	if created {
		changed.add(parentID)
	}

	summary, err := handle.vertex.TryInsertHeader(header, holder)
	if err != nil {
		return nil, err
	}
	if summary.Changed {
		changed.add(id)
	}
	if !summary.GainedParent {
		return changed, nil
	}

	switch f.get(parentID).kind {
	case handleCandidate, handleHighestFinalized:
		set, ok := f.children[parentID]
		if !ok {
			return nil, fmt.Errorf("linking %v under %v: %w", id, parentID, ErrMissingChildren)
		}
		set[id] = struct{}{}
		if handle.vertex.Importance() >= Required {
			propagated, err := f.propagateRequired(id)
			if err != nil {
				return nil, err
			}
			changed.merge(propagated)
		}
	case handleHopelessFork, handleBelowMinimal:
		// the parent can never be finalized, so neither can this block
		pruned, err := f.Prune(id)
		if err != nil {
			return nil, err
		}
		changed.merge(pruned)
	default:
		return nil, fmt.Errorf("parent %v vanished while linking %v: %w", parentID, id, ErrMissingVertex)
	}
	return changed, nil
}

// UpdateHeader records a header and the peer holding it.
func (f *Forest) UpdateHeader(header *chain.Header, holder chain.NodeID) (ChangeSet, error) {
	return f.insertHeader(header, holder)
}

// UpdateBody records that the block's body has been imported into the chain
// state. Bodies are only accepted in ancestor order: the parent must be the
// root or already imported, otherwise ErrParentShouldBeImported is returned
// and the caller should stop processing the batch. A body for a block that
// got pruned in the meantime is dropped silently; that is a timing artifact,
// not a peer fault.
func (f *Forest) UpdateBody(header *chain.Header, holder chain.NodeID) (ChangeSet, error) {
	changed, err := f.insertHeader(header, holder)
	if err != nil {
		return nil, err
	}

	id := header.ID()
	handle := f.get(id)
	if handle.kind != handleCandidate {
		return changed, nil
	}

	parentID, _ := header.ParentID()
	switch parent := f.get(parentID); parent.kind {
	case handleHighestFinalized:
		// bodies below the root are imported by definition
	case handleCandidate:
		if !parent.vertex.IsImported() {
			return nil, fmt.Errorf("parent %v of %v: %w", parentID, id, ErrParentShouldBeImported)
		}
	default:
		return nil, fmt.Errorf("parent %v of %v: %w", parentID, id, ErrParentShouldBeImported)
	}

	summary, err := handle.vertex.TryInsertBody(header, holder)
	if err != nil {
		return nil, err
	}
	if summary.Changed {
		changed.add(id)
	}
	return changed, nil
}

// UpdateJustification records a verified justification. The block becomes at
// least Required and so does its known ancestry, since a justified block must
// eventually be imported. A justification for a block that is already at or
// below the root, or on a pruned fork, is dropped silently.
func (f *Forest) UpdateJustification(justification chain.Justification, holder chain.NodeID) (ChangeSet, error) {
	header := justification.Header()
	changed, err := f.insertHeader(header, holder)
	if err != nil {
		return nil, err
	}

	id := header.ID()
	handle := f.get(id)
	if handle.kind != handleCandidate {
		return changed, nil
	}

	summary, err := handle.vertex.TryInsertJustification(justification, holder)
	if err != nil {
		return nil, err
	}
	if summary.Changed {
		changed.add(id)
		propagated, err := f.propagateRequired(id)
		if err != nil {
			return nil, err
		}
		changed.merge(propagated)
	}
	return changed, nil
}

// SetRequired marks the block as an explicit sync target and its known
// ancestry as required. The id must have been seen before, in any form.
func (f *Forest) SetRequired(id chain.BlockID) (ChangeSet, error) {
	handle := f.get(id)
	switch handle.kind {
	case handleUnknown:
		return nil, fmt.Errorf("setting required %v: %w", id, ErrMissingVertex)
	case handleHighestFinalized, handleBelowMinimal, handleHopelessFork:
		return make(ChangeSet), nil
	}

	changed := make(ChangeSet)
	if handle.vertex.TrySetTopRequired() {
		changed.add(id)
	}
	propagated, err := f.propagateRequired(id)
	if err != nil {
		return nil, err
	}
	changed.merge(propagated)
	return changed, nil
}

// propagateRequired walks from the block at id toward the root, marking every
// ancestor Required. The walk stops at the first ancestor that is already
// Required, whose own ancestors are Required by induction, or when the
// ancestry is not connected yet. The number of steps is bounded by the
// height difference to the root; exceeding it means the parent pointers are
// corrupt.
func (f *Forest) propagateRequired(id chain.BlockID) (ChangeSet, error) {
	handle := f.get(id)
	if handle.kind != handleCandidate {
		return nil, fmt.Errorf("propagating required from %v: %w", id, ErrMissingVertex)
	}

	changed := make(ChangeSet)
	bound := id.Number - f.rootID.Number
	current := handle.vertex
	for steps := uint64(0); ; steps++ {
		if steps > bound {
			return nil, fmt.Errorf("walking up from %v: %w", id, ErrInfiniteLoop)
		}
		parentID, ok := current.Parent()
		if !ok {
			return changed, nil
		}
		parent := f.get(parentID)
		switch parent.kind {
		case handleHighestFinalized:
			return changed, nil
		case handleCandidate:
			if !parent.vertex.TrySetRequired() {
				return changed, nil
			}
			changed.add(parentID)
			current = parent.vertex
		default:
			return nil, fmt.Errorf("ancestor %v of %v: %w", parentID, id, ErrShouldBePruned)
		}
	}
}

// Prune removes the block and its entire subtree, tombstoning every removed
// id in the compost bin. The traversal is breadth first over the children
// index and bounded by the number of tracked vertices. Pruning the root is a
// caller bug.
func (f *Forest) Prune(id chain.BlockID) (ChangeSet, error) {
	if id == f.rootID {
		return nil, fmt.Errorf("pruning %v: %w", id, ErrRootPruned)
	}

	// unlink from the parent so no surviving children set references a
	// tombstoned id
	if vertex, ok := f.vertices[id]; ok {
		if parentID, ok := vertex.Parent(); ok {
			if set, ok := f.children[parentID]; ok {
				delete(set, id)
			}
		}
	}

	changed := make(ChangeSet)
	bound := len(f.vertices) + 1
	queue := []chain.BlockID{id}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > bound {
			return nil, fmt.Errorf("pruning subtree of %v: %w", id, ErrInfiniteLoop)
		}
		next := queue[0]
		queue = queue[1:]
		if _, ok := f.compostBin[next]; ok {
			continue
		}
		f.compostBin[next] = struct{}{}
		changed.add(next)
		if _, ok := f.vertices[next]; !ok {
			continue
		}
		delete(f.vertices, next)
		set, ok := f.children[next]
		if !ok {
			return nil, fmt.Errorf("pruning %v: %w", next, ErrMissingChildren)
		}
		delete(f.children, next)
		for child := range set {
			queue = append(queue, child)
		}
	}

	f.metrics.ForestVertices(uint(len(f.vertices)))
	f.metrics.ForestCompostBin(uint(len(f.compostBin)))
	f.log.Debug().
		Str("block_id", id.String()).
		Int("pruned", len(changed)).
		Msg("pruned hopeless subtree")
	return changed, nil
}

// Finalize extracts the trunk: the run of fully known blocks extending the
// root, ended at the first block with zero or multiple fully known children.
// Everything at or below the new root that is not on the trunk is pruned, the
// root advances, and the trunk is returned oldest first with the
// justifications proving each block. Returns nil when the root's extension
// is not fully known yet.
//
// Two fully known children of the same block would mean justifications were
// verified for two conflicting blocks, which breaks the finality assumptions
// the whole component rests on.
func (f *Forest) Finalize() ([]FinalizedUnit, error) {
	var trunk []chain.BlockID
	current := f.rootID
	bound := len(f.vertices) + 1
	for steps := 0; ; steps++ {
		if steps > bound {
			return nil, fmt.Errorf("trunk walk from %v: %w", f.rootID, ErrInfiniteLoop)
		}
		set, ok := f.children[current]
		if !ok {
			return nil, fmt.Errorf("trunk at %v: %w", current, ErrMissingChildren)
		}
		var next chain.BlockID
		found := false
		for childID := range set {
			child, ok := f.vertices[childID]
			if !ok {
				return nil, fmt.Errorf("child %v of %v: %w", childID, current, ErrMissingVertex)
			}
			if !child.IsFull() {
				continue
			}
			if found {
				return nil, fmt.Errorf("children of %v: %w", current, ErrAmbiguousTrunk)
			}
			next = childID
			found = true
		}
		if !found {
			break
		}
		trunk = append(trunk, next)
		current = next
	}
	if len(trunk) == 0 {
		return nil, nil
	}
	newRoot := trunk[len(trunk)-1]

	// prune stale forks at or below the new root
	onTrunk := make(map[chain.BlockID]struct{}, len(trunk))
	for _, id := range trunk {
		onTrunk[id] = struct{}{}
	}
	var stale []chain.BlockID
	for id := range f.vertices {
		if id.Number > newRoot.Number {
			continue
		}
		if _, ok := onTrunk[id]; ok {
			continue
		}
		stale = append(stale, id)
	}
	for _, id := range stale {
		// a descendant of an earlier stale id may be gone already
		if _, ok := f.vertices[id]; !ok {
			continue
		}
		if _, err := f.Prune(id); err != nil {
			return nil, err
		}
	}

	// collect the trunk oldest first and drop it from the maps; the new
	// root keeps its children entry
	units := make([]FinalizedUnit, 0, len(trunk))
	for _, id := range trunk {
		vertex, ok := f.vertices[id]
		if !ok {
			return nil, fmt.Errorf("trunk vertex %v: %w", id, ErrMissingVertex)
		}
		justification, ok := vertex.Justification()
		if !ok {
			return nil, fmt.Errorf("trunk vertex %v: %w", id, ErrTrunkMissingJustification)
		}
		units = append(units, FinalizedUnit{ID: id, Justification: justification})
		delete(f.vertices, id)
		if id != newRoot {
			delete(f.children, id)
		}
	}
	delete(f.children, f.rootID)

	// tombstones at or below the new root can never be referenced again
	for id := range f.compostBin {
		if id.Number <= newRoot.Number {
			delete(f.compostBin, id)
		}
	}

	f.rootID = newRoot
	f.metrics.FinalizedHeight(newRoot.Number)
	f.metrics.ForestVertices(uint(len(f.vertices)))
	f.metrics.ForestCompostBin(uint(len(f.compostBin)))
	f.log.Info().
		Str("new_root", newRoot.String()).
		Int("finalized", len(units)).
		Msg("root advanced")
	return units, nil
}

// Importable reports whether the block's body can be imported right now: the
// block is a live candidate, not yet imported, and its parent is the root or
// already imported.
func (f *Forest) Importable(id chain.BlockID) bool {
	handle := f.get(id)
	if handle.kind != handleCandidate || handle.vertex.IsImported() {
		return false
	}
	parentID, ok := handle.vertex.Parent()
	if !ok {
		return false
	}
	switch parent := f.get(parentID); parent.kind {
	case handleHighestFinalized:
		return true
	case handleCandidate:
		return parent.vertex.IsImported()
	default:
		return false
	}
}

// Interest reports whether the block should be requested from peers and with
// what context. Holders are gathered walking down the branch toward the
// root; the walk ends at the first imported ancestor, whose id becomes the
// top imported marker, or at the lowest block we know on the branch. The
// walk terminates because parent numbers strictly decrease toward the root.
func (f *Forest) Interest(id chain.BlockID) Interest {
	handle := f.get(id)
	if handle.kind != handleCandidate || handle.vertex.Importance() < Required {
		return Interest{Level: Uninterested}
	}
	level := InterestRequired
	if handle.vertex.Importance() == TopRequired {
		level = InterestTopRequired
	}

	holders := make(map[chain.NodeID]struct{})
	branch := chainsync.LowestID(id)
	current, currentID := handle.vertex, id
	for {
		for _, holder := range current.Holders() {
			holders[holder] = struct{}{}
		}
		if current.IsImported() {
			branch = chainsync.TopImported(currentID)
			break
		}
		parentID, ok := current.Parent()
		if !ok {
			branch = chainsync.LowestID(currentID)
			break
		}
		parent := f.get(parentID)
		if parent.kind == handleHighestFinalized {
			branch = chainsync.TopImported(parentID)
			break
		}
		if parent.kind != handleCandidate {
			branch = chainsync.LowestID(currentID)
			break
		}
		current, currentID = parent.vertex, parentID
	}

	knowMost := make([]chain.NodeID, 0, len(holders))
	for holder := range holders {
		knowMost = append(knowMost, holder)
	}
	slices.SortFunc(knowMost, func(a, b chain.NodeID) int {
		return bytes.Compare(a[:], b[:])
	})
	return Interest{Level: level, KnowMost: knowMost, BranchKnowledge: branch}
}
