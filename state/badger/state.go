// Package badger implements the chain state on top of the badger-backed
// storage layer. One instance owns the finalized chain of the node: imports
// connect new blocks to it, finalization extends it, and the query side
// serves the sync machinery.
package badger

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
	"github.com/Cardinal-Cryptography/alephsync/module/counters"
	"github.com/Cardinal-Cryptography/alephsync/state"
	"github.com/Cardinal-Cryptography/alephsync/storage"
	"github.com/Cardinal-Cryptography/alephsync/storage/badger/operation"
)

// State is the badger-backed chain state. Imported blocks always connect to
// the finalized chain, finalized blocks always carry a stored justification.
type State struct {
	db             *badger.DB
	headers        storage.Headers
	blocks         storage.Blocks
	justifications storage.Justifications
	consumer       state.Consumer
	finalized      counters.StrictMonotonousCounter
}

var _ state.ChainStatus = (*State)(nil)
var _ state.BlockImporter = (*State)(nil)
var _ state.Finalizer = (*State)(nil)

// Bootstrap seeds an empty database with the root block of the chain this
// node starts from, its justification, and the finalized index entry. It
// must run exactly once, before OpenState.
// Error returns:
//   - storage.ErrAlreadyExists if the database was bootstrapped before
func Bootstrap(db *badger.DB, blocks storage.Blocks, justifications storage.Justifications,
	root *chain.Block, rootJust chain.Justification) error {

	rootID := root.Header.ID()
	if rootJust.ID() != rootID {
		return fmt.Errorf("root justification proves %v, root block is %v: %w",
			rootJust.ID(), rootID, state.ErrBadState)
	}

	err := blocks.Store(root)
	if err != nil {
		return fmt.Errorf("could not store root block: %w", err)
	}
	err = justifications.Store(rootJust.Unverified())
	if err != nil {
		return fmt.Errorf("could not store root justification: %w", err)
	}

	err = operation.RetryOnConflict(db.Update, func(tx *badger.Txn) error {
		err := operation.IndexBlockNumber(root.Header.Number, rootID.Hash)(tx)
		if err != nil {
			return fmt.Errorf("could not index root number: %w", err)
		}
		err = operation.InsertTopFinalized(rootID)(tx)
		if err != nil {
			return fmt.Errorf("could not insert top finalized: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not bootstrap state: %w", err)
	}

	return nil
}

// OpenState opens the chain state over a bootstrapped database. The consumer
// receives import and finalization events; pass a Distributor to fan them
// out.
func OpenState(db *badger.DB, headers storage.Headers, blocks storage.Blocks,
	justifications storage.Justifications, consumer state.Consumer) (*State, error) {

	var top chain.BlockID
	err := db.View(operation.RetrieveTopFinalized(&top))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("database not bootstrapped: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("could not read top finalized: %w", err)
	}

	s := &State{
		db:             db,
		headers:        headers,
		blocks:         blocks,
		justifications: justifications,
		consumer:       consumer,
		finalized:      counters.NewMonotonousCounter(top.Number),
	}
	return s, nil
}

// ImportBlock stores the block header and body. The parent body must already
// be imported, so every imported block is connected to the finalized chain.
// Importing the same block again is a no-op apart from the repeated event.
// Error returns:
//   - state.ErrMissingParent if the parent body has not been imported
func (s *State) ImportBlock(block *chain.Block) error {

	parentID, ok := block.Header.ParentID()
	if !ok {
		return fmt.Errorf("block %v has no parent: %w", block.Header.ID(), state.ErrBadState)
	}

	var exists bool
	err := s.db.View(operation.ExistsPayload(parentID.Hash, &exists))
	if err != nil {
		return fmt.Errorf("could not check parent body of %v: %w", block.Header.ID(), err)
	}
	if !exists {
		return fmt.Errorf("parent %v of block %v: %w", parentID, block.Header.ID(), state.ErrMissingParent)
	}

	err = s.blocks.Store(block)
	if err != nil {
		return fmt.Errorf("could not store block %v: %w", block.Header.ID(), err)
	}

	err = operation.RetryOnConflict(s.db.Update,
		operation.IndexBlockChild(parentID.Hash, block.Header.Hash))
	if err != nil {
		return fmt.Errorf("could not index block %v under its parent: %w", block.Header.ID(), err)
	}

	s.consumer.BlockImported(block.Header)
	return nil
}

// Finalize extends the finalized chain by one block. The justification must
// prove the child of the current top finalized block and the block body must
// already be imported; the forest guarantees both when it hands out
// finalization units in order.
// Error returns:
//   - state.ErrBadState if the block does not extend the top finalized block
//     or its body is missing
func (s *State) Finalize(just chain.Justification) error {

	header := just.Header()
	id := header.ID()

	// The justification hits disk before the index so that a crash between
	// the two leaves a re-finalizable state rather than a finalized block
	// without a stored justification.
	err := s.justifications.Store(just.Unverified())
	if err != nil {
		return fmt.Errorf("could not store justification for %v: %w", id, err)
	}

	err = operation.RetryOnConflict(s.db.Update, func(tx *badger.Txn) error {

		var top chain.BlockID
		err := operation.RetrieveTopFinalized(&top)(tx)
		if err != nil {
			return fmt.Errorf("could not read top finalized: %w", err)
		}
		parentID, ok := header.ParentID()
		if !ok || parentID != top {
			return fmt.Errorf("block %v does not extend top finalized %v: %w",
				id, top, state.ErrBadState)
		}

		var imported bool
		err = operation.ExistsPayload(id.Hash, &imported)(tx)
		if err != nil {
			return fmt.Errorf("could not check body of %v: %w", id, err)
		}
		if !imported {
			return fmt.Errorf("finalized block %v has no body: %w", id, state.ErrBadState)
		}

		err = operation.IndexBlockNumber(header.Number, id.Hash)(tx)
		if err != nil {
			return fmt.Errorf("could not index number %d: %w", header.Number, err)
		}
		err = operation.UpdateTopFinalized(id)(tx)
		if err != nil {
			return fmt.Errorf("could not update top finalized: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not finalize block %v: %w", id, err)
	}

	s.finalized.Set(header.Number)
	s.consumer.BlockFinalized(header)
	return nil
}

// StatusOf reports what is known about the given block: justified beats
// present, and an id whose number disagrees with the stored block of the
// same hash counts as unknown.
func (s *State) StatusOf(id chain.BlockID) (state.BlockStatus, error) {

	just, err := s.justifications.ByHash(id.Hash)
	if err == nil {
		if just.Header.Number != id.Number {
			return state.Unknown(), nil
		}
		return state.Justified(chain.NewJustification(just.Header, just.Proof)), nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return state.BlockStatus{}, fmt.Errorf("could not look up justification of %v: %w", id, err)
	}

	header, err := s.headers.ByHash(id.Hash)
	if err == nil {
		if header.Number != id.Number {
			return state.Unknown(), nil
		}
		return state.Present(header), nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return state.BlockStatus{}, fmt.Errorf("could not look up header of %v: %w", id, err)
	}

	return state.Unknown(), nil
}

// FinalizedAt returns the justification of the block finalized at the given
// number.
// Error returns:
//   - storage.ErrNotFound if no block is finalized at that number yet
func (s *State) FinalizedAt(number uint64) (chain.Justification, error) {

	hash, err := s.headers.HashByNumber(number)
	if err != nil {
		return chain.Justification{}, err
	}

	just, err := s.justifications.ByHash(hash)
	if errors.Is(err, storage.ErrNotFound) {
		return chain.Justification{}, fmt.Errorf("justification missing for finalized number %d: %w",
			number, state.ErrBadState)
	}
	if err != nil {
		return chain.Justification{}, fmt.Errorf("could not retrieve justification at %d: %w", number, err)
	}

	return chain.NewJustification(just.Header, just.Proof), nil
}

// TopFinalized returns the justification of the highest finalized block.
func (s *State) TopFinalized() (chain.Justification, error) {

	var top chain.BlockID
	err := s.db.View(operation.RetrieveTopFinalized(&top))
	if err != nil {
		return chain.Justification{}, fmt.Errorf("could not read top finalized: %w", err)
	}

	just, err := s.justifications.ByHash(top.Hash)
	if err != nil {
		return chain.Justification{}, fmt.Errorf("justification missing for top finalized %v: %w", top, err)
	}

	return chain.NewJustification(just.Header, just.Proof), nil
}

// Block returns an imported block with its body.
// Error returns:
//   - storage.ErrNotFound if the block has not been imported
func (s *State) Block(id chain.BlockID) (*chain.Block, error) {

	block, err := s.blocks.ByHash(id.Hash)
	if err != nil {
		return nil, err
	}
	if block.Header.Number != id.Number {
		return nil, fmt.Errorf("block %x stored at number %d, request names %d: %w",
			id.Hash, block.Header.Number, id.Number, storage.ErrNotFound)
	}
	return block, nil
}

// Header returns the header of an imported block.
// Error returns:
//   - storage.ErrNotFound if the block has not been imported
func (s *State) Header(id chain.BlockID) (*chain.Header, error) {

	header, err := s.headers.ByHash(id.Hash)
	if err != nil {
		return nil, err
	}
	if header.Number != id.Number {
		return nil, fmt.Errorf("header %x stored at number %d, request names %d: %w",
			id.Hash, header.Number, id.Number, storage.ErrNotFound)
	}
	return header, nil
}

// Children returns the headers of all imported children of the block. The
// index only tracks blocks stored through ImportBlock, which is exactly the
// set the block tree wants back after a restart.
// Error returns:
//   - storage.ErrNotFound if the block itself has not been imported
func (s *State) Children(id chain.BlockID) ([]*chain.Header, error) {

	headers, err := s.headers.ByParentHash(id.Hash)
	if err != nil {
		return nil, fmt.Errorf("could not look up children of %v: %w", id, err)
	}

	// children sit exactly one number above the parent, so an id naming the
	// wrong number for the hash gets nothing back
	children := headers[:0]
	for _, header := range headers {
		if header.Number == id.Number+1 {
			children = append(children, header)
		}
	}
	return children, nil
}

// FinalizedNumber returns the height of the top finalized block without
// touching storage.
func (s *State) FinalizedNumber() uint64 {
	return s.finalized.Value()
}
