// Package inmem implements the chain state in memory. It mirrors the badger
// implementation semantics and backs tests that do not want a database on
// disk.
package inmem

import (
	"fmt"
	"sync"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
	"github.com/Cardinal-Cryptography/alephsync/state"
	"github.com/Cardinal-Cryptography/alephsync/storage"
)

// State is an in-memory chain state, safe for concurrent use.
type State struct {
	mu             sync.RWMutex
	headers        map[chain.Hash]*chain.Header
	payloads       map[chain.Hash]chain.Payload
	justifications map[chain.Hash]chain.UnverifiedJustification
	byNumber       map[uint64]chain.Hash
	children       map[chain.Hash][]chain.Hash
	top            chain.BlockID
	consumer       state.Consumer
}

var _ state.ChainStatus = (*State)(nil)
var _ state.BlockImporter = (*State)(nil)
var _ state.Finalizer = (*State)(nil)

// NewState returns a chain state bootstrapped with the given root block and
// its justification. A nil consumer drops all events.
func NewState(root *chain.Block, rootJust chain.Justification, consumer state.Consumer) *State {
	if consumer == nil {
		consumer = state.NewDistributor()
	}
	rootID := root.Header.ID()
	return &State{
		headers:        map[chain.Hash]*chain.Header{rootID.Hash: root.Header},
		payloads:       map[chain.Hash]chain.Payload{rootID.Hash: root.Payload},
		justifications: map[chain.Hash]chain.UnverifiedJustification{rootID.Hash: rootJust.Unverified()},
		byNumber:       map[uint64]chain.Hash{root.Header.Number: rootID.Hash},
		children:       make(map[chain.Hash][]chain.Hash),
		top:            rootID,
		consumer:       consumer,
	}
}

func (s *State) ImportBlock(block *chain.Block) error {
	header := block.Header
	parentID, ok := header.ParentID()
	if !ok {
		return fmt.Errorf("block %v has no parent: %w", header.ID(), state.ErrBadState)
	}

	s.mu.Lock()
	if _, imported := s.payloads[parentID.Hash]; !imported {
		s.mu.Unlock()
		return fmt.Errorf("parent %v of block %v: %w", parentID, header.ID(), state.ErrMissingParent)
	}
	if _, imported := s.payloads[header.Hash]; !imported {
		s.children[parentID.Hash] = append(s.children[parentID.Hash], header.Hash)
	}
	s.headers[header.Hash] = header
	s.payloads[header.Hash] = block.Payload
	s.mu.Unlock()

	s.consumer.BlockImported(header)
	return nil
}

func (s *State) Finalize(just chain.Justification) error {
	header := just.Header()
	id := header.ID()

	s.mu.Lock()
	parentID, ok := header.ParentID()
	if !ok || parentID != s.top {
		top := s.top
		s.mu.Unlock()
		return fmt.Errorf("block %v does not extend top finalized %v: %w", id, top, state.ErrBadState)
	}
	if _, imported := s.payloads[id.Hash]; !imported {
		s.mu.Unlock()
		return fmt.Errorf("finalized block %v has no body: %w", id, state.ErrBadState)
	}
	if _, stored := s.justifications[id.Hash]; !stored {
		s.justifications[id.Hash] = just.Unverified()
	}
	s.byNumber[header.Number] = id.Hash
	s.top = id
	s.mu.Unlock()

	s.consumer.BlockFinalized(header)
	return nil
}

func (s *State) StatusOf(id chain.BlockID) (state.BlockStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if just, ok := s.justifications[id.Hash]; ok {
		if just.Header.Number != id.Number {
			return state.Unknown(), nil
		}
		return state.Justified(chain.NewJustification(just.Header, just.Proof)), nil
	}
	if header, ok := s.headers[id.Hash]; ok {
		if header.Number != id.Number {
			return state.Unknown(), nil
		}
		return state.Present(header), nil
	}
	return state.Unknown(), nil
}

func (s *State) FinalizedAt(number uint64) (chain.Justification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hash, ok := s.byNumber[number]
	if !ok {
		return chain.Justification{}, fmt.Errorf("no block finalized at %d: %w", number, storage.ErrNotFound)
	}
	just, ok := s.justifications[hash]
	if !ok {
		return chain.Justification{}, fmt.Errorf("justification missing for finalized number %d: %w",
			number, state.ErrBadState)
	}
	return chain.NewJustification(just.Header, just.Proof), nil
}

func (s *State) TopFinalized() (chain.Justification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	just, ok := s.justifications[s.top.Hash]
	if !ok {
		return chain.Justification{}, fmt.Errorf("justification missing for top finalized %v: %w",
			s.top, state.ErrBadState)
	}
	return chain.NewJustification(just.Header, just.Proof), nil
}

func (s *State) Block(id chain.BlockID) (*chain.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	header, ok := s.headers[id.Hash]
	if !ok || header.Number != id.Number {
		return nil, fmt.Errorf("block %v not imported: %w", id, storage.ErrNotFound)
	}
	payload, ok := s.payloads[id.Hash]
	if !ok {
		return nil, fmt.Errorf("block %v not imported: %w", id, storage.ErrNotFound)
	}
	return &chain.Block{Header: header, Payload: payload}, nil
}

func (s *State) Header(id chain.BlockID) (*chain.Header, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	header, ok := s.headers[id.Hash]
	if !ok || header.Number != id.Number {
		return nil, fmt.Errorf("block %v not imported: %w", id, storage.ErrNotFound)
	}
	return header, nil
}

func (s *State) Children(id chain.BlockID) ([]*chain.Header, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	header, ok := s.headers[id.Hash]
	if !ok || header.Number != id.Number {
		return nil, fmt.Errorf("block %v not imported: %w", id, storage.ErrNotFound)
	}
	var children []*chain.Header
	for _, hash := range s.children[id.Hash] {
		children = append(children, s.headers[hash])
	}
	return children, nil
}

// FinalizedNumber returns the height of the top finalized block.
func (s *State) FinalizedNumber() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.top.Number
}
