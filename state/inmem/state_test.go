package inmem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
	"github.com/Cardinal-Cryptography/alephsync/state"
	"github.com/Cardinal-Cryptography/alephsync/storage"
	"github.com/Cardinal-Cryptography/alephsync/utils/unittest"
)

// eventRecorder collects chain state events for inspection.
type eventRecorder struct {
	imported  []*chain.Header
	finalized []*chain.Header
}

func (r *eventRecorder) BlockImported(header *chain.Header)  { r.imported = append(r.imported, header) }
func (r *eventRecorder) BlockFinalized(header *chain.Header) { r.finalized = append(r.finalized, header) }

func rootFixture() (*chain.Block, chain.Justification) {
	root := &chain.Block{
		Header:  unittest.GenesisHeaderFixture(),
		Payload: unittest.PayloadFixture(0),
	}
	return root, unittest.JustificationFixture(root.Header)
}

func TestNewStateBootstrapsRoot(t *testing.T) {
	root, rootJust := rootFixture()
	s := NewState(root, rootJust, nil)
	rootID := root.Header.ID()

	top, err := s.TopFinalized()
	require.NoError(t, err)
	assert.Equal(t, rootID, top.ID())
	assert.Equal(t, root.Header.Number, s.FinalizedNumber())

	status, err := s.StatusOf(rootID)
	require.NoError(t, err)
	assert.Equal(t, state.StatusJustified, status.Kind)

	at, err := s.FinalizedAt(root.Header.Number)
	require.NoError(t, err)
	assert.Equal(t, rootJust, at)

	_, err = s.FinalizedAt(root.Header.Number + 1)
	require.ErrorIs(t, err, storage.ErrNotFound)

	block, err := s.Block(rootID)
	require.NoError(t, err)
	assert.Equal(t, root, block)

	children, err := s.Children(rootID)
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestImportRequiresParent(t *testing.T) {
	root, rootJust := rootFixture()
	events := &eventRecorder{}
	s := NewState(root, rootJust, events)

	child := unittest.BlockWithParentFixture(root.Header)
	grandchild := unittest.BlockWithParentFixture(child.Header)

	err := s.ImportBlock(grandchild)
	require.Error(t, err)
	require.ErrorIs(t, err, state.ErrMissingParent)
	assert.Empty(t, events.imported)

	require.NoError(t, s.ImportBlock(child))
	require.NoError(t, s.ImportBlock(grandchild))
	require.Len(t, events.imported, 2)

	status, err := s.StatusOf(child.Header.ID())
	require.NoError(t, err)
	assert.Equal(t, state.StatusPresent, status.Kind)
	assert.Equal(t, child.Header, status.Header)
}

func TestChildrenIndex(t *testing.T) {
	root, rootJust := rootFixture()
	s := NewState(root, rootJust, nil)

	_, err := s.Children(unittest.BlockIDFixture())
	require.ErrorIs(t, err, storage.ErrNotFound)

	first := unittest.BlockWithParentFixture(root.Header)
	second := unittest.BlockWithParentFixture(root.Header)
	require.NoError(t, s.ImportBlock(first))
	require.NoError(t, s.ImportBlock(second))
	// a re-import must not duplicate the index entry
	require.NoError(t, s.ImportBlock(first))

	children, err := s.Children(root.Header.ID())
	require.NoError(t, err)
	assert.ElementsMatch(t, []*chain.Header{first.Header, second.Header}, children)
}

func TestFinalizeMirrorsBadgerRules(t *testing.T) {
	root, rootJust := rootFixture()
	events := &eventRecorder{}
	s := NewState(root, rootJust, events)

	blocks := unittest.ChainFixtureFrom(2, root.Header)
	for _, block := range blocks {
		require.NoError(t, s.ImportBlock(block))
	}

	// skipping the first block violates the extension rule
	err := s.Finalize(unittest.JustificationFixture(blocks[1].Header))
	require.Error(t, err)
	require.ErrorIs(t, err, state.ErrBadState)
	assert.Empty(t, events.finalized)

	// a block extending the top but never imported has no body
	missing := unittest.BlockWithParentFixture(root.Header)
	err = s.Finalize(unittest.JustificationFixture(missing.Header))
	require.Error(t, err)
	require.ErrorIs(t, err, state.ErrBadState)

	for i, block := range blocks {
		just := unittest.JustificationFixture(block.Header)
		require.NoError(t, s.Finalize(just))
		require.Len(t, events.finalized, i+1)
		assert.Equal(t, block.Header.Number, s.FinalizedNumber())

		at, err := s.FinalizedAt(block.Header.Number)
		require.NoError(t, err)
		assert.Equal(t, just, at)
	}

	top, err := s.TopFinalized()
	require.NoError(t, err)
	assert.Equal(t, blocks[1].Header.ID(), top.ID())
}

func TestHeaderLookup(t *testing.T) {
	root, rootJust := rootFixture()
	s := NewState(root, rootJust, nil)

	_, err := s.Header(unittest.BlockIDFixture())
	require.ErrorIs(t, err, storage.ErrNotFound)

	child := unittest.BlockWithParentFixture(root.Header)
	require.NoError(t, s.ImportBlock(child))

	header, err := s.Header(child.Header.ID())
	require.NoError(t, err)
	assert.Equal(t, child.Header, header)

	// a stored hash paired with the wrong number is not our block
	mangled := child.Header.ID()
	mangled.Number++
	_, err = s.Header(mangled)
	require.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.Block(mangled)
	require.ErrorIs(t, err, storage.ErrNotFound)

	status, err := s.StatusOf(mangled)
	require.NoError(t, err)
	assert.Equal(t, state.StatusUnknown, status.Kind)
}
