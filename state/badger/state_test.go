package badger

import (
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
	"github.com/Cardinal-Cryptography/alephsync/module/metrics"
	"github.com/Cardinal-Cryptography/alephsync/state"
	"github.com/Cardinal-Cryptography/alephsync/storage"
	storagebadger "github.com/Cardinal-Cryptography/alephsync/storage/badger"
	"github.com/Cardinal-Cryptography/alephsync/utils/unittest"
)

// eventRecorder collects chain state events for inspection.
type eventRecorder struct {
	imported  []*chain.Header
	finalized []*chain.Header
}

func (r *eventRecorder) BlockImported(header *chain.Header)  { r.imported = append(r.imported, header) }
func (r *eventRecorder) BlockFinalized(header *chain.Header) { r.finalized = append(r.finalized, header) }

func withState(t *testing.T, f func(db *badger.DB, s *State, root *chain.Block, rootJust chain.Justification, events *eventRecorder)) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		collector := metrics.NewNoopCollector()
		headers := storagebadger.NewHeaders(collector, db)
		payloads := storagebadger.NewPayloads(collector, db)
		blocks := storagebadger.NewBlocks(db, headers, payloads)
		justifications := storagebadger.NewJustifications(collector, db)

		root := &chain.Block{
			Header:  unittest.GenesisHeaderFixture(),
			Payload: unittest.PayloadFixture(0),
		}
		rootJust := unittest.JustificationFixture(root.Header)
		require.NoError(t, Bootstrap(db, blocks, justifications, root, rootJust))

		events := &eventRecorder{}
		s, err := OpenState(db, headers, blocks, justifications, events)
		require.NoError(t, err)

		f(db, s, root, rootJust, events)
	})
}

func TestOpenRequiresBootstrap(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		collector := metrics.NewNoopCollector()
		headers := storagebadger.NewHeaders(collector, db)
		payloads := storagebadger.NewPayloads(collector, db)
		blocks := storagebadger.NewBlocks(db, headers, payloads)
		justifications := storagebadger.NewJustifications(collector, db)

		_, err := OpenState(db, headers, blocks, justifications, state.NewDistributor())
		require.Error(t, err)
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestBootstrapOnce(t *testing.T) {
	withState(t, func(db *badger.DB, s *State, root *chain.Block, rootJust chain.Justification, _ *eventRecorder) {
		collector := metrics.NewNoopCollector()
		headers := storagebadger.NewHeaders(collector, db)
		payloads := storagebadger.NewPayloads(collector, db)
		blocks := storagebadger.NewBlocks(db, headers, payloads)
		justifications := storagebadger.NewJustifications(collector, db)

		err := Bootstrap(db, blocks, justifications, root, rootJust)
		require.Error(t, err)
		require.ErrorIs(t, err, storage.ErrAlreadyExists)
	})
}

func TestBootstrapMismatchedJustification(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		collector := metrics.NewNoopCollector()
		headers := storagebadger.NewHeaders(collector, db)
		payloads := storagebadger.NewPayloads(collector, db)
		blocks := storagebadger.NewBlocks(db, headers, payloads)
		justifications := storagebadger.NewJustifications(collector, db)

		root := &chain.Block{
			Header:  unittest.GenesisHeaderFixture(),
			Payload: unittest.PayloadFixture(0),
		}
		otherJust := unittest.JustificationFixture(unittest.HeaderFixture())

		err := Bootstrap(db, blocks, justifications, root, otherJust)
		require.Error(t, err)
		require.ErrorIs(t, err, state.ErrBadState)
	})
}

func TestBootstrappedState(t *testing.T) {
	withState(t, func(_ *badger.DB, s *State, root *chain.Block, rootJust chain.Justification, _ *eventRecorder) {
		rootID := root.Header.ID()

		top, err := s.TopFinalized()
		require.NoError(t, err)
		assert.Equal(t, rootID, top.ID())
		assert.Equal(t, root.Header.Number, s.FinalizedNumber())

		status, err := s.StatusOf(rootID)
		require.NoError(t, err)
		assert.Equal(t, state.StatusJustified, status.Kind)
		assert.Equal(t, rootJust, status.Justification)

		at, err := s.FinalizedAt(root.Header.Number)
		require.NoError(t, err)
		assert.Equal(t, rootJust, at)

		_, err = s.FinalizedAt(root.Header.Number + 1)
		require.ErrorIs(t, err, storage.ErrNotFound)

		block, err := s.Block(rootID)
		require.NoError(t, err)
		assert.Equal(t, root, block)
	})
}

func TestImportBlock(t *testing.T) {
	withState(t, func(_ *badger.DB, s *State, root *chain.Block, _ chain.Justification, events *eventRecorder) {
		child := unittest.BlockWithParentFixture(root.Header)
		grandchild := unittest.BlockWithParentFixture(child.Header)

		// the grandchild arrives first, its parent is not imported yet
		err := s.ImportBlock(grandchild)
		require.Error(t, err)
		require.ErrorIs(t, err, state.ErrMissingParent)
		assert.Empty(t, events.imported)

		require.NoError(t, s.ImportBlock(child))
		require.NoError(t, s.ImportBlock(grandchild))
		require.Len(t, events.imported, 2)
		assert.Equal(t, child.Header, events.imported[0])

		// importing again is a no-op apart from the event
		require.NoError(t, s.ImportBlock(child))

		status, err := s.StatusOf(child.Header.ID())
		require.NoError(t, err)
		assert.Equal(t, state.StatusPresent, status.Kind)
		assert.Equal(t, child.Header, status.Header)

		stored, err := s.Block(grandchild.Header.ID())
		require.NoError(t, err)
		assert.Equal(t, grandchild, stored)
	})
}

func TestHeader(t *testing.T) {
	withState(t, func(_ *badger.DB, s *State, root *chain.Block, _ chain.Justification, _ *eventRecorder) {
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
	})
}

func TestFinalizeAdvancesChain(t *testing.T) {
	withState(t, func(_ *badger.DB, s *State, root *chain.Block, _ chain.Justification, events *eventRecorder) {
		blocks := unittest.ChainFixtureFrom(3, root.Header)
		for _, block := range blocks {
			require.NoError(t, s.ImportBlock(block))
		}

		for i, block := range blocks {
			just := unittest.JustificationFixture(block.Header)
			require.NoError(t, s.Finalize(just))

			assert.Equal(t, block.Header.Number, s.FinalizedNumber())
			require.Len(t, events.finalized, i+1)
			assert.Equal(t, block.Header, events.finalized[i])

			top, err := s.TopFinalized()
			require.NoError(t, err)
			assert.Equal(t, block.Header.ID(), top.ID())

			at, err := s.FinalizedAt(block.Header.Number)
			require.NoError(t, err)
			assert.Equal(t, just, at)

			status, err := s.StatusOf(block.Header.ID())
			require.NoError(t, err)
			assert.Equal(t, state.StatusJustified, status.Kind)
		}
	})
}

func TestFinalizeMustExtendTop(t *testing.T) {
	withState(t, func(_ *badger.DB, s *State, root *chain.Block, _ chain.Justification, events *eventRecorder) {
		blocks := unittest.ChainFixtureFrom(2, root.Header)
		for _, block := range blocks {
			require.NoError(t, s.ImportBlock(block))
		}

		// skipping the first block violates the extension rule
		err := s.Finalize(unittest.JustificationFixture(blocks[1].Header))
		require.Error(t, err)
		require.ErrorIs(t, err, state.ErrBadState)
		assert.Empty(t, events.finalized)
		assert.Equal(t, root.Header.Number, s.FinalizedNumber())

		require.NoError(t, s.Finalize(unittest.JustificationFixture(blocks[0].Header)))
		require.NoError(t, s.Finalize(unittest.JustificationFixture(blocks[1].Header)))
	})
}

func TestFinalizeRequiresBody(t *testing.T) {
	withState(t, func(_ *badger.DB, s *State, root *chain.Block, _ chain.Justification, _ *eventRecorder) {
		// the child extends the top finalized block but was never imported
		child := unittest.BlockWithParentFixture(root.Header)

		err := s.Finalize(unittest.JustificationFixture(child.Header))
		require.Error(t, err)
		require.ErrorIs(t, err, state.ErrBadState)
	})
}

func TestChildren(t *testing.T) {
	withState(t, func(_ *badger.DB, s *State, root *chain.Block, _ chain.Justification, _ *eventRecorder) {
		_, err := s.Children(unittest.BlockIDFixture())
		require.ErrorIs(t, err, storage.ErrNotFound)

		children, err := s.Children(root.Header.ID())
		require.NoError(t, err)
		assert.Empty(t, children)

		// two competing children and a grandchild on the first branch
		first := unittest.BlockWithParentFixture(root.Header)
		second := unittest.BlockWithParentFixture(root.Header)
		grandchild := unittest.BlockWithParentFixture(first.Header)
		for _, block := range []*chain.Block{first, second, grandchild} {
			require.NoError(t, s.ImportBlock(block))
		}
		// a re-import must not duplicate the index entry
		require.NoError(t, s.ImportBlock(first))

		children, err = s.Children(root.Header.ID())
		require.NoError(t, err)
		assert.ElementsMatch(t, []*chain.Header{first.Header, second.Header}, children)

		children, err = s.Children(first.Header.ID())
		require.NoError(t, err)
		assert.Equal(t, []*chain.Header{grandchild.Header}, children)

		children, err = s.Children(grandchild.Header.ID())
		require.NoError(t, err)
		assert.Empty(t, children)
	})
}

func TestStatusOfUnknown(t *testing.T) {
	withState(t, func(_ *badger.DB, s *State, root *chain.Block, _ chain.Justification, _ *eventRecorder) {
		status, err := s.StatusOf(unittest.BlockIDFixture())
		require.NoError(t, err)
		assert.Equal(t, state.StatusUnknown, status.Kind)

		// a stored hash paired with the wrong number is not our block
		mangled := root.Header.ID()
		mangled.Number++
		status, err = s.StatusOf(mangled)
		require.NoError(t, err)
		assert.Equal(t, state.StatusUnknown, status.Kind)

		_, err = s.Block(mangled)
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}
