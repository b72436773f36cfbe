package forest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
	"github.com/Cardinal-Cryptography/alephsync/utils/unittest"
)

func TestVertexLifecycle(t *testing.T) {
	header := unittest.HeaderFixture()
	holder := unittest.NodeIDFixture()

	vertex := NewVertex(chain.ZeroNodeID)
	require.Equal(t, Auxiliary, vertex.Importance())
	require.False(t, vertex.IsImported())
	require.False(t, vertex.IsFull())
	_, ok := vertex.Parent()
	require.False(t, ok)

	summary, err := vertex.TryInsertHeader(header, holder)
	require.NoError(t, err)
	assert.True(t, summary.Changed)
	assert.True(t, summary.GainedParent)
	assert.Equal(t, Auxiliary, vertex.Importance())

	// the same header again adds nothing
	summary, err = vertex.TryInsertHeader(header, chain.ZeroNodeID)
	require.NoError(t, err)
	assert.False(t, summary.Changed)
	assert.False(t, summary.GainedParent)

	summary, err = vertex.TryInsertBody(header, holder)
	require.NoError(t, err)
	assert.True(t, summary.Changed)
	assert.False(t, summary.GainedParent)
	assert.True(t, vertex.IsImported())
	assert.Equal(t, Imported, vertex.Importance())
	assert.False(t, vertex.IsFull())

	justification := unittest.JustificationFixture(header)
	summary, err = vertex.TryInsertJustification(justification, holder)
	require.NoError(t, err)
	assert.True(t, summary.Changed)
	assert.False(t, summary.GainedParent)
	assert.Equal(t, Required, vertex.Importance())
	assert.True(t, vertex.IsFull())

	parentID, ok := vertex.Parent()
	require.True(t, ok)
	assert.Equal(t, chain.BlockID{Hash: header.ParentHash, Number: header.Number - 1}, parentID)
}

func TestVertexBodyGainsParent(t *testing.T) {
	header := unittest.HeaderFixture()

	vertex := NewVertex(chain.ZeroNodeID)
	summary, err := vertex.TryInsertBody(header, unittest.NodeIDFixture())
	require.NoError(t, err)
	assert.True(t, summary.Changed)
	assert.True(t, summary.GainedParent)
	assert.True(t, vertex.IsImported())
	assert.Equal(t, header, vertex.Header())
}

func TestVertexJustificationGainsParent(t *testing.T) {
	header := unittest.HeaderFixture()
	justification := unittest.JustificationFixture(header)

	vertex := NewVertex(chain.ZeroNodeID)
	summary, err := vertex.TryInsertJustification(justification, unittest.NodeIDFixture())
	require.NoError(t, err)
	assert.True(t, summary.Changed)
	assert.True(t, summary.GainedParent)
	assert.Equal(t, header, vertex.Header())
	assert.Equal(t, Required, vertex.Importance())
	assert.False(t, vertex.IsImported())
	assert.False(t, vertex.IsFull())

	stored, ok := vertex.Justification()
	require.True(t, ok)
	assert.Equal(t, justification, stored)
}

func TestVertexConflictingHeader(t *testing.T) {
	header := unittest.HeaderFixture()
	conflicting := *header
	conflicting.ParentHash = unittest.HashFixture()

	vertex := NewVertex(chain.ZeroNodeID)
	_, err := vertex.TryInsertHeader(header, chain.ZeroNodeID)
	require.NoError(t, err)

	_, err = vertex.TryInsertHeader(&conflicting, chain.ZeroNodeID)
	require.Error(t, err)
	assert.True(t, IsVertexError(err))
	assert.Equal(t, header, vertex.Header())

	_, err = vertex.TryInsertBody(&conflicting, chain.ZeroNodeID)
	require.Error(t, err)
	assert.True(t, IsVertexError(err))
	assert.False(t, vertex.IsImported())
}

func TestVertexHeaderConflictingWithJustification(t *testing.T) {
	header := unittest.HeaderFixture()
	justification := unittest.JustificationFixture(header)

	vertex := NewVertex(chain.ZeroNodeID)
	_, err := vertex.TryInsertJustification(justification, chain.ZeroNodeID)
	require.NoError(t, err)

	conflicting := *header
	conflicting.ParentHash = unittest.HashFixture()
	_, err = vertex.TryInsertHeader(&conflicting, chain.ZeroNodeID)
	require.Error(t, err)
	assert.True(t, IsVertexError(err))
}

func TestVertexImportanceMonotone(t *testing.T) {
	vertex := NewVertex(chain.ZeroNodeID)

	require.True(t, vertex.TrySetRequired())
	require.False(t, vertex.TrySetRequired())
	assert.Equal(t, Required, vertex.Importance())

	require.True(t, vertex.TrySetTopRequired())
	require.False(t, vertex.TrySetTopRequired())
	require.False(t, vertex.TrySetRequired())
	assert.Equal(t, TopRequired, vertex.Importance())

	// importing the body never lowers the level
	header := unittest.HeaderFixture()
	_, err := vertex.TryInsertBody(header, chain.ZeroNodeID)
	require.NoError(t, err)
	assert.Equal(t, TopRequired, vertex.Importance())
}

func TestVertexHolders(t *testing.T) {
	vertex := NewVertex(chain.ZeroNodeID)
	assert.Empty(t, vertex.Holders())

	holder := unittest.NodeIDFixture()
	other := unittest.NodeIDFixture()
	header := unittest.HeaderFixture()

	_, err := vertex.TryInsertHeader(header, holder)
	require.NoError(t, err)
	_, err = vertex.TryInsertHeader(header, holder)
	require.NoError(t, err)
	_, err = vertex.TryInsertBody(header, other)
	require.NoError(t, err)

	assert.ElementsMatch(t, []chain.NodeID{holder, other}, vertex.Holders())
}
