package operation

import (
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
	"github.com/Cardinal-Cryptography/alephsync/storage"
	"github.com/Cardinal-Cryptography/alephsync/utils/unittest"
)

func TestBlockChildrenIndex(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		parent := unittest.HashFixture()
		first := unittest.HashFixture()
		second := unittest.HashFixture()

		var children []chain.Hash
		err := db.View(LookupBlockChildren(parent, &children))
		require.ErrorIs(t, err, storage.ErrNotFound)

		err = db.Update(IndexBlockChild(parent, first))
		require.NoError(t, err)

		err = db.View(LookupBlockChildren(parent, &children))
		require.NoError(t, err)
		assert.Equal(t, []chain.Hash{first}, children)

		// a second child extends the list, re-indexing is a no-op
		err = db.Update(IndexBlockChild(parent, second))
		require.NoError(t, err)
		err = db.Update(IndexBlockChild(parent, first))
		require.NoError(t, err)

		err = db.View(LookupBlockChildren(parent, &children))
		require.NoError(t, err)
		assert.Equal(t, []chain.Hash{first, second}, children)
	})
}
