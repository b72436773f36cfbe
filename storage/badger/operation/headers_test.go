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

func TestHeaderInsertRetrieve(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		expected := unittest.HeaderFixture()

		err := db.Update(InsertHeader(expected.Hash, expected))
		require.NoError(t, err)

		var actual chain.Header
		err = db.View(RetrieveHeader(expected.Hash, &actual))
		require.NoError(t, err)
		assert.Equal(t, *expected, actual)

		// double insert is rejected, SkipDuplicates makes it a no-op
		err = db.Update(InsertHeader(expected.Hash, expected))
		require.ErrorIs(t, err, storage.ErrAlreadyExists)
		err = db.Update(SkipDuplicates(InsertHeader(expected.Hash, expected)))
		require.NoError(t, err)

		err = db.View(RetrieveHeader(unittest.HashFixture(), &actual))
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestBlockNumberIndex(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		hash := unittest.HashFixture()

		err := db.Update(IndexBlockNumber(42, hash))
		require.NoError(t, err)

		var actual chain.Hash
		err = db.View(LookupBlockNumber(42, &actual))
		require.NoError(t, err)
		assert.Equal(t, hash, actual)

		err = db.View(LookupBlockNumber(43, &actual))
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestTopFinalizedRoundTrip(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		first := chain.BlockID{Hash: unittest.HashFixture(), Number: 10}
		second := chain.BlockID{Hash: unittest.HashFixture(), Number: 11}

		// update before insert fails, there is nothing to move
		err := db.Update(UpdateTopFinalized(first))
		require.ErrorIs(t, err, storage.ErrNotFound)

		err = db.Update(InsertTopFinalized(first))
		require.NoError(t, err)

		var actual chain.BlockID
		err = db.View(RetrieveTopFinalized(&actual))
		require.NoError(t, err)
		assert.Equal(t, first, actual)

		err = db.Update(UpdateTopFinalized(second))
		require.NoError(t, err)
		err = db.View(RetrieveTopFinalized(&actual))
		require.NoError(t, err)
		assert.Equal(t, second, actual)
	})
}

func TestJustificationInsertRetrieveExists(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		header := unittest.HeaderFixture()
		expected := unittest.UnverifiedJustificationFixture(header)

		var known bool
		err := db.View(ExistsJustification(header.Hash, &known))
		require.NoError(t, err)
		assert.False(t, known)

		err = db.Update(InsertJustification(header.Hash, expected))
		require.NoError(t, err)

		err = db.View(ExistsJustification(header.Hash, &known))
		require.NoError(t, err)
		assert.True(t, known)

		var actual chain.UnverifiedJustification
		err = db.View(RetrieveJustification(header.Hash, &actual))
		require.NoError(t, err)
		assert.Equal(t, expected, actual)
	})
}

func TestPayloadInsertRetrieve(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		hash := unittest.HashFixture()
		payload := unittest.PayloadFixture(3)

		err := db.Update(InsertPayload(hash, &payload))
		require.NoError(t, err)

		var actual chain.Payload
		err = db.View(RetrievePayload(hash, &actual))
		require.NoError(t, err)
		assert.Equal(t, payload, actual)
	})
}
