package kvstore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emberdb/internal/status"
	"emberdb/pkg/config"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	opts := config.New(
		config.WithCompression(config.CompressionNone),
		config.WithMemtableSizeBytes(1<<30), // avoid flush-on-threshold noise in most tests
	)
	db, err := Open(filepath.Join(dir, "db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPutThenGet(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Put([]byte("k"), []byte("v")))

	v, closer, err := db.Get(context.Background(), ReadOptions{}, []byte("k"))
	require.NoError(t, err)
	defer closer.Close()
	assert.Equal(t, []byte("v"), v)
}

func TestGetMissingKeyIsNotFound(t *testing.T) {
	db := openTestDB(t)
	_, _, err := db.Get(context.Background(), ReadOptions{}, []byte("missing"))
	var st status.Status
	require.ErrorAs(t, err, &st)
	assert.True(t, st.IsNotFound())
}

func TestDeleteHidesValue(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	require.NoError(t, db.Delete([]byte("k")))

	_, _, err := db.Get(context.Background(), ReadOptions{}, []byte("k"))
	assert.Error(t, err)
}

func TestDeleteHidesValueAfterFlush(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	require.NoError(t, db.Delete([]byte("k")))
	require.NoError(t, db.PutWithOptions(context.Background(), WriteOptions{Sync: true}, []byte("other"), []byte("x")))

	_, _, err := db.Get(context.Background(), ReadOptions{}, []byte("k"))
	assert.Error(t, err)
}

func TestPutChunkStreamingAcrossCalls(t *testing.T) {
	db := openTestDB(t)
	w := db.NewEntryWriter()

	value := []byte("streamed value bytes")
	require.NoError(t, db.PutChunk(context.Background(), WriteOptions{}, w, []byte("k"), value[:8], 0, uint64(len(value))))
	require.NoError(t, db.PutChunk(context.Background(), WriteOptions{}, w, []byte("k"), value[8:], 8, uint64(len(value))))

	v, closer, err := db.Get(context.Background(), ReadOptions{}, []byte("k"))
	require.NoError(t, err)
	defer closer.Close()
	assert.Equal(t, value, v)
}

func TestSnapshotIsNotVisibleToLaterWrites(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Put([]byte("k"), []byte("before")))

	snap, err := db.NewSnapshot()
	require.NoError(t, err)
	defer snap.Close()

	require.NoError(t, db.Put([]byte("k"), []byte("after")))

	v, st := snap.Get([]byte("k"), true)
	require.True(t, st.IsOK())
	assert.Equal(t, []byte("before"), v)
}

func TestConcurrentPutsOnDistinctKeys(t *testing.T) {
	db := openTestDB(t)

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := []byte{byte(i), byte(i >> 8)}
			assert.NoError(t, db.Put(key, []byte("value")))
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		key := []byte{byte(i), byte(i >> 8)}
		v, closer, err := db.Get(context.Background(), ReadOptions{}, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("value"), v)
		closer.Close()
	}
}

func TestReopenPersistsFlushedData(t *testing.T) {
	dir := t.TempDir()
	opts := config.New(config.WithCompression(config.CompressionNone))

	db, err := Open(filepath.Join(dir, "db"), opts)
	require.NoError(t, err)
	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	require.NoError(t, db.Close())

	db2, err := Open(filepath.Join(dir, "db"), opts)
	require.NoError(t, err)
	defer db2.Close()

	v, closer, err := db2.Get(context.Background(), ReadOptions{}, []byte("k"))
	require.NoError(t, err)
	defer closer.Close()
	assert.Equal(t, []byte("v"), v)
}

func TestClosedDatabaseRejectsReadsAndWrites(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	require.NoError(t, db.Close())

	_, _, err := db.Get(context.Background(), ReadOptions{}, []byte("k"))
	assert.Error(t, err)

	assert.Error(t, db.Put([]byte("k2"), []byte("v2")))
	assert.Error(t, db.Delete([]byte("k")))

	w := db.NewEntryWriter()
	assert.Error(t, db.PutChunk(context.Background(), WriteOptions{}, w, []byte("k3"), []byte("v3"), 0, 3))

	snap, err := db.NewSnapshot()
	assert.NoError(t, err)
	assert.Nil(t, snap)

	it, err := db.NewIterator(ReadOptions{})
	assert.NoError(t, err)
	assert.Nil(t, it)
}

func TestCloseIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Close())
	assert.NoError(t, db.Close())
}
