package badger

import (
	"context"
	"testing"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mhdmem/blobstore/blobstoretest"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Conformance(t *testing.T) {
	blobstoretest.Run(t, openInMemory(t))
}

func TestStore_Persistent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(Config{Path: dir, SyncWrites: true})
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "CURRENT", []byte("snap-1")))
	require.NoError(t, s.Close())

	s, err = Open(Config{Path: dir})
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "CURRENT")
	require.NoError(t, err)
	assert.Equal(t, "snap-1", string(got))
}

func TestStore_SharedDatabase(t *testing.T) {
	db, err := badgerdb.Open(badgerdb.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	a := NewStore(db, "a/")
	b := NewStore(db, "b/")

	require.NoError(t, a.Put(ctx, "x", []byte("from a")))
	require.NoError(t, b.Put(ctx, "x", []byte("from b")))

	got, err := a.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "from a", string(got))

	names, err := b.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, names)

	// Close on a borrowed database is a no-op.
	require.NoError(t, a.Close())
	_, err = b.Get(ctx, "x")
	require.NoError(t, err)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}
