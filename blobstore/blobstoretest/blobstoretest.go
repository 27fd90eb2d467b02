// Package blobstoretest checks that a blobstore.Store follows the contract
// the snapshot code relies on.
package blobstoretest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mhdmem/blobstore"
)

// Run exercises s with a fixed sequence of operations. s should start empty.
func Run(t *testing.T, s blobstore.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		_, err := s.Get(ctx, "missing")
		assert.True(t, errors.Is(err, blobstore.ErrNotFound), "got %v", err)
	})

	t.Run("PutGet", func(t *testing.T) {
		data := []byte("hello snapshot")
		require.NoError(t, s.Put(ctx, "a/one", data))

		// Mutating the caller's slice must not affect the stored blob.
		data[0] = 'X'
		got, err := s.Get(ctx, "a/one")
		require.NoError(t, err)
		assert.Equal(t, "hello snapshot", string(got))
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "a/two", []byte("v1")))
		require.NoError(t, s.Put(ctx, "a/two", []byte("v2")))
		got, err := s.Get(ctx, "a/two")
		require.NoError(t, err)
		assert.Equal(t, "v2", string(got))
	})

	t.Run("Empty", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "empty", nil))
		got, err := s.Get(ctx, "empty")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Large", func(t *testing.T) {
		data := bytes.Repeat([]byte{0xA5, 0x5A, 0x00}, 1<<18)
		require.NoError(t, s.Put(ctx, "large", data))
		got, err := s.Get(ctx, "large")
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, "b/z", []byte("z")))
		require.NoError(t, s.Put(ctx, "b/y", []byte("y")))

		names, err := s.List(ctx, "a/")
		require.NoError(t, err)
		assert.Equal(t, []string{"a/one", "a/two"}, names)

		names, err = s.List(ctx, "b/")
		require.NoError(t, err)
		assert.Equal(t, []string{"b/y", "b/z"}, names)

		all, err := s.List(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"a/one", "a/two", "b/y", "b/z", "empty", "large"}, all)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "b/z"))
		require.NoError(t, s.Delete(ctx, "b/z"), "deleting a missing blob is a no-op")

		_, err := s.Get(ctx, "b/z")
		assert.True(t, errors.Is(err, blobstore.ErrNotFound), "got %v", err)

		names, err := s.List(ctx, "b/")
		require.NoError(t, err)
		assert.Equal(t, []string{"b/y"}, names)
	})

	t.Run("Concurrent", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				name := fmt.Sprintf("c/%d", i)
				payload := []byte(name)
				if assert.NoError(t, s.Put(ctx, name, payload)) {
					got, err := s.Get(ctx, name)
					assert.NoError(t, err)
					assert.Equal(t, payload, got)
				}
			}(i)
		}
		wg.Wait()

		names, err := s.List(ctx, "c/")
		require.NoError(t, err)
		assert.Len(t, names, 8)
	})
}
