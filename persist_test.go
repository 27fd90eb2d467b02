package mhdmem

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mhdmem/bitvec"
	"github.com/hupe1980/mhdmem/blobstore"
	"github.com/hupe1980/mhdmem/codec"
	"github.com/hupe1980/mhdmem/snapshot"
)

type solution struct {
	Name  string
	Score float64
}

// unregisteredCodec is a JSON codec under a name the registry does not know.
type unregisteredCodec struct{}

func (unregisteredCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (unregisteredCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (unregisteredCodec) Name() string                       { return "test-unregistered" }

func populated(t *testing.T, opts ...Option) *Memory[solution] {
	t.Helper()
	m := newTestMemory[solution](t, 70, 50, opts...)
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 80; i++ {
		_, err := m.Insert(randomRecord(rng, 70), bitvec.Prefix(70, 10+i%60), solution{Name: "s", Score: float64(i)})
		require.NoError(t, err)
	}
	m.Remove(40)
	m.Remove(77)
	return m
}

func assertSameContents(t *testing.T, want, got *Memory[solution]) {
	t.Helper()
	assert.Equal(t, want.Width(), got.Width())
	assert.Equal(t, want.Capacity(), got.Capacity())
	assert.Equal(t, want.Len(), got.Len())
	assert.Equal(t, want.Stats().NextID, got.Stats().NextID)

	var wantEntries, gotEntries []Entry[solution]
	want.Range(func(e Entry[solution]) bool {
		wantEntries = append(wantEntries, e)
		return true
	})
	got.Range(func(e Entry[solution]) bool {
		gotEntries = append(gotEntries, e)
		return true
	})
	require.Len(t, gotEntries, len(wantEntries))
	for i := range wantEntries {
		assert.Equal(t, wantEntries[i].ID, gotEntries[i].ID)
		assert.True(t, wantEntries[i].Record.Equal(gotEntries[i].Record))
		assert.True(t, wantEntries[i].Mask.Equal(gotEntries[i].Mask))
		assert.Equal(t, wantEntries[i].Payload, gotEntries[i].Payload)
	}
}

func TestSaveLoad(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"Default", nil},
		{"JSONUncompressed", []Option{WithCodec(codec.JSON{}), WithSnapshotCompression(snapshot.CompressionNone)}},
		{"GobZSTD", []Option{WithCodec(codec.Gob{}), WithSnapshotCompression(snapshot.CompressionZSTD)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			m := populated(t, tt.opts...)

			var buf bytes.Buffer
			require.NoError(t, m.Save(ctx, &buf))

			loaded, err := Load[solution](ctx, &buf)
			require.NoError(t, err)
			t.Cleanup(func() { _ = loaded.Close() })
			assertSameContents(t, m, loaded)

			q := bitvec.Ones(70)
			want, err := m.Query(q, bitvec.Prefix(70, 35), 10)
			require.NoError(t, err)
			got, err := loaded.Query(q, bitvec.Prefix(70, 35), 10)
			require.NoError(t, err)
			assert.Equal(t, matchIDs(want), matchIDs(got))

			// IDs continue after the loaded sequence.
			id, err := loaded.Insert(q, q, solution{})
			require.NoError(t, err)
			assert.Equal(t, EntryID(81), id)
		})
	}
}

func TestSaveLoadEmpty(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory[int](t, 8, 4)
	_, err := m.Insert(bitvec.New(8), bitvec.Ones(8), 1)
	require.NoError(t, err)
	m.Clear()

	var buf bytes.Buffer
	require.NoError(t, m.Save(ctx, &buf))

	loaded, err := Load[int](ctx, &buf)
	require.NoError(t, err)
	defer loaded.Close()
	assert.Zero(t, loaded.Len())

	id, err := loaded.Insert(bitvec.New(8), bitvec.Ones(8), 2)
	require.NoError(t, err)
	assert.Equal(t, EntryID(2), id)
}

func TestLoadErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("UnknownCodec", func(t *testing.T) {
		m := populated(t, WithCodec(unregisteredCodec{}))
		var buf bytes.Buffer
		require.NoError(t, m.Save(ctx, &buf))

		_, err := Load[solution](ctx, bytes.NewReader(buf.Bytes()))
		assert.ErrorIs(t, err, ErrUnknownCodec)
	})

	t.Run("Truncated", func(t *testing.T) {
		m := populated(t)
		var buf bytes.Buffer
		require.NoError(t, m.Save(ctx, &buf))

		_, err := Load[solution](ctx, bytes.NewReader(buf.Bytes()[:buf.Len()/2]))
		assert.ErrorIs(t, err, snapshot.ErrCorrupt)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := Load[solution](ctx, bytes.NewReader([]byte("definitely not a snapshot")))
		assert.ErrorIs(t, err, snapshot.ErrCorrupt)
	})

	t.Run("OversizedHeader", func(t *testing.T) {
		_, err := Load[string](ctx, bytes.NewReader(oversizedHeader()))
		assert.ErrorIs(t, err, snapshot.ErrCorrupt)
	})

	t.Run("HeaderWithoutBody", func(t *testing.T) {
		// Within limits, but the declared entries never arrive.
		hdr := oversizedHeader()
		binary.LittleEndian.PutUint32(hdr[28:], snapshot.MaxCapacity)
		binary.LittleEndian.PutUint64(hdr[40:], snapshot.MaxCapacity)
		_, err := Load[string](ctx, bytes.NewReader(hdr))
		assert.ErrorIs(t, err, snapshot.ErrCorrupt)
	})

	t.Run("PayloadType", func(t *testing.T) {
		m := newTestMemory[string](t, 8, 4, WithCodec(codec.JSON{}))
		_, err := m.Insert(bitvec.New(8), bitvec.Ones(8), "text")
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, m.Save(ctx, &buf))

		_, err = Load[int](ctx, &buf)
		assert.Error(t, err)
	})

	t.Run("Cancelled", func(t *testing.T) {
		m := populated(t)
		var buf bytes.Buffer
		require.NoError(t, m.Save(ctx, &buf))

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Load[solution](cctx, &buf)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

// oversizedHeader returns a bare snapshot header for width 8 claiming
// 0xFFFFFFFF entries and capacity, with no body.
func oversizedHeader() []byte {
	buf := []byte(snapshot.Magic)
	buf = binary.LittleEndian.AppendUint16(buf, snapshot.Version)
	buf = append(buf, byte(snapshot.CompressionNone), 0)
	buf = append(buf, make([]byte, 16)...)
	buf = binary.LittleEndian.AppendUint32(buf, 8)
	buf = binary.LittleEndian.AppendUint32(buf, 0xFFFFFFFF)
	buf = binary.LittleEndian.AppendUint64(buf, 1)
	buf = binary.LittleEndian.AppendUint64(buf, 0xFFFFFFFF)
	buf = append(buf, byte(len("json")))
	return append(buf, "json"...)
}

func TestSaveCancelled(t *testing.T) {
	m := populated(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Save(ctx, &bytes.Buffer{}), context.Canceled)
}

func TestSaveLoadRateLimited(t *testing.T) {
	ctx := context.Background()
	m := populated(t, WithSnapshotIOLimit(1<<30))

	var buf bytes.Buffer
	require.NoError(t, m.Save(ctx, &buf))

	loaded, err := Load[solution](ctx, &buf, WithSnapshotIOLimit(1<<30))
	require.NoError(t, err)
	defer loaded.Close()
	assertSameContents(t, m, loaded)
}

func TestSaveToStore(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewMemoryStore()
	m := populated(t)

	require.NoError(t, m.SaveToStore(ctx, bs, "snap/0001"))

	current, err := bs.Get(ctx, CurrentSnapshot)
	require.NoError(t, err)
	assert.Equal(t, "snap/0001", string(current))

	loaded, err := LoadFromStore[solution](ctx, bs)
	require.NoError(t, err)
	defer loaded.Close()
	assertSameContents(t, m, loaded)

	t.Run("LatestWins", func(t *testing.T) {
		_, err := m.Insert(bitvec.Ones(70), bitvec.Ones(70), solution{Name: "new"})
		require.NoError(t, err)
		require.NoError(t, m.SaveToStore(ctx, bs, "snap/0002"))

		names, err := bs.List(ctx, "snap/")
		require.NoError(t, err)
		assert.Equal(t, []string{"snap/0001", "snap/0002"}, names)

		latest, err := LoadFromStore[solution](ctx, bs)
		require.NoError(t, err)
		defer latest.Close()
		assertSameContents(t, m, latest)
	})

	t.Run("ReservedName", func(t *testing.T) {
		err := m.SaveToStore(ctx, bs, CurrentSnapshot)
		assert.ErrorIs(t, err, blobstore.ErrInvalidName)
	})

	t.Run("InvalidName", func(t *testing.T) {
		err := m.SaveToStore(ctx, bs, "../escape")
		assert.ErrorIs(t, err, blobstore.ErrInvalidName)
	})

	t.Run("NilStore", func(t *testing.T) {
		assert.ErrorIs(t, m.SaveToStore(ctx, nil, "x"), ErrNilStore)
		_, err := LoadFromStore[solution](ctx, nil)
		assert.ErrorIs(t, err, ErrNilStore)
	})

	t.Run("NoCurrent", func(t *testing.T) {
		_, err := LoadFromStore[solution](ctx, blobstore.NewMemoryStore())
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("DanglingCurrent", func(t *testing.T) {
		empty := blobstore.NewMemoryStore()
		require.NoError(t, empty.Put(ctx, CurrentSnapshot, []byte("gone")))
		_, err := LoadFromStore[solution](ctx, empty)
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})
}

func TestSaveToLocalStore(t *testing.T) {
	ctx := context.Background()
	bs := blobstore.NewLocalStore(t.TempDir())

	m := populated(t)
	require.NoError(t, m.SaveToStore(ctx, bs, "nightly/snapshot"))

	loaded, err := LoadFromStore[solution](ctx, bs)
	require.NoError(t, err)
	defer loaded.Close()
	assertSameContents(t, m, loaded)
}
