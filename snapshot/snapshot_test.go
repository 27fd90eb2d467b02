package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntries(rng *rand.Rand, n, words int) []Entry {
	entries := make([]Entry, n)
	for i := range entries {
		rec := make([]uint64, words)
		mask := make([]uint64, words)
		for j := range rec {
			// Low-entropy records so compression has something to do.
			rec[j] = uint64(rng.Intn(4))
			mask[j] = ^uint64(0)
		}
		entries[i] = Entry{
			ID:      uint64(i*2 + 1),
			Record:  rec,
			Mask:    mask,
			Payload: []byte(fmt.Sprintf(`{"value":%d}`, i)),
		}
	}
	return entries
}

func writeSnapshot(t *testing.T, h Header, entries []Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, h)
	require.NoError(t, err)
	for _, e := range entries {
		require.NoError(t, w.WriteEntry(e))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func readAll(r *Reader) ([]Entry, error) {
	var out []Entry
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			rng := rand.New(rand.NewSource(1))
			// Enough entries to span several blocks.
			entries := testEntries(rng, 20000, 2)
			h := Header{Width: 100, Capacity: 50000, NextID: 40001, Count: len(entries), Codec: "go-json", Compression: c}

			data := writeSnapshot(t, h, entries)

			r, err := NewReader(bytes.NewReader(data))
			require.NoError(t, err)
			got := r.Header()
			assert.Equal(t, Version, got.Version)
			assert.NotEqual(t, uuid.Nil, got.ID)
			assert.Equal(t, 100, got.Width)
			assert.Equal(t, 50000, got.Capacity)
			assert.Equal(t, uint64(40001), got.NextID)
			assert.Equal(t, "go-json", got.Codec)
			assert.Equal(t, c, got.Compression)

			out, err := readAll(r)
			require.NoError(t, err)
			assert.Equal(t, entries, out)

			// EOF is sticky.
			_, err = r.Next()
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestCompressionShrinks(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	entries := testEntries(rng, 5000, 4)
	h := Header{Width: 256, Capacity: 5000, NextID: 10001, Count: len(entries), Codec: "json"}

	raw := writeSnapshot(t, h, entries)
	h.Compression = CompressionZSTD
	zstd := writeSnapshot(t, h, entries)
	h.Compression = CompressionLZ4
	lz4 := writeSnapshot(t, h, entries)

	assert.Less(t, len(zstd), len(raw))
	assert.Less(t, len(lz4), len(raw))
}

func TestEmptySnapshot(t *testing.T) {
	h := Header{Width: 8, Capacity: 3, NextID: 1, Codec: "json"}
	data := writeSnapshot(t, h, nil)

	r, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	out, err := readAll(r)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestKeepsExplicitID(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	h := Header{ID: id, Width: 8, Capacity: 1, NextID: 1, Codec: "json"}
	data := writeSnapshot(t, h, nil)

	r, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, id, r.Header().ID)
}

func TestWriterValidation(t *testing.T) {
	tests := []struct {
		name string
		h    Header
	}{
		{"Width", Header{Width: 0, Capacity: 1, NextID: 1, Codec: "json"}},
		{"Capacity", Header{Width: 8, Capacity: 0, NextID: 1, Codec: "json"}},
		{"WidthTooLarge", Header{Width: MaxWidth + 1, Capacity: 1, NextID: 1, Codec: "json"}},
		{"CapacityTooLarge", Header{Width: 8, Capacity: MaxCapacity + 1, NextID: 1, Codec: "json"}},
		{"Count", Header{Width: 8, Capacity: 1, Count: 2, NextID: 1, Codec: "json"}},
		{"NextID", Header{Width: 8, Capacity: 1, Codec: "json"}},
		{"Codec", Header{Width: 8, Capacity: 1, NextID: 1}},
		{"Compression", Header{Width: 8, Capacity: 1, NextID: 1, Codec: "json", Compression: 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWriter(io.Discard, tt.h)
			assert.Error(t, err)
		})
	}
}

func TestWriterEntryChecks(t *testing.T) {
	w, err := NewWriter(io.Discard, Header{Width: 70, Capacity: 2, NextID: 3, Count: 1, Codec: "json"})
	require.NoError(t, err)

	assert.Error(t, w.WriteEntry(Entry{ID: 1, Record: []uint64{0}, Mask: []uint64{0}}))
	require.NoError(t, w.WriteEntry(Entry{ID: 1, Record: []uint64{0, 0}, Mask: []uint64{0, 0}}))
	assert.Error(t, w.WriteEntry(Entry{ID: 2, Record: []uint64{0, 0}, Mask: []uint64{0, 0}}))
	require.NoError(t, w.Close())
	assert.NoError(t, w.Close())
	assert.Error(t, w.WriteEntry(Entry{}))

	short, err := NewWriter(io.Discard, Header{Width: 8, Capacity: 2, NextID: 3, Count: 2, Codec: "json"})
	require.NoError(t, err)
	assert.Error(t, short.Close())
}

func TestReaderRejectsCorruption(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	entries := testEntries(rng, 100, 1)
	h := Header{Width: 64, Capacity: 100, NextID: 500, Count: len(entries), Codec: "json", Compression: CompressionLZ4}
	data := writeSnapshot(t, h, entries)

	t.Run("BadMagic", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[0] = 'X'
		_, err := NewReader(bytes.NewReader(bad))
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("FutureVersion", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[4] = 99
		_, err := NewReader(bytes.NewReader(bad))
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("Truncated", func(t *testing.T) {
		for _, n := range []int{10, fixedHeaderSize + 4, len(data) / 2, len(data) - 2} {
			r, err := NewReader(bytes.NewReader(data[:n]))
			if err != nil {
				assert.ErrorIs(t, err, ErrCorrupt)
				continue
			}
			_, err = readAll(r)
			assert.ErrorIs(t, err, ErrCorrupt, "truncated at %d", n)
		}
	})

	t.Run("HugeCapacity", func(t *testing.T) {
		bad := bytes.Clone(data)
		binary.LittleEndian.PutUint32(bad[28:], 0xFFFFFFFF)
		binary.LittleEndian.PutUint64(bad[40:], 0xFFFFFFFF)
		_, err := NewReader(bytes.NewReader(bad))
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("FlippedTrailer", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[len(bad)-1] ^= 0xFF
		r, err := NewReader(bytes.NewReader(bad))
		require.NoError(t, err)
		_, err = readAll(r)
		assert.ErrorIs(t, err, ErrChecksumMismatch)
		assert.ErrorIs(t, err, ErrCorrupt)
	})
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		got, ok := ParseCompression(c.String())
		require.True(t, ok)
		assert.Equal(t, c, got)
	}
	_, ok := ParseCompression("brotli")
	assert.False(t, ok)
	assert.Equal(t, "unknown(7)", Compression(7).String())
}

func TestEncodeBlockStoresIncompressibleRaw(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	data := make([]byte, 4096)
	_, _ = rng.Read(data)

	for _, c := range []Compression{CompressionLZ4, CompressionZSTD} {
		block, err := encodeBlock(data, c)
		require.NoError(t, err)
		assert.Len(t, block, blockHeaderSize+len(data), c.String())
	}
}
