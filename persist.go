package mhdmem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hupe1980/mhdmem/bitvec"
	"github.com/hupe1980/mhdmem/blobstore"
	"github.com/hupe1980/mhdmem/codec"
	"github.com/hupe1980/mhdmem/internal/resource"
	"github.com/hupe1980/mhdmem/internal/scorer"
	"github.com/hupe1980/mhdmem/internal/store"
	"github.com/hupe1980/mhdmem/snapshot"
)

// CurrentSnapshot is the blob that names the latest snapshot written by
// SaveToStore.
const CurrentSnapshot = "CURRENT"

// ErrUnknownCodec is returned by Load when the snapshot's payload codec is
// not registered with the codec package.
var ErrUnknownCodec = errors.New("snapshot codec not registered")

type savedEntry[P any] struct {
	slot    scorer.Slot
	payload P
}

// Save writes a snapshot of the memory to w. Entries keep their IDs, so a
// loaded memory answers queries with the same order and tie-breaks.
// Entries are collected under the read lock and encoded after it is released.
func (m *Memory[P]) Save(ctx context.Context, w io.Writer) error {
	n, err := m.save(ctx, w)
	m.logger.LogSnapshot(ctx, "save", "", n, err)
	return err
}

func (m *Memory[P]) save(ctx context.Context, w io.Writer) (int, error) {
	var (
		entries []savedEntry[P]
		nextID  uint64
	)
	m.store.Read(func(v store.View[P]) {
		entries = make([]savedEntry[P], 0, v.Len())
		for i, sl := range v.Slots() {
			if sl.Live() {
				entries = append(entries, savedEntry[P]{slot: sl, payload: v.Payload(i)})
			}
		}
		nextID = v.NextID()
	})

	if m.rc != nil {
		w = resource.NewRateLimitedWriter(ctx, w, m.rc)
	}

	sw, err := snapshot.NewWriter(w, snapshot.Header{
		Width:       m.Width(),
		Capacity:    m.Capacity(),
		NextID:      nextID,
		Count:       len(entries),
		Codec:       m.codec.Name(),
		Compression: m.compression,
	})
	if err != nil {
		return 0, err
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		payload, err := m.codec.Marshal(e.payload)
		if err != nil {
			return 0, fmt.Errorf("encode payload of entry %d: %w", e.slot.ID, err)
		}
		if err := sw.WriteEntry(snapshot.Entry{
			ID:      e.slot.ID,
			Record:  e.slot.Record,
			Mask:    e.slot.Mask,
			Payload: payload,
		}); err != nil {
			return 0, err
		}
	}
	if err := sw.Close(); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// loadPrealloc bounds the entries reserved from a snapshot header.
const loadPrealloc = 1024

// Load reads a snapshot written by Save and returns a new memory with the
// same width, capacity, entries and ID sequence. opts configure the new
// memory as in New; the payload codec is taken from the snapshot.
func Load[P any](ctx context.Context, r io.Reader, opts ...Option) (*Memory[P], error) {
	o := applyOptions(opts)
	m, err := load[P](ctx, r, o)
	o.logger.LogSnapshot(ctx, "load", "", lenOf(m), err)
	return m, err
}

func load[P any](ctx context.Context, r io.Reader, o options) (*Memory[P], error) {
	if o.resource.IOLimitBytesPerSec > 0 {
		r = resource.NewRateLimitedReader(ctx, r, resource.NewController(resource.Config{
			IOLimitBytesPerSec: o.resource.IOLimitBytesPerSec,
		}))
	}

	sr, err := snapshot.NewReader(r)
	if err != nil {
		return nil, err
	}
	h := sr.Header()

	c, ok := codec.ByName(h.Codec)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, h.Codec)
	}

	// Count is untrusted until the checksum is verified.
	entries := make([]store.Entry[P], 0, min(h.Count, loadPrealloc))
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e, err := sr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		rec, err := bitvec.FromWords(h.Width, e.Record)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", snapshot.ErrCorrupt, err)
		}
		mask, err := bitvec.FromWords(h.Width, e.Mask)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", snapshot.ErrCorrupt, err)
		}
		var payload P
		if err := c.Unmarshal(e.Payload, &payload); err != nil {
			return nil, fmt.Errorf("decode payload of entry %d: %w", e.ID, err)
		}
		entries = append(entries, store.Entry[P]{ID: e.ID, Record: rec, Mask: mask, Payload: payload})
	}

	m, err := newMemory[P](h.Width, h.Capacity, o)
	if err != nil {
		return nil, err
	}
	if err := m.store.Restore(entries, h.NextID); err != nil {
		_ = m.Close()
		return nil, translateError(err)
	}
	return m, nil
}

// SaveToStore writes a snapshot to bs under name and then points
// CurrentSnapshot at it. A crash between the two writes leaves the previous
// snapshot current.
func (m *Memory[P]) SaveToStore(ctx context.Context, bs blobstore.Store, name string) error {
	if bs == nil {
		return ErrNilStore
	}
	n, err := m.saveToStore(ctx, bs, name)
	m.logger.LogSnapshot(ctx, "save", name, n, err)
	return err
}

func (m *Memory[P]) saveToStore(ctx context.Context, bs blobstore.Store, name string) (int, error) {
	if err := blobstore.ValidateName(name); err != nil {
		return 0, err
	}
	if name == CurrentSnapshot {
		return 0, fmt.Errorf("%w: %q is reserved", blobstore.ErrInvalidName, name)
	}

	var buf bytes.Buffer
	n, err := m.save(ctx, &buf)
	if err != nil {
		return 0, err
	}
	if err := bs.Put(ctx, name, buf.Bytes()); err != nil {
		return 0, fmt.Errorf("put snapshot %s: %w", name, err)
	}
	if err := bs.Put(ctx, CurrentSnapshot, []byte(name)); err != nil {
		return 0, fmt.Errorf("update %s: %w", CurrentSnapshot, err)
	}
	return n, nil
}

// LoadFromStore loads the snapshot CurrentSnapshot points at.
func LoadFromStore[P any](ctx context.Context, bs blobstore.Store, opts ...Option) (*Memory[P], error) {
	if bs == nil {
		return nil, ErrNilStore
	}
	o := applyOptions(opts)

	name, m, err := loadFromStore[P](ctx, bs, o)
	o.logger.LogSnapshot(ctx, "load", name, lenOf(m), err)
	return m, err
}

func loadFromStore[P any](ctx context.Context, bs blobstore.Store, o options) (string, *Memory[P], error) {
	current, err := bs.Get(ctx, CurrentSnapshot)
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", CurrentSnapshot, err)
	}
	name := strings.TrimSpace(string(current))

	data, err := bs.Get(ctx, name)
	if err != nil {
		return name, nil, fmt.Errorf("read snapshot %s: %w", name, err)
	}
	m, err := load[P](ctx, bytes.NewReader(data), o)
	return name, m, err
}

func lenOf[P any](m *Memory[P]) int {
	if m == nil {
		return 0
	}
	return m.Len()
}
