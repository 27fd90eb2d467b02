package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"io"

	"github.com/google/uuid"

	crc32c "github.com/hupe1980/mhdmem/internal/hash"
)

// Writer streams a snapshot: header, entries, then checksum trailer.
// The number of entries written must match Header.Count.
type Writer struct {
	w       io.Writer
	crc     hash.Hash32
	body    *blockWriter
	h       Header
	words   int
	written int
	closed  bool
	scratch []byte
}

// NewWriter validates h, assigns a snapshot ID if h.ID is zero, and writes
// the header.
func NewWriter(w io.Writer, h Header) (*Writer, error) {
	h.Version = Version
	if err := h.validate(); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	if h.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return nil, fmt.Errorf("snapshot: generate id: %w", err)
		}
		h.ID = id
	}

	crc := crc32c.NewCRC32C()
	mw := io.MultiWriter(w, crc)
	if _, err := mw.Write(h.marshal()); err != nil {
		return nil, err
	}

	return &Writer{
		w:     w,
		crc:   crc,
		body:  newBlockWriter(mw, h.Compression, DefaultBlockSize),
		h:     h,
		words: h.Words(),
	}, nil
}

// Header returns the header as written, including the assigned ID.
func (w *Writer) Header() Header { return w.h }

// WriteEntry appends one entry.
func (w *Writer) WriteEntry(e Entry) error {
	if w.closed {
		return errors.New("snapshot: writer closed")
	}
	if w.written >= w.h.Count {
		return fmt.Errorf("snapshot: more than %d entries", w.h.Count)
	}
	if len(e.Record) != w.words || len(e.Mask) != w.words {
		return fmt.Errorf("snapshot: entry %d has %d/%d words, want %d", e.ID, len(e.Record), len(e.Mask), w.words)
	}

	buf := w.scratch[:0]
	buf = binary.LittleEndian.AppendUint64(buf, e.ID)
	for _, x := range e.Record {
		buf = binary.LittleEndian.AppendUint64(buf, x)
	}
	for _, x := range e.Mask {
		buf = binary.LittleEndian.AppendUint64(buf, x)
	}
	buf = binary.AppendUvarint(buf, uint64(len(e.Payload)))
	buf = append(buf, e.Payload...)
	w.scratch = buf

	if _, err := w.body.Write(buf); err != nil {
		return err
	}
	w.written++
	return nil
}

// Close flushes the body and writes the checksum trailer. It does not close
// the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.written != w.h.Count {
		return fmt.Errorf("snapshot: wrote %d entries, header declares %d", w.written, w.h.Count)
	}
	if err := w.body.finish(); err != nil {
		return err
	}
	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], w.crc.Sum32())
	_, err := w.w.Write(trailer[:])
	return err
}

// BytesWritten returns the size of the body written so far.
func (w *Writer) BytesWritten() int64 { return w.body.written }
