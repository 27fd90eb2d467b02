package snapshot

import (
	"encoding/binary"
	"fmt"
	"hash"
	"io"

	crc32c "github.com/hupe1980/mhdmem/internal/hash"
)

// maxPayloadSize bounds a single encoded payload.
const maxPayloadSize = maxBlockSize

// Reader streams entries out of a snapshot and verifies the checksum after
// the last one.
type Reader struct {
	r     io.Reader
	crc   hash.Hash32
	body  *blockReader
	h     Header
	words int
	read  int
	err   error
}

// NewReader reads and validates the header.
func NewReader(r io.Reader) (*Reader, error) {
	crc := crc32c.NewCRC32C()
	tee := io.TeeReader(r, crc)

	h, err := readHeader(tee)
	if err != nil {
		return nil, err
	}

	return &Reader{
		r:     r,
		crc:   crc,
		body:  newBlockReader(tee, h.Compression),
		h:     h,
		words: h.Words(),
	}, nil
}

// Header returns the snapshot header.
func (r *Reader) Header() Header { return r.h }

// Next returns the next entry, or io.EOF after the last entry once the
// checksum has been verified.
func (r *Reader) Next() (Entry, error) {
	if r.err != nil {
		return Entry{}, r.err
	}
	if r.read == r.h.Count {
		r.err = r.finish()
		if r.err == nil {
			r.err = io.EOF
		}
		return Entry{}, r.err
	}

	e, err := r.readEntry()
	if err != nil {
		r.err = err
		return Entry{}, err
	}
	r.read++
	return e, nil
}

func (r *Reader) readEntry() (Entry, error) {
	fixed := make([]byte, 8+16*r.words)
	if _, err := io.ReadFull(r.body, fixed); err != nil {
		return Entry{}, corrupt("entry", err)
	}
	e := Entry{
		ID:     binary.LittleEndian.Uint64(fixed),
		Record: make([]uint64, r.words),
		Mask:   make([]uint64, r.words),
	}
	off := 8
	for i := range e.Record {
		e.Record[i] = binary.LittleEndian.Uint64(fixed[off:])
		off += 8
	}
	for i := range e.Mask {
		e.Mask[i] = binary.LittleEndian.Uint64(fixed[off:])
		off += 8
	}

	n, err := binary.ReadUvarint(r.body)
	if err != nil {
		return Entry{}, corrupt("payload length", err)
	}
	if n > maxPayloadSize {
		return Entry{}, fmt.Errorf("%w: payload of %d bytes", ErrCorrupt, n)
	}
	e.Payload = make([]byte, n)
	if _, err := io.ReadFull(r.body, e.Payload); err != nil {
		return Entry{}, corrupt("payload", err)
	}
	return e, nil
}

func (r *Reader) finish() error {
	if err := r.body.drain(); err != nil {
		return err
	}
	want := r.crc.Sum32()

	var trailer [4]byte
	if _, err := io.ReadFull(r.r, trailer[:]); err != nil {
		return corrupt("trailer", err)
	}
	if binary.LittleEndian.Uint32(trailer[:]) != want {
		return ErrChecksumMismatch
	}
	return nil
}

func corrupt(what string, err error) error {
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%w: %s: %w", ErrCorrupt, what, err)
}
