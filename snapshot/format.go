package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Magic identifies a memory snapshot.
const Magic = "MHDM"

// Version is the format version written by this package.
const Version uint16 = 1

var (
	// ErrCorrupt is returned for malformed or truncated snapshots.
	ErrCorrupt = errors.New("snapshot: corrupt data")

	// ErrChecksumMismatch is returned when the trailer checksum does not match.
	// It satisfies errors.Is(err, ErrCorrupt).
	ErrChecksumMismatch = fmt.Errorf("%w: checksum mismatch", ErrCorrupt)

	// ErrUnsupportedVersion is returned for snapshots written by a newer format.
	ErrUnsupportedVersion = errors.New("snapshot: unsupported version")
)

const (
	// MaxWidth bounds the record width a snapshot may declare.
	MaxWidth = 1 << 24

	// MaxCapacity bounds the capacity a snapshot may declare.
	MaxCapacity = 1 << 30
)

// Header describes a snapshot.
type Header struct {
	Version     uint16
	ID          uuid.UUID
	Width       int
	Capacity    int
	NextID      uint64
	Count       int
	Codec       string
	Compression Compression
}

// Words returns the number of uint64 words per record.
func (h Header) Words() int { return (h.Width + 63) / 64 }

// Entry is one stored entry with its payload already encoded.
type Entry struct {
	ID      uint64
	Record  []uint64
	Mask    []uint64
	Payload []byte
}

// fixed part: magic(4) version(2) compression(1) reserved(1) id(16)
// width(4) capacity(4) nextID(8) count(8) codecLen(1)
const fixedHeaderSize = 4 + 2 + 1 + 1 + 16 + 4 + 4 + 8 + 8 + 1

func (h Header) validate() error {
	switch {
	case h.Width <= 0 || h.Width > MaxWidth:
		return fmt.Errorf("invalid width %d", h.Width)
	case h.Capacity <= 0 || h.Capacity > MaxCapacity:
		return fmt.Errorf("invalid capacity %d", h.Capacity)
	case h.Count < 0 || h.Count > h.Capacity:
		return fmt.Errorf("entry count %d outside [0,%d]", h.Count, h.Capacity)
	case h.NextID == 0:
		return errors.New("next ID must be positive")
	case !h.Compression.valid():
		return fmt.Errorf("unknown compression %d", h.Compression)
	case len(h.Codec) == 0 || len(h.Codec) > 255:
		return fmt.Errorf("invalid codec name %q", h.Codec)
	}
	return nil
}

func (h Header) marshal() []byte {
	buf := make([]byte, 0, fixedHeaderSize+len(h.Codec))
	buf = append(buf, Magic...)
	buf = binary.LittleEndian.AppendUint16(buf, h.Version)
	buf = append(buf, byte(h.Compression), 0)
	buf = append(buf, h.ID[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(h.Width))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(h.Capacity))
	buf = binary.LittleEndian.AppendUint64(buf, h.NextID)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(h.Count))
	buf = append(buf, byte(len(h.Codec)))
	buf = append(buf, h.Codec...)
	return buf
}

func readHeader(r io.Reader) (Header, error) {
	var fixed [fixedHeaderSize]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return Header{}, fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}
	if string(fixed[0:4]) != Magic {
		return Header{}, fmt.Errorf("%w: bad magic %q", ErrCorrupt, fixed[0:4])
	}

	var h Header
	h.Version = binary.LittleEndian.Uint16(fixed[4:])
	if h.Version == 0 || h.Version > Version {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	h.Compression = Compression(fixed[6])
	copy(h.ID[:], fixed[8:24])
	h.Width = int(binary.LittleEndian.Uint32(fixed[24:]))
	h.Capacity = int(binary.LittleEndian.Uint32(fixed[28:]))
	if h.Capacity > MaxCapacity {
		return Header{}, fmt.Errorf("%w: capacity %d exceeds %d", ErrCorrupt, h.Capacity, MaxCapacity)
	}
	h.NextID = binary.LittleEndian.Uint64(fixed[32:])
	count := binary.LittleEndian.Uint64(fixed[40:])
	if count > uint64(h.Capacity) {
		return Header{}, fmt.Errorf("%w: entry count %d exceeds capacity %d", ErrCorrupt, count, h.Capacity)
	}
	h.Count = int(count)

	codec := make([]byte, fixed[48])
	if _, err := io.ReadFull(r, codec); err != nil {
		return Header{}, fmt.Errorf("%w: codec name: %v", ErrCorrupt, err)
	}
	h.Codec = string(codec)

	if err := h.validate(); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return h, nil
}
