package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression defines the block compression algorithm of a snapshot body.
type Compression uint8

const (
	// CompressionNone stores blocks raw.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses ZSTD (better ratio).
	CompressionZSTD Compression = 2
)

// String returns the stable name of the compression type.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return CompressionNone, true
	case "lz4":
		return CompressionLZ4, true
	case "zstd":
		return CompressionZSTD, true
	default:
		return CompressionNone, false
	}
}

func (c Compression) valid() bool { return c <= CompressionZSTD }

// ZSTD encoder/decoder pools
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// Block format: [UncompressedSize uint32][CompressedSize uint32][Data...]
// CompressedSize == 0 means the block is stored raw. A header with both
// sizes zero terminates the body.
const blockHeaderSize = 8

// DefaultBlockSize is the uncompressed size of a body block.
const DefaultBlockSize = 256 * 1024

// maxBlockSize bounds what a reader accepts before allocating.
const maxBlockSize = 64 << 20

// encodeBlock returns header+data for one block. Blocks that do not shrink
// by at least 10% are stored raw.
func encodeBlock(data []byte, c Compression) ([]byte, error) {
	var compressed []byte
	switch c {
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		compressed = buf[:n] // n == 0: incompressible
	case CompressionZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		putZstdEncoder(enc)
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		out := make([]byte, blockHeaderSize+len(data))
		binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
		binary.LittleEndian.PutUint32(out[4:], 0)
		copy(out[blockHeaderSize:], data)
		return out, nil
	}

	out := make([]byte, blockHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(compressed)))
	copy(out[blockHeaderSize:], compressed)
	return out, nil
}

// decodeBlock decompresses the payload of a block whose header declared
// uncompressedSize and a non-zero compressed size.
func decodeBlock(compressed []byte, uncompressedSize uint32, c Compression) ([]byte, error) {
	result := make([]byte, uncompressedSize)
	switch c {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(compressed, result)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrCorrupt, err)
		}
		if uint32(n) != uncompressedSize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return result, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer putZstdDecoder(dec)

		decoded, err := dec.DecodeAll(compressed, result[:0])
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrCorrupt, err)
		}
		if uint32(len(decoded)) != uncompressedSize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("%w: compressed block in uncompressed snapshot", ErrCorrupt)
	}
}

// blockWriter buffers body bytes and emits compressed blocks.
type blockWriter struct {
	w           io.Writer
	compression Compression
	blockSize   int
	buffer      *bytes.Buffer
	written     int64
}

func newBlockWriter(w io.Writer, c Compression, blockSize int) *blockWriter {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &blockWriter{
		w:           w,
		compression: c,
		blockSize:   blockSize,
		buffer:      bytes.NewBuffer(make([]byte, 0, blockSize)),
	}
}

func (b *blockWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		space := b.blockSize - b.buffer.Len()
		if space <= 0 {
			if err := b.flushBlock(); err != nil {
				return total, err
			}
			space = b.blockSize
		}

		n, _ := b.buffer.Write(p[:min(len(p), space)])
		total += n
		p = p[n:]
	}
	return total, nil
}

func (b *blockWriter) flushBlock() error {
	if b.buffer.Len() == 0 {
		return nil
	}
	block, err := encodeBlock(b.buffer.Bytes(), b.compression)
	if err != nil {
		return err
	}
	n, err := b.w.Write(block)
	b.written += int64(n)
	if err != nil {
		return err
	}
	b.buffer.Reset()
	return nil
}

// finish flushes the last block and writes the terminator.
func (b *blockWriter) finish() error {
	if err := b.flushBlock(); err != nil {
		return err
	}
	var end [blockHeaderSize]byte
	n, err := b.w.Write(end[:])
	b.written += int64(n)
	return err
}

// blockReader streams the decompressed body. It implements io.ByteReader
// for varint decoding.
type blockReader struct {
	r           io.Reader
	compression Compression
	buf         []byte
	off         int
	done        bool
}

func newBlockReader(r io.Reader, c Compression) *blockReader {
	return &blockReader{r: r, compression: c}
}

func (b *blockReader) next() error {
	var hdr [blockHeaderSize]byte
	if _, err := io.ReadFull(b.r, hdr[:]); err != nil {
		return fmt.Errorf("%w: block header: %v", ErrCorrupt, err)
	}
	uncompressed := binary.LittleEndian.Uint32(hdr[0:])
	compressed := binary.LittleEndian.Uint32(hdr[4:])

	if uncompressed == 0 && compressed == 0 {
		b.done = true
		return io.EOF
	}
	if uncompressed > maxBlockSize || compressed > maxBlockSize {
		return fmt.Errorf("%w: block size %d/%d too large", ErrCorrupt, uncompressed, compressed)
	}

	if compressed == 0 {
		data := make([]byte, uncompressed)
		if _, err := io.ReadFull(b.r, data); err != nil {
			return fmt.Errorf("%w: block data: %v", ErrCorrupt, err)
		}
		b.buf, b.off = data, 0
		return nil
	}

	raw := make([]byte, compressed)
	if _, err := io.ReadFull(b.r, raw); err != nil {
		return fmt.Errorf("%w: block data: %v", ErrCorrupt, err)
	}
	data, err := decodeBlock(raw, uncompressed, b.compression)
	if err != nil {
		return err
	}
	b.buf, b.off = data, 0
	return nil
}

func (b *blockReader) Read(p []byte) (int, error) {
	for b.off >= len(b.buf) {
		if b.done {
			return 0, io.EOF
		}
		if err := b.next(); err != nil {
			return 0, err
		}
	}
	n := copy(p, b.buf[b.off:])
	b.off += n
	return n, nil
}

func (b *blockReader) ReadByte() (byte, error) {
	var one [1]byte
	if _, err := b.Read(one[:]); err != nil {
		return 0, err
	}
	return one[0], nil
}

// drain consumes the terminator after the last entry. Any body bytes left
// over mean the entry count in the header is wrong.
func (b *blockReader) drain() error {
	if b.off < len(b.buf) {
		return fmt.Errorf("%w: %d trailing body bytes", ErrCorrupt, len(b.buf)-b.off)
	}
	for !b.done {
		err := b.next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if len(b.buf) > 0 {
			return fmt.Errorf("%w: trailing body block", ErrCorrupt)
		}
	}
	return nil
}
