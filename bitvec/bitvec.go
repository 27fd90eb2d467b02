package bitvec

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// WordBits is the number of bits per storage word.
const WordBits = 64

var (
	// ErrEmptyPattern is returned by Parse for an empty input.
	ErrEmptyPattern = errors.New("bitvec: empty pattern")

	// ErrWordCount is returned when a word or byte slice does not match the width.
	ErrWordCount = errors.New("bitvec: slice length does not match width")
)

// Record is a fixed-width bit vector packed into uint64 words.
//
// Bit i is stored in word i/64 at position i%64 (least significant bit first).
// Padding bits above Width are always zero. A Record is a value: all methods
// that "modify" it return a new Record and leave the receiver untouched.
type Record struct {
	words []uint64
	width int
}

// NumWords returns the number of uint64 words needed for width bits.
func NumWords(width int) int {
	return (width + WordBits - 1) / WordBits
}

// New returns an all-zero record of the given width.
func New(width int) Record {
	if width < 0 {
		panic(fmt.Sprintf("bitvec: negative width %d", width))
	}
	return Record{
		words: make([]uint64, NumWords(width)),
		width: width,
	}
}

// Ones returns an all-one record of the given width.
func Ones(width int) Record {
	r := New(width)
	for i := range r.words {
		r.words[i] = ^uint64(0)
	}
	r.clearPadding()
	return r
}

// Prefix returns a record of the given width whose first n bits are set.
// It is the usual mask for a partial assignment where the first n decision
// variables are fixed. n is clamped to [0, width].
func Prefix(width, n int) Record {
	r := New(width)
	n = max(0, min(n, width))
	full := n / WordBits
	for i := 0; i < full; i++ {
		r.words[i] = ^uint64(0)
	}
	if rem := n % WordBits; rem != 0 {
		r.words[full] = (uint64(1) << rem) - 1
	}
	return r
}

// FromWords builds a record from packed words. The slice is copied.
// len(words) must equal NumWords(width); bits above width are cleared.
func FromWords(width int, words []uint64) (Record, error) {
	if width < 0 || len(words) != NumWords(width) {
		return Record{}, fmt.Errorf("%w: width %d needs %d words, got %d", ErrWordCount, width, NumWords(width), len(words))
	}
	r := Record{
		words: make([]uint64, len(words)),
		width: width,
	}
	copy(r.words, words)
	r.clearPadding()
	return r, nil
}

// FromBytes builds a record from bytes where bit i lives in byte i/8 at
// position i%8. len(b) must equal (width+7)/8.
func FromBytes(width int, b []byte) (Record, error) {
	if width < 0 || len(b) != (width+7)/8 {
		return Record{}, fmt.Errorf("%w: width %d needs %d bytes, got %d", ErrWordCount, width, (width+7)/8, len(b))
	}
	r := New(width)
	for i, v := range b {
		r.words[i/8] |= uint64(v) << (8 * (i % 8))
	}
	r.clearPadding()
	return r, nil
}

// FromBools builds a record with one bit per element.
func FromBools(values []bool) Record {
	r := New(len(values))
	for i, v := range values {
		if v {
			r.words[i/WordBits] |= 1 << (i % WordBits)
		}
	}
	return r
}

// FromFloats quantizes values to one bit each: values >= threshold become 1.
//
// This is the usual way to turn a fractional relaxation (for example an LP
// solution of a knapsack instance) into a pattern that can be compared with
// stored integral assignments.
func FromFloats(values []float32, threshold float32) Record {
	r := New(len(values))
	for i, v := range values {
		if v >= threshold {
			r.words[i/WordBits] |= 1 << (i % WordBits)
		}
	}
	return r
}

// FromBitSet copies the first width bits of bs into a record.
func FromBitSet(width int, bs *bitset.BitSet) Record {
	r := New(width)
	if bs == nil {
		return r
	}
	for i, ok := bs.NextSet(0); ok && i < uint(width); i, ok = bs.NextSet(i + 1) {
		r.words[i/WordBits] |= 1 << (i % WordBits)
	}
	return r
}

// Parse reads a pattern of '0' and '1' characters. Character i (left to
// right) becomes bit i. Underscores are ignored and may be used as separators.
func Parse(s string) (Record, error) {
	s = strings.ReplaceAll(s, "_", "")
	if s == "" {
		return Record{}, ErrEmptyPattern
	}
	r := New(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '0':
		case '1':
			r.words[i/WordBits] |= 1 << (i % WordBits)
		default:
			return Record{}, fmt.Errorf("bitvec: invalid character %q at position %d", s[i], i)
		}
	}
	return r, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// constant patterns.
func MustParse(s string) Record {
	r, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return r
}

// Width returns the number of bits in the record.
func (r Record) Width() int { return r.width }

// Words returns the packed words backing the record.
//
// The returned slice must be treated as read-only; use AppendWords for a copy.
func (r Record) Words() []uint64 { return r.words }

// AppendWords appends a copy of the packed words to dst.
func (r Record) AppendWords(dst []uint64) []uint64 {
	return append(dst, r.words...)
}

// Bit reports whether bit i is set. It panics if i is out of range.
func (r Record) Bit(i int) bool {
	r.checkIndex(i)
	return r.words[i/WordBits]&(1<<(i%WordBits)) != 0
}

// With returns a copy of r with bit i set to v.
func (r Record) With(i int, v bool) Record {
	r.checkIndex(i)
	c := r.Clone()
	if v {
		c.words[i/WordBits] |= 1 << (i % WordBits)
	} else {
		c.words[i/WordBits] &^= 1 << (i % WordBits)
	}
	return c
}

// Count returns the number of set bits.
func (r Record) Count() int {
	n := 0
	for _, w := range r.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Equal reports whether both records have the same width and bits.
func (r Record) Equal(o Record) bool {
	if r.width != o.width || len(r.words) != len(o.words) {
		return false
	}
	for i := range r.words {
		if r.words[i] != o.words[i] {
			return false
		}
	}
	return true
}

// And returns the bitwise AND of r and o. Both must have the same width.
func (r Record) And(o Record) Record {
	r.checkWidth(o)
	c := r.Clone()
	for i := range c.words {
		c.words[i] &= o.words[i]
	}
	return c
}

// Or returns the bitwise OR of r and o. Both must have the same width.
func (r Record) Or(o Record) Record {
	r.checkWidth(o)
	c := r.Clone()
	for i := range c.words {
		c.words[i] |= o.words[i]
	}
	return c
}

// Not returns the complement of r within its width.
func (r Record) Not() Record {
	c := r.Clone()
	for i := range c.words {
		c.words[i] = ^c.words[i]
	}
	c.clearPadding()
	return c
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	c := Record{width: r.width}
	if r.words != nil {
		c.words = make([]uint64, len(r.words))
		copy(c.words, r.words)
	}
	return c
}

// Bytes returns the record in byte layout (bit i in byte i/8 at position i%8).
func (r Record) Bytes() []byte {
	b := make([]byte, (r.width+7)/8)
	for i := range b {
		b[i] = byte(r.words[i/8] >> (8 * (i % 8)))
	}
	return b
}

// ToBitSet converts the record into a bits-and-blooms bitset of length Width.
func (r Record) ToBitSet() *bitset.BitSet {
	bs := bitset.New(uint(r.width))
	for wi, w := range r.words {
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			bs.Set(uint(wi*WordBits + tz))
			w &= w - 1
		}
	}
	return bs
}

// String renders the record as '0'/'1' characters, bit 0 first.
func (r Record) String() string {
	var sb strings.Builder
	sb.Grow(r.width)
	for i := 0; i < r.width; i++ {
		if r.words[i/WordBits]&(1<<(i%WordBits)) != 0 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

func (r *Record) clearPadding() {
	if rem := r.width % WordBits; rem != 0 && len(r.words) > 0 {
		r.words[len(r.words)-1] &= (uint64(1) << rem) - 1
	}
}

func (r Record) checkIndex(i int) {
	if i < 0 || i >= r.width {
		panic(fmt.Sprintf("bitvec: index %d out of range [0,%d)", i, r.width))
	}
}

func (r Record) checkWidth(o Record) {
	if r.width != o.width {
		panic(fmt.Sprintf("bitvec: width mismatch %d != %d", r.width, o.width))
	}
}
