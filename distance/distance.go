// Package distance provides the masked Hamming distance on packed bit words.
// All functions use the popcount kernels from internal/simd.
package distance

import (
	"errors"
	"fmt"

	"github.com/hupe1980/mhdmem/bitvec"
	"github.com/hupe1980/mhdmem/internal/simd"
)

// ErrWidthMismatch is returned when records passed to Between differ in width.
var ErrWidthMismatch = errors.New("distance: width mismatch")

// Masked returns popcount((mq AND mr) AND (q XOR r)).
// Assumes all slices are the same length (caller's responsibility).
func Masked(q, mq, r, mr []uint64) int {
	d, _ := simd.MaskedHamming(q, mq, r, mr)
	return d
}

// MaskedOverlap returns the masked distance together with the overlap,
// popcount(mq AND mr). An overlap of zero means no position was compared and
// the distance is trivially zero.
func MaskedOverlap(q, mq, r, mr []uint64) (dist, overlap int) {
	return simd.MaskedHamming(q, mq, r, mr)
}

// Hamming returns the plain Hamming distance popcount(a XOR b).
// Assumes slices are the same length.
func Hamming(a, b []uint64) int {
	return simd.Hamming(a, b)
}

// Overlap returns popcount(a AND b) for two masks.
func Overlap(a, b []uint64) int {
	_, o := simd.MaskedHamming(a, a, a, b)
	return o
}

// Between computes the masked distance between a query (q, mq) and a stored
// record (r, mr). All four records must have the same width.
func Between(q, mq, r, mr bitvec.Record) (int, error) {
	d, _, err := BetweenOverlap(q, mq, r, mr)
	return d, err
}

// BetweenOverlap is Between that also reports the overlap.
func BetweenOverlap(q, mq, r, mr bitvec.Record) (dist, overlap int, err error) {
	w := q.Width()
	for _, x := range []bitvec.Record{mq, r, mr} {
		if x.Width() != w {
			return 0, 0, fmt.Errorf("%w: %d != %d", ErrWidthMismatch, x.Width(), w)
		}
	}
	dist, overlap = simd.MaskedHamming(q.Words(), mq.Words(), r.Words(), mr.Words())
	return dist, overlap, nil
}

// Kernel returns the name of the active popcount path ("popcnt" or "generic").
func Kernel() string {
	return simd.ActiveISA().String()
}
